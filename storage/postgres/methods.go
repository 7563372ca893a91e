package postgres

import (
	"context"
	"errors"

	"github.com/MrEthical07/goTrust/authmethod"
	"github.com/MrEthical07/goTrust/autherr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MethodRepository is the Postgres [authmethod.Store].
type MethodRepository struct {
	db *gorm.DB
}

func NewMethodRepository(db *gorm.DB) *MethodRepository {
	return &MethodRepository{db: db}
}

func (r *MethodRepository) Create(ctx context.Context, m authmethod.Method) error {
	if err := m.Validate(); err != nil {
		return autherr.Validation(err.Error())
	}
	rec, err := toMethodModel(m)
	if err != nil {
		return autherr.Validation(err.Error())
	}
	return dbError("method "+m.ID, r.db.WithContext(ctx).Create(&rec).Error)
}

func (r *MethodRepository) Get(ctx context.Context, id string) (authmethod.Method, error) {
	return r.take("method "+id, r.db.WithContext(ctx).Where("method_id = ?", id))
}

func (r *MethodRepository) ListByUser(ctx context.Context, userID string) ([]authmethod.Method, error) {
	var rows []methodModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, method_id ASC").
		Find(&rows).Error; err != nil {
		return nil, dbError("methods of "+userID, err)
	}
	out := make([]authmethod.Method, 0, len(rows))
	for _, rec := range rows {
		m, err := toMethod(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *MethodRepository) FindByCredentialID(ctx context.Context, credentialID string) (authmethod.Method, error) {
	return r.take("credential "+credentialID, r.db.WithContext(ctx).Where("credential_id = ?", credentialID))
}

func (r *MethodRepository) FindByTarget(ctx context.Context, kind authmethod.Kind, target string) (authmethod.Method, error) {
	return r.take(string(kind)+" target", r.db.WithContext(ctx).
		Where("kind = ? AND target = ?", string(kind), target).
		Order("created_at ASC"))
}

// UpdateIf locks the row with SELECT ... FOR UPDATE, runs predicate and
// mutation, and writes the result in the same transaction.
func (r *MethodRepository) UpdateIf(ctx context.Context, id string, predicate authmethod.Predicate, mutation authmethod.Mutation) (authmethod.Method, error) {
	var out authmethod.Method
	var rejected error
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec methodModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("method_id = ?", id).
			Take(&rec).Error; err != nil {
			return err
		}
		cur, err := toMethod(rec)
		if err != nil {
			return err
		}
		if predicate != nil {
			if err := predicate(cur); err != nil {
				rejected = err
				return err
			}
		}
		next := mutation(cur)
		next.ID, next.UserID = cur.ID, cur.UserID
		if err := next.Validate(); err != nil {
			rejected = autherr.Validation(err.Error())
			return rejected
		}
		updated, err := toMethodModel(next)
		if err != nil {
			return err
		}
		if err := tx.Model(&methodModel{}).
			Where("method_id = ?", id).
			Select("*").
			Updates(&updated).Error; err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		if rejected != nil && errors.Is(err, rejected) {
			return authmethod.Method{}, rejected
		}
		return authmethod.Method{}, dbError("method "+id, err)
	}
	return out, nil
}

// Delete is idempotent.
func (r *MethodRepository) Delete(ctx context.Context, id string) error {
	return dbError("method "+id, r.db.WithContext(ctx).Where("method_id = ?", id).Delete(&methodModel{}).Error)
}

func (r *MethodRepository) take(what string, q *gorm.DB) (authmethod.Method, error) {
	var rec methodModel
	if err := q.Take(&rec).Error; err != nil {
		return authmethod.Method{}, dbError(what, err)
	}
	return toMethod(rec)
}

var _ authmethod.Store = (*MethodRepository)(nil)
