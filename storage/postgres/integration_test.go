//go:build integration

package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goTrust/authmethod"
	"github.com/MrEthical07/goTrust/autherr"
	"github.com/MrEthical07/goTrust/mfa"
	"github.com/MrEthical07/goTrust/session"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	url := os.Getenv("TRUST_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TRUST_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := Connect(ctx, url, 8)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestMethodUpdateIfRowLock(t *testing.T) {
	db := openTestDB(t)
	repo := NewMethodRepository(db)
	ctx := context.Background()

	id := uuid.NewString()
	m := authmethod.New(id, uuid.NewString(), authmethod.EmailOtp{Email: id + "@example.com"}, time.Now())
	if err := repo.Create(ctx, m); err != nil {
		t.Fatalf("create: %v", err)
	}
	t.Cleanup(func() { _ = repo.Delete(ctx, id) })

	const limit = 5
	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.UpdateIf(ctx, id,
				func(cur authmethod.Method) error {
					if cur.Metadata.(authmethod.EmailOtp).DailyCount >= limit {
						return autherr.ErrRateLimited
					}
					return nil
				},
				func(cur authmethod.Method) authmethod.Method {
					meta := cur.Metadata.(authmethod.EmailOtp)
					meta.DailyCount++
					cur.Metadata = meta
					return cur
				})
			if err == nil {
				admitted.Add(1)
			} else if !errors.Is(err, autherr.ErrRateLimited) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if admitted.Load() != limit {
		t.Fatalf("admitted %d, want %d", admitted.Load(), limit)
	}
}

func TestPreferencesDefaultAndUpsert(t *testing.T) {
	repo := NewPreferenceRepository(openTestDB(t))
	ctx := context.Background()
	user := uuid.NewString()

	p, err := repo.GetPreferences(ctx, user)
	if err != nil || p.Enforced {
		t.Fatalf("expected zero preferences, got %+v %v", p, err)
	}
	if err := repo.SavePreferences(ctx, user, mfa.Preferences{Enforced: true, MinimumACR: 3, UpdatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	p, _ = repo.GetPreferences(ctx, user)
	if !p.Enforced || p.MinimumACR != 3 {
		t.Fatalf("unexpected preferences %+v", p)
	}
}

func TestSessionRepositoryLifecycle(t *testing.T) {
	repo := NewSessionRepository(openTestDB(t), nil)
	ctx := context.Background()
	user := uuid.NewString()
	now := time.Now().UTC().Truncate(time.Millisecond)

	live := session.Session{SessionID: uuid.NewString(), UserID: user, ACR: 2, IssuedAt: now, ExpiresAt: now.Add(time.Hour)}
	stale := session.Session{SessionID: uuid.NewString(), UserID: user, IssuedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	for _, s := range []session.Session{live, stale} {
		if err := repo.Save(ctx, s); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := repo.Get(ctx, stale.SessionID); !errors.Is(err, autherr.ErrNotFound) {
		t.Fatalf("stale session should be not found, got %v", err)
	}
	touched, err := repo.Touch(ctx, live.SessionID, now.Add(time.Minute))
	if err != nil || touched.ACR != 2 || !touched.LastAccessedAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("touch: %+v %v", touched, err)
	}
	n, err := repo.DeleteAllForUser(ctx, user)
	if err != nil || n != 1 {
		t.Fatalf("delete all = %d %v", n, err)
	}
}
