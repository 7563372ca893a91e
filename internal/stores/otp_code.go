package stores

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MrEthical07/goTrust/autherr"
	"github.com/MrEthical07/goTrust/otp"
	"github.com/redis/go-redis/v9"
)

const codeRecordVersion1 = 1

// CodeStore keeps pending OTP digests in Redis, one key per method.
type CodeStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewCodeStore creates a [CodeStore]. prefix defaults to "toc".
func NewCodeStore(redisClient redis.UniversalClient, prefix string) *CodeStore {
	if prefix == "" {
		prefix = "toc"
	}
	return &CodeStore{redis: redisClient, prefix: prefix, now: time.Now}
}

// WithClock overrides the clock used to derive key TTLs.
func (s *CodeStore) WithClock(now func() time.Time) *CodeStore {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *CodeStore) key(methodID string) string {
	return s.prefix + ":" + methodID
}

// SaveCode replaces any pending code for the method.
func (s *CodeStore) SaveCode(ctx context.Context, rec otp.CodeRecord) error {
	ttl := rec.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return autherr.Validation("code already expired")
	}
	encoded, err := encodeCode(rec)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(rec.MethodID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// ConsumeCode compares digest in constant time under WATCH. A match deletes
// the record; a mismatch bumps the attempt counter and deletes the record
// once MaxAttempts is reached.
func (s *CodeStore) ConsumeCode(ctx context.Context, methodID string, digest [32]byte, now time.Time) (otp.CodeRecord, error) {
	key := s.key(methodID)

	var out otp.CodeRecord
	err := watchKey(ctx, s.redis, key, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return reject(autherr.ErrInvalidCredential)
			}
			return err
		}
		rec, err := decodeCode(data)
		if err != nil {
			if delErr := deleteIn(ctx, tx, key); delErr != nil {
				return delErr
			}
			return reject(autherr.ErrInvalidCredential)
		}
		rec.MethodID = methodID

		if !now.Before(rec.ExpiresAt) {
			if err := deleteIn(ctx, tx, key); err != nil {
				return err
			}
			return reject(fmt.Errorf("%w: code", autherr.ErrExpired))
		}

		if subtle.ConstantTimeCompare(rec.Digest[:], digest[:]) == 1 {
			if err := deleteIn(ctx, tx, key); err != nil {
				return err
			}
			out = rec
			return nil
		}

		rec.Attempts++
		if rec.MaxAttempts > 0 && rec.Attempts >= rec.MaxAttempts {
			if err := deleteIn(ctx, tx, key); err != nil {
				return err
			}
			return reject(&autherr.RateLimitError{Reason: "too many incorrect codes"})
		}
		ttl, err := tx.PTTL(ctx, key).Result()
		if err != nil {
			return err
		}
		if ttl <= 0 {
			ttl = rec.ExpiresAt.Sub(now)
		}
		updated, err := encodeCode(rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, ttl)
			return nil
		})
		if err != nil {
			return err
		}
		return reject(autherr.ErrInvalidCredential)
	})
	if err != nil {
		return otp.CodeRecord{}, err
	}
	return out, nil
}

// DeleteCode drops a pending code. Missing records are not an error.
func (s *CodeStore) DeleteCode(ctx context.Context, methodID string) error {
	if err := s.redis.Del(ctx, s.key(methodID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func encodeCode(rec otp.CodeRecord) ([]byte, error) {
	if rec.Attempts < 0 || rec.Attempts > 65535 || rec.MaxAttempts < 0 || rec.MaxAttempts > 65535 {
		return nil, errors.New("code attempt counters out of range")
	}
	var buf bytes.Buffer
	buf.WriteByte(codeRecordVersion1)
	buf.Write(rec.Digest[:])
	if err := binary.Write(&buf, binary.BigEndian, rec.ExpiresAt.UnixMilli()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(rec.Attempts)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(rec.MaxAttempts)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeCode(data []byte) (otp.CodeRecord, error) {
	r := bytes.NewReader(data)
	version, err := r.ReadByte()
	if err != nil {
		return otp.CodeRecord{}, err
	}
	if version != codeRecordVersion1 {
		return otp.CodeRecord{}, errors.New("invalid code record version")
	}
	var rec otp.CodeRecord
	if _, err := io.ReadFull(r, rec.Digest[:]); err != nil {
		return otp.CodeRecord{}, err
	}
	var expires int64
	var attempts, maxAttempts uint16
	if err := binary.Read(r, binary.BigEndian, &expires); err != nil {
		return otp.CodeRecord{}, err
	}
	if err := binary.Read(r, binary.BigEndian, &attempts); err != nil {
		return otp.CodeRecord{}, err
	}
	if err := binary.Read(r, binary.BigEndian, &maxAttempts); err != nil {
		return otp.CodeRecord{}, err
	}
	rec.ExpiresAt = time.UnixMilli(expires)
	rec.Attempts = int(attempts)
	rec.MaxAttempts = int(maxAttempts)
	return rec, nil
}

var _ otp.CodeStore = (*CodeStore)(nil)
