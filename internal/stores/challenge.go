package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MrEthical07/goTrust/autherr"
	"github.com/MrEthical07/goTrust/passkey"
	"github.com/redis/go-redis/v9"
)

const challengeRecordVersion1 = 1

// ChallengeStore keeps passkey challenges in Redis, one key per challenge
// value, expiring with the challenge.
type ChallengeStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewChallengeStore creates a [ChallengeStore]. prefix defaults to "tpc".
func NewChallengeStore(redisClient redis.UniversalClient, prefix string) *ChallengeStore {
	if prefix == "" {
		prefix = "tpc"
	}
	return &ChallengeStore{redis: redisClient, prefix: prefix}
}

func (s *ChallengeStore) key(value string) string {
	return s.prefix + ":" + value
}

// Put stores c until c.ExpiresAt.
func (s *ChallengeStore) Put(ctx context.Context, c passkey.Challenge) error {
	ttl := time.Until(c.ExpiresAt)
	if !c.IssuedAt.IsZero() {
		ttl = c.ExpiresAt.Sub(c.IssuedAt)
	}
	if ttl <= 0 {
		return autherr.Validation("challenge already expired")
	}
	encoded, err := encodeChallenge(c)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(c.Value), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Consume reads, checks and deletes the challenge under WATCH, so two
// concurrent calls for one value never both succeed.
func (s *ChallengeStore) Consume(ctx context.Context, value string, typ passkey.ChallengeType, now time.Time) (passkey.Challenge, error) {
	if value == "" {
		return passkey.Challenge{}, autherr.ErrChallengeInvalid
	}
	key := s.key(value)

	var out passkey.Challenge
	err := watchKey(ctx, s.redis, key, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return reject(autherr.ErrChallengeInvalid)
			}
			return err
		}
		c, err := decodeChallenge(data)
		if err != nil {
			if delErr := deleteIn(ctx, tx, key); delErr != nil {
				return delErr
			}
			return reject(autherr.ErrChallengeInvalid)
		}
		c.Value = value
		if c.Type != typ {
			return reject(fmt.Errorf("%w: issued for %s", autherr.ErrChallengeInvalid, c.Type))
		}
		if err := deleteIn(ctx, tx, key); err != nil {
			return err
		}
		if !now.Before(c.ExpiresAt) {
			return reject(fmt.Errorf("%w: challenge", autherr.ErrExpired))
		}
		out = c
		return nil
	})
	if err != nil {
		return passkey.Challenge{}, err
	}
	return out, nil
}

func encodeChallenge(c passkey.Challenge) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(challengeRecordVersion1)
	buf.WriteByte(byte(c.Type))
	if err := binary.Write(&buf, binary.BigEndian, c.IssuedAt.UnixMilli()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, c.ExpiresAt.UnixMilli()); err != nil {
		return nil, err
	}
	for _, s := range []string{c.UserID, c.UserName} {
		if len(s) > 65535 {
			return nil, errors.New("challenge field length exceeded")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(s))); err != nil {
			return nil, err
		}
		buf.WriteString(s)
	}
	return buf.Bytes(), nil
}

func decodeChallenge(data []byte) (passkey.Challenge, error) {
	r := bytes.NewReader(data)
	version, err := r.ReadByte()
	if err != nil {
		return passkey.Challenge{}, err
	}
	if version != challengeRecordVersion1 {
		return passkey.Challenge{}, errors.New("invalid challenge version")
	}
	typ, err := r.ReadByte()
	if err != nil {
		return passkey.Challenge{}, err
	}
	var issued, expires int64
	if err := binary.Read(r, binary.BigEndian, &issued); err != nil {
		return passkey.Challenge{}, err
	}
	if err := binary.Read(r, binary.BigEndian, &expires); err != nil {
		return passkey.Challenge{}, err
	}
	c := passkey.Challenge{
		Type:      passkey.ChallengeType(typ),
		IssuedAt:  time.UnixMilli(issued),
		ExpiresAt: time.UnixMilli(expires),
	}
	for _, dst := range []*string{&c.UserID, &c.UserName} {
		if *dst, err = readString16(r); err != nil {
			return passkey.Challenge{}, err
		}
	}
	return c, nil
}

func readString16(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

var _ passkey.ChallengeStore = (*ChallengeStore)(nil)
