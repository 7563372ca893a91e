package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goTrust/autherr"
	"github.com/google/uuid"
)

// Identity is a device as persisted. Score and Level are always recomputed
// from Signals, never patched.
type Identity struct {
	DeviceID            string
	UserID              string
	VisitorID           string
	Signals             Signals
	TrustScore          int
	TrustLevel          Level
	Trusted             bool
	TrustExpiresAt      time.Time
	BaselineFingerprint string
	FirstSeen           time.Time
	LastSeen            time.Time
}

// TrustValid reports whether established trust is still in force.
func (d Identity) TrustValid(now time.Time) bool {
	return d.Trusted && !d.TrustExpiresAt.IsZero() && now.Before(d.TrustExpiresAt)
}

// Store persists device identities. Writes are last-writer-wins.
type Store interface {
	GetDevice(ctx context.Context, deviceID string) (Identity, error)
	FindByVisitorID(ctx context.Context, visitorID string) (Identity, error)
	ListDevices(ctx context.Context, userID string) ([]Identity, error)
	SaveDevice(ctx context.Context, d Identity) error
}

// Trust durations by score. Below the last threshold trust is not established.
var trustDurations = []struct {
	minScore int
	duration time.Duration
}{
	{90, 90 * 24 * time.Hour},
	{80, 30 * 24 * time.Hour},
	{70, 7 * 24 * time.Hour},
}

// Verdict is the outcome of VerifyTrust.
type Verdict struct {
	Trusted  bool
	DeviceID string
	UserID   string
	Level    Level
	Reason   string
}

// Service owns the device lifecycle around the pure scorer.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService builds a Service. now may be nil.
func NewService(store Store, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, now: now}
}

// RecordSighting creates the device on first sighting, otherwise refreshes
// its signals and LastSeen. The score is recomputed each time. A device seen
// under a different user loses its trust and fingerprint baseline.
func (s *Service) RecordSighting(ctx context.Context, deviceID, userID, visitorID string, signals Signals) (Identity, error) {
	now := s.now()

	var d Identity
	if deviceID != "" {
		existing, err := s.store.GetDevice(ctx, deviceID)
		switch {
		case err == nil:
			d = existing
		case errors.Is(err, autherr.ErrNotFound):
		default:
			return Identity{}, err
		}
	}
	if d.DeviceID == "" {
		if deviceID == "" {
			deviceID = uuid.NewString()
		}
		d = Identity{DeviceID: deviceID, FirstSeen: now}
	}

	if userID != "" {
		if d.UserID != "" && d.UserID != userID {
			d.Trusted = false
			d.TrustExpiresAt = time.Time{}
			d.BaselineFingerprint = ""
		}
		d.UserID = userID
	}
	if visitorID != "" {
		d.VisitorID = visitorID
	}
	d.Signals = signals
	d.LastSeen = now
	d.TrustScore = Score(signals, d.FirstSeen, now)
	d.TrustLevel = LevelFor(d.TrustScore)
	if ShouldAutoBlock(signals) {
		d.TrustLevel = LevelBlocked
		d.Trusted = false
		d.TrustExpiresAt = time.Time{}
	}

	if err := s.store.SaveDevice(ctx, d); err != nil {
		return Identity{}, err
	}
	return d, nil
}

// EstablishTrust marks a user's device trusted for a duration that depends on
// its score. It returns false when the score is too low to trust.
func (s *Service) EstablishTrust(ctx context.Context, userID, deviceID, fingerprint string) (bool, error) {
	d, err := s.userDevice(ctx, userID, deviceID)
	if err != nil {
		return false, err
	}
	if ShouldAutoBlock(d.Signals) {
		return false, nil
	}

	var ttl time.Duration
	for _, td := range trustDurations {
		if d.TrustScore >= td.minScore {
			ttl = td.duration
			break
		}
	}
	if ttl == 0 {
		return false, nil
	}

	now := s.now()
	d.Trusted = true
	d.TrustExpiresAt = now.Add(ttl)
	d.BaselineFingerprint = fingerprint
	if err := s.store.SaveDevice(ctx, d); err != nil {
		return false, err
	}
	return true, nil
}

// RevokeTrust clears trust on a user's device.
func (s *Service) RevokeTrust(ctx context.Context, userID, deviceID string) error {
	d, err := s.userDevice(ctx, userID, deviceID)
	if err != nil {
		return err
	}
	d.Trusted = false
	d.TrustExpiresAt = time.Time{}
	return s.store.SaveDevice(ctx, d)
}

// VerifyTrust looks a device up by visitor id and decides whether it can be
// treated as trusted for the linked user.
func (s *Service) VerifyTrust(ctx context.Context, visitorID string) (Verdict, error) {
	if visitorID == "" {
		return Verdict{Reason: "no fingerprint provided"}, nil
	}
	d, err := s.store.FindByVisitorID(ctx, visitorID)
	if errors.Is(err, autherr.ErrNotFound) {
		return Verdict{Reason: "device not recognized"}, nil
	}
	if err != nil {
		return Verdict{}, err
	}
	if d.UserID == "" {
		return Verdict{DeviceID: d.DeviceID, Reason: "device not linked to user"}, nil
	}
	if !d.TrustValid(s.now()) {
		return Verdict{DeviceID: d.DeviceID, Reason: "device trust expired or insufficient"}, nil
	}
	if d.BaselineFingerprint != "" && d.BaselineFingerprint != visitorID {
		return Verdict{DeviceID: d.DeviceID, Reason: "device fingerprint changed significantly"}, nil
	}
	return Verdict{Trusted: true, DeviceID: d.DeviceID, UserID: d.UserID, Level: d.TrustLevel}, nil
}

// ListTrusted returns the user's devices whose trust is currently valid.
func (s *Service) ListTrusted(ctx context.Context, userID string) ([]Identity, error) {
	all, err := s.store.ListDevices(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]Identity, 0, len(all))
	for _, d := range all {
		if d.TrustValid(now) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Service) userDevice(ctx context.Context, userID, deviceID string) (Identity, error) {
	d, err := s.store.GetDevice(ctx, deviceID)
	if err != nil {
		return Identity{}, err
	}
	if d.UserID != userID {
		return Identity{}, fmt.Errorf("device %s: %w", deviceID, autherr.ErrNotFound)
	}
	return d, nil
}
