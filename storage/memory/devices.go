package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrEthical07/goTrust/autherr"
	"github.com/MrEthical07/goTrust/device"
)

// DeviceStore is an in-memory [device.Store]. Saves are last-writer-wins.
type DeviceStore struct {
	mu      sync.RWMutex
	devices map[string]device.Identity
}

func NewDeviceStore() *DeviceStore {
	return &DeviceStore{devices: make(map[string]device.Identity)}
}

func (s *DeviceStore) GetDevice(_ context.Context, deviceID string) (device.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[deviceID]
	if !ok {
		return device.Identity{}, fmt.Errorf("device %s: %w", deviceID, autherr.ErrNotFound)
	}
	return d, nil
}

// FindByVisitorID returns the most recently seen device carrying visitorID.
func (s *DeviceStore) FindByVisitorID(_ context.Context, visitorID string) (device.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found device.Identity
	for _, d := range s.devices {
		if d.VisitorID != visitorID {
			continue
		}
		if found.DeviceID == "" || d.LastSeen.After(found.LastSeen) {
			found = d
		}
	}
	if found.DeviceID == "" {
		return device.Identity{}, fmt.Errorf("visitor %s: %w", visitorID, autherr.ErrNotFound)
	}
	return found, nil
}

func (s *DeviceStore) ListDevices(_ context.Context, userID string) ([]device.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]device.Identity, 0)
	for _, d := range s.devices {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *DeviceStore) SaveDevice(_ context.Context, d device.Identity) error {
	if d.DeviceID == "" {
		return autherr.Validation("device id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[d.DeviceID] = d
	return nil
}

var _ device.Store = (*DeviceStore)(nil)
