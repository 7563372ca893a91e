package goTrust

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goTrust/autherr"
	"github.com/MrEthical07/goTrust/device"
)

// DeviceAssessment is the outcome of one device sighting.
type DeviceAssessment struct {
	Device          device.Identity
	Blocked         bool
	Recommendations []string
	// SessionsRevoked counts sessions bound to a blocked device that were
	// ended. Always zero unless Config.Device.AutoBlock is set.
	SessionsRevoked int
}

// RecordDeviceSighting scores a device from its latest signals. With
// Config.Device.AutoBlock a blocked device also loses its live sessions.
func (e *Engine) RecordDeviceSighting(ctx context.Context, deviceID, userID, visitorID string, signals device.Signals) (DeviceAssessment, error) {
	d, err := e.devices.RecordSighting(ctx, deviceID, userID, visitorID, signals)
	if err != nil {
		return DeviceAssessment{}, err
	}
	out := DeviceAssessment{
		Device:          d,
		Blocked:         device.ShouldAutoBlock(signals),
		Recommendations: device.Recommendations(d.TrustScore),
	}
	if !out.Blocked {
		return out, nil
	}

	e.metricInc(MetricDeviceAutoBlocked)
	e.logger.WarnContext(ctx, "device auto-blocked",
		"operation", "record_device_sighting",
		"device_id", d.DeviceID,
		"user_id", d.UserID,
		"score", d.TrustScore,
	)
	if e.config.Device.AutoBlock && d.UserID != "" {
		n, err := e.revokeDeviceSessions(ctx, d.UserID, d.DeviceID)
		if err != nil {
			return out, err
		}
		out.SessionsRevoked = n
	}
	e.emitAudit(ctx, auditEventDeviceAutoBlocked, false, d.UserID, "", "", nil, func() map[string]string {
		return map[string]string{
			"device_id":        d.DeviceID,
			"score":            fmt.Sprint(d.TrustScore),
			"sessions_revoked": fmt.Sprint(out.SessionsRevoked),
		}
	})
	return out, nil
}

func (e *Engine) revokeDeviceSessions(ctx context.Context, userID, deviceID string) (int, error) {
	all, err := e.sessions.ListForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, s := range all {
		if s.DeviceID != deviceID {
			continue
		}
		if err := e.sessions.Delete(ctx, s.SessionID); err != nil && !errors.Is(err, autherr.ErrNotFound) {
			return n, err
		}
		e.metricInc(MetricSessionInvalidated)
		n++
	}
	return n, nil
}

// EstablishDeviceTrust marks the user's device trusted and returns a device
// trust token for the cookie. An empty token with a nil error means the
// device scored too low to be trusted.
func (e *Engine) EstablishDeviceTrust(ctx context.Context, userID, deviceID, fingerprint string) (string, error) {
	if userID == "" || deviceID == "" {
		return "", autherr.Validation("user id and device id are required")
	}
	ok, err := e.devices.EstablishTrust(ctx, userID, deviceID, fingerprint)
	if err != nil {
		return "", err
	}
	if !ok {
		e.emitAudit(ctx, auditEventDeviceTrustEstablish, false, userID, "", "", nil, func() map[string]string {
			return map[string]string{"device_id": deviceID, "reason": "score too low"}
		})
		return "", nil
	}
	tok, err := e.tokens.IssueDeviceTrustToken(deviceID, userID, e.config.Token.DeviceTrustTTL)
	if err != nil {
		return "", err
	}
	e.metricInc(MetricDeviceTrustEstablished)
	e.emitAudit(ctx, auditEventDeviceTrustEstablish, true, userID, "", "", nil, func() map[string]string {
		return map[string]string{"device_id": deviceID}
	})
	return tok, nil
}

// RevokeDeviceTrust clears trust on the user's device.
func (e *Engine) RevokeDeviceTrust(ctx context.Context, userID, deviceID string) error {
	if userID == "" || deviceID == "" {
		return autherr.Validation("user id and device id are required")
	}
	if err := e.devices.RevokeTrust(ctx, userID, deviceID); err != nil {
		return err
	}
	e.metricInc(MetricDeviceTrustRevoked)
	e.emitAudit(ctx, auditEventDeviceTrustRevoked, true, userID, "", "", nil, func() map[string]string {
		return map[string]string{"device_id": deviceID}
	})
	return nil
}

// VerifyDeviceTrust decides whether the device behind visitorID is trusted.
// When trustToken is non-empty it must be a valid device trust token for the
// same device and user.
func (e *Engine) VerifyDeviceTrust(ctx context.Context, visitorID, trustToken string) (device.Verdict, error) {
	v, err := e.devices.VerifyTrust(ctx, visitorID)
	if err != nil || !v.Trusted || trustToken == "" {
		return v, err
	}
	claims, err := e.tokens.ValidateDeviceTrustToken(trustToken)
	if err != nil {
		if autherr.KindOf(err) == autherr.KindServiceUnavailable {
			return device.Verdict{}, err
		}
		return device.Verdict{DeviceID: v.DeviceID, Reason: "device trust token invalid"}, nil
	}
	if claims.DeviceID != v.DeviceID || claims.Subject != v.UserID {
		return device.Verdict{DeviceID: v.DeviceID, Reason: "device trust token does not match device"}, nil
	}
	return v, nil
}

func (e *Engine) ListTrustedDevices(ctx context.Context, userID string) ([]device.Identity, error) {
	if userID == "" {
		return nil, autherr.Validation("user id is required")
	}
	return e.devices.ListTrusted(ctx, userID)
}
