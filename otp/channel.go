package otp

import (
	"context"
	"time"

	"github.com/MrEthical07/goTrust/authmethod"
)

// Delivery is one outbound code.
type Delivery struct {
	Kind      authmethod.Kind
	Target    string
	Code      string
	ExpiresIn time.Duration
}

// Channel delivers codes over SMS or email. It reports only success or
// failure; Send must honour ctx cancellation.
type Channel interface {
	Send(ctx context.Context, d Delivery) error
}

// ChannelFunc adapts a function to Channel.
type ChannelFunc func(ctx context.Context, d Delivery) error

func (f ChannelFunc) Send(ctx context.Context, d Delivery) error { return f(ctx, d) }

// Throttle is the optional per-target limiter applied around sends and
// verifications.
type Throttle interface {
	AllowResend(ctx context.Context, target string) error
	CheckVerify(ctx context.Context, target string) error
	RecordVerifyFailure(ctx context.Context, target string) error
	ResetVerify(ctx context.Context, target string) error
}
