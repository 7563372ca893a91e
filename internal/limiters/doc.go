// Package limiters holds the factor-specific throttles built on Redis
// counters.
//
// [OTPThrottle] enforces a per-target resend cooldown and a verification
// failure budget and satisfies otp.Throttle. [TOTPLimiter] caps wrong
// authenticator-app codes per user. Both count failures through the atomic
// fixed window in internal/rate.
//
// Every method is nil-safe. Rejections are *autherr.RateLimitError values;
// Redis failures wrap autherr.ErrServiceUnavailable.
package limiters
