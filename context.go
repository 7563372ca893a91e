package goTrust

import "context"

// RequestInfo describes the caller of an Engine operation. It feeds per-IP
// login throttling, the session record and audit events.
type RequestInfo struct {
	ClientIP  string
	UserAgent string
	DeviceID  string
}

type requestInfoKey struct{}

// WithRequestInfo attaches info to ctx, replacing any earlier value.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFrom returns the RequestInfo attached to ctx, or the zero value.
func RequestInfoFrom(ctx context.Context) RequestInfo {
	if ctx == nil {
		return RequestInfo{}
	}
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}

// WithClientIP sets the caller's IP address on ctx.
func WithClientIP(ctx context.Context, ip string) context.Context {
	info := RequestInfoFrom(ctx)
	info.ClientIP = ip
	return WithRequestInfo(ctx, info)
}

// WithUserAgent sets the HTTP User-Agent on ctx.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	info := RequestInfoFrom(ctx)
	info.UserAgent = userAgent
	return WithRequestInfo(ctx, info)
}

// WithDeviceID sets the caller's device id on ctx. Sessions issued under ctx
// are bound to it.
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	info := RequestInfoFrom(ctx)
	info.DeviceID = deviceID
	return WithRequestInfo(ctx, info)
}

func clientIPFromContext(ctx context.Context) string  { return RequestInfoFrom(ctx).ClientIP }
func userAgentFromContext(ctx context.Context) string { return RequestInfoFrom(ctx).UserAgent }
func deviceIDFromContext(ctx context.Context) string  { return RequestInfoFrom(ctx).DeviceID }
