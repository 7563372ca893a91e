package httpapi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/MrEthical07/goTrust/autherr"
)

const (
	CodeUnauthorized = "UNAUTHORIZED"
	CodeExpired      = "EXPIRED"
	CodeRateLimited  = "RATE_LIMITED"
	CodeNotFound     = "NOT_FOUND"
	CodeValidation   = "VALIDATION_ERROR"
	CodeForbidden    = "FORBIDDEN"
	CodeUnavailable  = "UNAVAILABLE"
	CodeInternal     = "INTERNAL_ERROR"
)

// mapError translates the error taxonomy into a status, code and a message
// that is safe to show.
func mapError(err error) (int, string, string) {
	if errors.Is(err, autherr.ErrCredentialNotFound) {
		return http.StatusUnauthorized, CodeUnauthorized, "invalid credential"
	}
	switch autherr.KindOf(err) {
	case autherr.KindExpired:
		return http.StatusUnauthorized, CodeExpired, "expired"
	case autherr.KindInvalidToken, autherr.KindInvalidCredential:
		return http.StatusUnauthorized, CodeUnauthorized, "invalid credential"
	case autherr.KindRateLimited:
		return http.StatusTooManyRequests, CodeRateLimited, "too many requests"
	case autherr.KindNotFound:
		return http.StatusNotFound, CodeNotFound, "resource not found"
	case autherr.KindValidationFailed:
		return http.StatusBadRequest, CodeValidation, validationReason(err)
	case autherr.KindServiceUnavailable, autherr.KindProviderFailure:
		return http.StatusServiceUnavailable, CodeUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, CodeInternal, "internal server error"
	}
}

func validationReason(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, autherr.ErrValidationFailed.Error()+": "); i >= 0 {
		return msg[i+len(autherr.ErrValidationFailed.Error())+2:]
	}
	return msg
}

func (h *Handler) writeMappedError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	status, code, msg := mapError(err)
	if retry, ok := autherr.RetryAfter(err); ok {
		w.Header().Set("Retry-After", fmt.Sprint(int(math.Ceil(retry.Seconds()))))
	}
	h.logOperationError(ctx, operation, status, code, err)
	writeError(w, status, code, msg)
}

func (h *Handler) writeValidationError(ctx context.Context, w http.ResponseWriter, operation, msg string) {
	h.logOperationError(ctx, operation, http.StatusBadRequest, CodeValidation, errors.New(msg))
	writeError(w, http.StatusBadRequest, CodeValidation, msg)
}

func (h *Handler) logOperationError(ctx context.Context, operation string, statusCode int, code string, err error) {
	fields := []any{
		"operation", operation,
		"outcome", "failure",
		"status_code", statusCode,
		"error_code", code,
		"request_id", requestIDFromContext(ctx),
	}
	if err != nil {
		fields = append(fields, "error_kind", autherr.KindOf(err).String())
	}
	if statusCode >= 500 {
		h.logger.ErrorContext(ctx, "http operation failed", append(fields, "error", err)...)
		return
	}
	h.logger.WarnContext(ctx, "http operation failed", fields...)
}
