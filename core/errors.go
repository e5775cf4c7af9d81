package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TrackingErrorBadInput      = "TRACKING_BAD_INPUT"
	TrackingErrorUnauthorized  = "TRACKING_UNAUTHORIZED"
	TrackingErrorNotFound      = "TRACKING_NOT_FOUND"
	TrackingErrorConflict      = "TRACKING_CONFLICT"
	TrackingErrorProviderCall  = "TRACKING_PROVIDER_CALL_FAILED"
	TrackingErrorRateLimited   = "TRACKING_RATE_LIMITED"
	TrackingErrorRedactionLeak = "TRACKING_REDACTION_LEAK"
	TrackingErrorInternal      = "TRACKING_INTERNAL_ERROR"
)

func NewBadInput(message string) *goerrors.Error {
	return ensureErrorEnvelope(goerrors.New(message, goerrors.CategoryBadInput).
		WithTextCode(TrackingErrorBadInput))
}

func WrapBadInput(err error, message string) *goerrors.Error {
	return ensureErrorEnvelope(goerrors.Wrap(err, goerrors.CategoryBadInput, message).
		WithTextCode(TrackingErrorBadInput))
}

func NewUnauthorized(message string) *goerrors.Error {
	return ensureErrorEnvelope(goerrors.New(message, goerrors.CategoryAuth).
		WithTextCode(TrackingErrorUnauthorized))
}

func WrapUnauthorized(err error, message string) *goerrors.Error {
	return ensureErrorEnvelope(goerrors.Wrap(err, goerrors.CategoryAuth, message).
		WithTextCode(TrackingErrorUnauthorized))
}

func NewNotFound(message string) *goerrors.Error {
	return ensureErrorEnvelope(goerrors.New(message, goerrors.CategoryNotFound).
		WithTextCode(TrackingErrorNotFound))
}

// NewProviderFailure marks transient upstream failures (timeouts, 5xx,
// transport errors). The task runner retries this class with bounded
// attempts.
func NewProviderFailure(message string) *goerrors.Error {
	return ensureErrorEnvelope(goerrors.New(message, goerrors.CategoryExternal).
		WithTextCode(TrackingErrorProviderCall))
}

func WrapProviderFailure(err error, message string) *goerrors.Error {
	return ensureErrorEnvelope(goerrors.Wrap(err, goerrors.CategoryExternal, message).
		WithTextCode(TrackingErrorProviderCall))
}

// NewRedactionLeak reports a denylisted token surviving redaction. This
// indicates a broken pattern table, not a runtime condition, so it is
// never retried; deliveries carrying it go straight to the dead letter.
func NewRedactionLeak(message string) *goerrors.Error {
	return ensureErrorEnvelope(goerrors.New(message, goerrors.CategoryInternal).
		WithTextCode(TrackingErrorRedactionLeak))
}

// IsNotFound reports whether err is a missing-reference soft failure.
func IsNotFound(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.Category == goerrors.CategoryNotFound
}

// IsRetryable reports whether err should be requeued by the worker.
// Bad input, missing references, auth failures, and invariant
// violations cannot be fixed by retrying.
func IsRetryable(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return true
	}
	switch richErr.Category {
	case goerrors.CategoryBadInput,
		goerrors.CategoryValidation,
		goerrors.CategoryNotFound,
		goerrors.CategoryAuth,
		goerrors.CategoryAuthz:
		return false
	case goerrors.CategoryInternal:
		return richErr.TextCode != TrackingErrorRedactionLeak
	default:
		return true
	}
}

// IsRedactionLeak reports whether err is the fatal compliance class.
func IsRedactionLeak(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TrackingErrorRedactionLeak
}

func trackingErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not found"):
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryNotFound).
			WithTextCode(TrackingErrorNotFound))
	case strings.Contains(msg, "signature"), strings.Contains(msg, "unauthorized"):
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryAuth).
			WithTextCode(TrackingErrorUnauthorized))
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "parse"):
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryBadInput).
			WithTextCode(TrackingErrorBadInput))
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = trackingHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTrackingTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTrackingTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return TrackingErrorBadInput
	case goerrors.CategoryNotFound:
		return TrackingErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return TrackingErrorUnauthorized
	case goerrors.CategoryConflict:
		return TrackingErrorConflict
	case goerrors.CategoryRateLimit:
		return TrackingErrorRateLimited
	case goerrors.CategoryExternal, goerrors.CategoryOperation:
		return TrackingErrorProviderCall
	default:
		return TrackingErrorInternal
	}
}

func trackingHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
