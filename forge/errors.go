package forge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Sentinel errors shared by every provider. Check
// them with errors.Is.
var (
	// ErrAuthFailure indicates an invalid, expired or
	// insufficiently scoped token.
	ErrAuthFailure = errors.New("authentication failed")

	// ErrNotFound indicates the requested path or
	// resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrBranchExists indicates the branch to create
	// is already present.
	ErrBranchExists = errors.New("branch already exists")

	// ErrRefNotFound indicates the base ref of a new
	// branch does not exist.
	ErrRefNotFound = errors.New("ref not found")

	// ErrConflict indicates the upload target appeared
	// on the remote since it was checked.
	ErrConflict = errors.New("remote path conflict")

	// ErrRateLimited indicates the provider throttled
	// the request. Transient.
	ErrRateLimited = errors.New("rate limited")

	// ErrPayloadTooLarge indicates the provider
	// rejected the content size.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrValidationFailed indicates the provider
	// rejected the request parameters (for example an
	// empty pull request diff).
	ErrValidationFailed = errors.New("validation failed")

	// ErrTransport indicates a network failure, a
	// timeout or a server-side error. Transient.
	ErrTransport = errors.New("transport error")
)

// APIError is a classified provider failure.
type APIError struct {
	// Kind is one of the sentinel errors above.
	Kind error
	// Status is the HTTP status, zero when no
	// response was received.
	Status int
	// Message is the provider's error text.
	Message string
	// RetryAfter is the provider's backoff hint for
	// rate limiting, zero when absent.
	RetryAfter time.Duration
	// Err is the underlying library or network error.
	Err error
}

// Error implements error.
func (e *APIError) Error() string {
	var sb strings.Builder

	sb.WriteString(e.Kind.Error())

	if e.Status != 0 {
		fmt.Fprintf(&sb, " (HTTP %d)", e.Status)
	}

	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	} else if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}

	return sb.String()
}

// Unwrap exposes both the sentinel kind and the cause.
func (e *APIError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}

// IsTransient reports whether err is worth retrying:
// rate limiting or transport failures.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTransport)
}

// RetryAfter returns the backoff hint carried by err,
// if any.
func RetryAfter(err error) (time.Duration, bool) {
	var ae *APIError
	if errors.As(err, &ae) && ae.RetryAfter > 0 {
		return ae.RetryAfter, true
	}

	return 0, false
}

// FromStatus classifies an unsuccessful HTTP status
// into an *APIError. A 403 whose message mentions a
// rate limit is reported as ErrRateLimited.
func FromStatus(
	status int,
	message string,
	retryAfter time.Duration,
) *APIError {
	ae := &APIError{
		Status:     status,
		Message:    strings.TrimSpace(message),
		RetryAfter: retryAfter,
	}

	lower := strings.ToLower(message)

	switch {
	case status == http.StatusTooManyRequests:
		ae.Kind = ErrRateLimited
	case status == http.StatusForbidden &&
		(strings.Contains(lower, "rate") ||
			strings.Contains(lower, "limit")):
		ae.Kind = ErrRateLimited
	case status == http.StatusUnauthorized,
		status == http.StatusForbidden:
		ae.Kind = ErrAuthFailure
	case status == http.StatusNotFound:
		ae.Kind = ErrNotFound
	case status == http.StatusConflict:
		ae.Kind = ErrConflict
	case status == http.StatusRequestEntityTooLarge:
		ae.Kind = ErrPayloadTooLarge
	case status == http.StatusBadRequest,
		status == http.StatusUnprocessableEntity:
		ae.Kind = ErrValidationFailed
	case status == http.StatusRequestTimeout,
		status >= http.StatusInternalServerError:
		ae.Kind = ErrTransport
	default:
		ae.Kind = ErrValidationFailed
	}

	return ae
}

// FromTransport classifies an error raised before any
// HTTP response was received. Cancellation by the
// caller is passed through untouched so it is never
// mistaken for a retryable failure.
func FromTransport(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return err
	}

	return &APIError{Kind: ErrTransport, Err: err}
}

// ParseRetryAfter decodes a Retry-After header value
// given in seconds or as an HTTP date.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}

	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}

		return time.Duration(secs) * time.Second
	}

	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}

	return 0
}

// Reclassify returns err with its kind replaced by
// kind when it currently matches from. It is used by
// providers to refine a generic status mapping for a
// specific operation (e.g. a 404 on branch creation
// means the base ref is missing).
func Reclassify(err error, from error, kind error) error {
	var ae *APIError
	if !errors.As(err, &ae) || !errors.Is(ae.Kind, from) {
		return err
	}

	cp := *ae
	cp.Kind = kind

	return &cp
}
