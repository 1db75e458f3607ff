package erp

import (
	"errors"
	"fmt"
)

var (
	ErrNotConfigured        = errors.New("erp base url not configured")
	ErrTimeout              = errors.New("erp request timed out")
	ErrUpstreamUnreachable  = errors.New("erp unreachable")
	ErrUpstreamStatus       = errors.New("erp returned non-success status")
	ErrInvalidResponseShape = errors.New("invalid erp response format")
)

// UpstreamError carries the HTTP status of a non-2xx ERP response. It matches
// ErrUpstreamStatus with errors.Is.
type UpstreamError struct {
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("erp api returned status: %d", e.Status)
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamStatus
}

// Describe returns the taxonomy message for err without the wrapped transport
// detail, which can carry internal URLs. Errors outside the taxonomy yield "".
func Describe(err error) string {
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		return upstreamErr.Error()
	}
	for _, sentinel := range []error{
		ErrNotConfigured,
		ErrTimeout,
		ErrUpstreamUnreachable,
		ErrInvalidResponseShape,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return ""
}
