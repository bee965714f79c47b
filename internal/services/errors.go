package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks retryable provider failures (5xx, rate limits, resets).
	ErrTransient = errors.New("transient failure")
	// ErrTimeout marks an external call that exceeded its deadline.
	ErrTimeout = errors.New("timeout")
	// ErrValidation marks bad caller input that no retry can fix.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a missing episode, transcript, or summary row.
	ErrNotFound = errors.New("not found")
	// ErrConfiguration marks missing credentials or settings for a required service.
	ErrConfiguration = errors.New("configuration error")
	// ErrAgentOutput marks unparseable or malformed model output; fatal for the run.
	ErrAgentOutput = errors.New("agent output error")
	// ErrQuota marks per-user rate or quota limits on expensive operations.
	ErrQuota = errors.New("quota exceeded")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorDetails carries the classification and user-facing message for an error.
type ErrorDetails struct {
	Marker  error
	Message string
}

var markers = []error{
	ErrValidation,
	ErrNotFound,
	ErrConfiguration,
	ErrAgentOutput,
	ErrQuota,
	ErrTimeout,
	ErrTransient,
}

// Details resolves the sentinel marker and a short human-readable message for
// an error. The message is what gets persisted as error_message; it never
// includes stack traces or provider response bodies.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Message: strings.TrimSpace(err.Error())}
	for _, marker := range markers {
		if errors.Is(err, marker) {
			details.Marker = marker
			break
		}
	}
	if details.Marker != nil {
		prefix := details.Marker.Error() + ": "
		details.Message = strings.TrimPrefix(details.Message, prefix)
	}
	return details
}

// IsRetryable reports whether a failure may be retried at the adapter level.
// Agent output, validation, and configuration failures are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeout)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
