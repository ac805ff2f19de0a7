package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNetworkUnavailable  = errors.New("network unavailable")
	ErrRemoteRecordMissing = errors.New("remote record missing")
	ErrTransferFailed      = errors.New("transfer failed")
	ErrRetryExhausted      = errors.New("retry exhausted")
	ErrValidation          = errors.New("validation failed")
	ErrConflict            = errors.New("conflict detected")
	ErrCorruption          = errors.New("corruption suspected")
	ErrOffline             = errors.New("offline")
	ErrTimeout             = errors.New("timeout")
	ErrConfiguration       = errors.New("configuration error")
	ErrBusy                = errors.New("operation already in progress")
	ErrNotFound            = errors.New("not found")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransferFailed
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorDetails carries the structured pieces of a classified error for logging.
type ErrorDetails struct {
	Kind    string
	Hint    string
	Message string
}

// Details classifies err against the sentinel markers. Unmarked errors report
// kind "unknown"; context deadline expiry is reported as a timeout.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: "unknown", Message: err.Error()}
	for _, m := range markers {
		if errors.Is(err, m.err) {
			details.Kind = m.kind
			details.Hint = m.hint
			return details
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		details.Kind = "timeout"
		details.Hint = "remote did not answer in time; the task will be retried"
	}
	return details
}

var markers = []struct {
	err  error
	kind string
	hint string
}{
	{ErrNetworkUnavailable, "network_unavailable", "check connectivity; work resumes when online"},
	{ErrRemoteRecordMissing, "remote_record_missing", "remote project record could not be created; task deferred"},
	{ErrTimeout, "timeout", "remote did not answer in time; the task will be retried"},
	{ErrTransferFailed, "transfer_failed", "transfer will be retried with backoff"},
	{ErrRetryExhausted, "retry_exhausted", "run `shotsync queue retry` to try again"},
	{ErrValidation, "validation_failed", "remote snapshot is malformed; project was not loaded"},
	{ErrConflict, "conflict_detected", "remote copy preserved; review the project manually"},
	{ErrCorruption, "corruption_suspected", "local copy looks truncated; remote copy preserved"},
	{ErrOffline, "offline", "reconnect and retry"},
	{ErrConfiguration, "configuration", "check the configuration file"},
	{ErrBusy, "busy", "wait for the running operation to finish"},
	{ErrNotFound, "not_found", "verify the identifier"},
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "sync failure"
	}
	return strings.Join(parts, ": ")
}
