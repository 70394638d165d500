package release

import (
	"errors"
	"fmt"
)

// ErrNoRelease means nothing was published for a channel on a given date.
// It is a normal gap in the release cadence, not a failure.
var ErrNoRelease = errors.New("no release published on that date")

// NetworkError is a failed retrieval: transport error, timeout, or a
// non-success HTTP status other than a skippable 404.
type NetworkError struct {
	URL        string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 && e.Err != nil {
		return fmt.Sprintf("fetch %s: HTTP %d: %v", e.URL, e.StatusCode, e.Err)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// MalformedManifestError means the upstream document does not match the
// expected manifest format.
type MalformedManifestError struct {
	URL    string
	Reason string
	Err    error
}

func (e *MalformedManifestError) Error() string {
	msg := "malformed manifest"
	if e.URL != "" {
		msg += " " + e.URL
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedManifestError) Unwrap() error {
	return e.Err
}

// VerificationError means a manifest failed its checksum or signature check.
type VerificationError struct {
	URL    string
	Method string
	Err    error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s verification of %s failed: %v", e.Method, e.URL, e.Err)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// WindowExhaustedError means no candidate in the search window satisfied
// the requirement.
type WindowExhaustedError struct {
	Channel    Channel
	MaxAgeDays int
}

func (e *WindowExhaustedError) Error() string {
	return fmt.Sprintf("no viable %s build found within %d days", e.Channel, e.MaxAgeDays)
}

// InvalidConfigurationError rejects a requirement before any search runs.
type InvalidConfigurationError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsSkippable reports whether err only signals a gap in the release cadence.
func IsSkippable(err error) bool {
	return errors.Is(err, ErrNoRelease)
}
