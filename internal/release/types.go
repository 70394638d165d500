// Package release defines the shared model of Rust toolchain releases:
// channels, calendar dates, targets, profiles, channel manifests and the
// requirement a release has to satisfy.
//
// It also owns the error taxonomy used by the manifest client and the
// search engine, so callers can classify failures with errors.Is and
// errors.As without importing those packages.
package release

import (
	"fmt"
	"strings"
)

// Channel is a release track.
type Channel string

const (
	// Stable releases carry a semantic version and ship every six weeks.
	Stable Channel = "stable"
	// Beta releases carry a pre-release semantic version.
	Beta Channel = "beta"
	// Nightly releases are identified only by date.
	Nightly Channel = "nightly"
)

// ParseChannel converts a user supplied name into a Channel.
func ParseChannel(s string) (Channel, error) {
	switch c := Channel(strings.ToLower(strings.TrimSpace(s))); c {
	case Stable, Beta, Nightly:
		return c, nil
	default:
		return "", &InvalidConfigurationError{
			Field:  "channel",
			Reason: fmt.Sprintf("unknown channel %q (want stable, beta or nightly)", s),
		}
	}
}

// String returns the channel name.
func (c Channel) String() string {
	return string(c)
}

// HasVersion reports whether releases on this channel carry a semantic version.
func (c Channel) HasVersion() bool {
	return c == Stable || c == Beta
}

// Profile is a named component set published in every manifest.
type Profile string

const (
	ProfileComplete Profile = "complete"
	ProfileDefault  Profile = "default"
	ProfileMinimal  Profile = "minimal"
)

// ParseProfile converts a user supplied name into a Profile.
func ParseProfile(s string) (Profile, error) {
	switch p := Profile(strings.ToLower(strings.TrimSpace(s))); p {
	case ProfileComplete, ProfileDefault, ProfileMinimal:
		return p, nil
	default:
		return "", &InvalidConfigurationError{
			Field:  "profile",
			Reason: fmt.Sprintf("unknown profile %q (want complete, default or minimal)", s),
		}
	}
}

// String returns the profile name.
func (p Profile) String() string {
	return string(p)
}

// Target is a platform identifier (a target triple such as
// "x86_64-unknown-linux-gnu"). Targets compare by exact string equality.
type Target string

// WildcardTarget is used by architecture independent packages like rust-src.
const WildcardTarget Target = "*"

// String returns the target triple.
func (t Target) String() string {
	return string(t)
}

// TargetMode selects how the required target set is built.
type TargetMode string

const (
	// TargetsAll requires every tier-1 target.
	TargetsAll TargetMode = "all"
	// TargetsCurrent requires only the host target.
	TargetsCurrent TargetMode = "current"
)

// ParseTargetMode converts a user supplied name into a TargetMode.
func ParseTargetMode(s string) (TargetMode, error) {
	switch m := TargetMode(strings.ToLower(strings.TrimSpace(s))); m {
	case TargetsAll, TargetsCurrent:
		return m, nil
	default:
		return "", &InvalidConfigurationError{
			Field:  "targets",
			Reason: fmt.Sprintf("unknown target mode %q (want all or current)", s),
		}
	}
}

// String returns the mode name.
func (m TargetMode) String() string {
	return string(m)
}
