package release

import "fmt"

// DefaultMaxAgeDays is the default look-back window.
const DefaultMaxAgeDays = 90

// MaxMaxAgeDays caps the look-back window at roughly a century, well before
// date arithmetic on the window could overflow.
const MaxMaxAgeDays = 36500

// Requirement is the immutable input of a search.
type Requirement struct {
	Channel Channel
	Profile Profile

	// Components are requested in addition to the profile.
	Components []string

	Mode    TargetMode
	Targets []Target

	// Host is the current platform. It only matters in TargetsCurrent mode.
	Host Target

	// MaxAgeDays bounds the search: the oldest candidate is the channel's
	// latest release date minus MaxAgeDays, inclusive.
	MaxAgeDays int
}

// Validate rejects requirements that cannot be searched. It never needs
// network access.
func (r Requirement) Validate() error {
	if _, err := ParseChannel(string(r.Channel)); err != nil {
		return err
	}
	if _, err := ParseProfile(string(r.Profile)); err != nil {
		return err
	}
	if _, err := ParseTargetMode(string(r.Mode)); err != nil {
		return err
	}
	if r.MaxAgeDays < 0 {
		return &InvalidConfigurationError{
			Field:  "max-age",
			Reason: fmt.Sprintf("must not be negative, got %d", r.MaxAgeDays),
		}
	}
	if r.MaxAgeDays > MaxMaxAgeDays {
		return &InvalidConfigurationError{
			Field:  "max-age",
			Reason: fmt.Sprintf("must be at most %d days, got %d", MaxMaxAgeDays, r.MaxAgeDays),
		}
	}
	if len(r.Targets) == 0 {
		return &InvalidConfigurationError{Field: "targets", Reason: "target set is empty"}
	}
	for _, t := range r.Targets {
		if t == "" {
			return &InvalidConfigurationError{Field: "targets", Reason: "empty target triple"}
		}
	}
	if r.Mode == TargetsCurrent {
		if r.Host == "" {
			return &InvalidConfigurationError{Field: "host", Reason: "current target mode needs a host target"}
		}
		if len(r.Targets) != 1 || r.Targets[0] != r.Host {
			return &InvalidConfigurationError{Field: "targets", Reason: "current target mode must target exactly the host"}
		}
	}
	for _, c := range r.Components {
		if c == "" {
			return &InvalidConfigurationError{Field: "component", Reason: "empty component name"}
		}
	}
	return nil
}

// IsCurrentHost reports whether the target set is exactly the current host.
func (r Requirement) IsCurrentHost() bool {
	return r.Mode == TargetsCurrent && len(r.Targets) == 1 && r.Host != "" && r.Targets[0] == r.Host
}
