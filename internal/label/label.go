// Package label turns a search outcome into a toolchain name that rustup
// understands, such as "1.89.0", "beta-2025-09-01" or "nightly-2025-09-06".
package label

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/ZebulonRouseFrantzich/lastgood/internal/release"
	"github.com/ZebulonRouseFrantzich/lastgood/internal/search"
)

// ErrNoVersion means a manifest carries no usable rust version.
var ErrNoVersion = errors.New("no rust version in manifest")

// Format returns the label for a found outcome.
//
// Nightly always yields "nightly-<date>". Stable and beta yield the release
// version unless forceDate is set or the version cannot be parsed, in which
// case they fall back to "<channel>-<date>".
func Format(channel release.Channel, outcome *search.Outcome, forceDate bool) (string, error) {
	if outcome == nil {
		return "", errors.New("no search outcome")
	}
	if !outcome.Found() {
		return "", &release.WindowExhaustedError{Channel: channel, MaxAgeDays: outcome.MaxAgeDays}
	}

	dated := fmt.Sprintf("%s-%s", channel, outcome.Date)
	if !channel.HasVersion() || forceDate {
		return dated, nil
	}

	v, err := ParseVersion(outcome.Version)
	if err != nil {
		return dated, nil
	}
	return v.String(), nil
}

// ParseVersion extracts the semantic version from a rust package version
// string such as "1.89.0 (29483883e 2025-08-04)".
func ParseVersion(raw string) (*semver.Version, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil, ErrNoVersion
	}
	v, err := semver.StrictNewVersion(fields[0])
	if err != nil {
		return nil, fmt.Errorf("parse rust version %q: %w", raw, err)
	}
	return v, nil
}
