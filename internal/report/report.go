// Package report renders the result of a search for humans and scripts.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ZebulonRouseFrantzich/lastgood/internal/release"
	"github.com/ZebulonRouseFrantzich/lastgood/internal/search"
)

// Format is an output encoding.
type Format string

const (
	// FormatText prints only the label, ready for `rustup toolchain install`.
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates an output format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", &release.InvalidConfigurationError{
			Field:  "output",
			Reason: fmt.Sprintf("unknown format %q (want text, json or yaml)", s),
		}
	}
}

// Report describes a successful search.
type Report struct {
	Label      string   `json:"label" yaml:"label"`
	Channel    string   `json:"channel" yaml:"channel"`
	Date       string   `json:"date" yaml:"date"`
	Version    string   `json:"version,omitempty" yaml:"version,omitempty"`
	Anchor     string   `json:"anchor" yaml:"anchor"`
	MaxAgeDays int      `json:"max_age_days" yaml:"max_age_days"`
	Probed     int      `json:"probed" yaml:"probed"`
	Profile    string   `json:"profile" yaml:"profile"`
	Components []string `json:"components" yaml:"components"`
	Skipped    []string `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Targets    []string `json:"targets" yaml:"targets"`
	Platforms  string   `json:"platform_data,omitempty" yaml:"platform_data,omitempty"`
	RunID      string   `json:"run_id" yaml:"run_id"`
}

// New assembles a report from a found outcome and its label.
// platformsVersion identifies the tier-1 data the search ran against.
func New(req release.Requirement, outcome *search.Outcome, label, platformsVersion string) *Report {
	r := &Report{
		Label:      label,
		Channel:    string(req.Channel),
		MaxAgeDays: req.MaxAgeDays,
		Profile:    string(req.Profile),
		Platforms:  platformsVersion,
		Targets:    make([]string, len(req.Targets)),
	}
	for i, t := range req.Targets {
		r.Targets[i] = string(t)
	}
	if outcome == nil {
		return r
	}

	r.RunID = outcome.RunID
	r.Date = outcome.Date.String()
	r.Anchor = outcome.Anchor.String()
	r.Probed = outcome.Probed
	r.Components = outcome.Components
	r.Skipped = outcome.Skipped
	if req.Channel.HasVersion() {
		r.Version = strings.TrimSpace(outcome.Version)
	}
	return r
}

// Write encodes r to w.
func Write(w io.Writer, format Format, r *Report) error {
	switch format {
	case FormatText, "":
		_, err := fmt.Fprintln(w, r.Label)
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
