package search

import (
	"context"

	"github.com/ZebulonRouseFrantzich/lastgood/internal/availability"
	"github.com/ZebulonRouseFrantzich/lastgood/internal/release"
)

// Fetcher retrieves channel manifests. *manifest.Client implements it.
type Fetcher interface {
	FetchLatest(ctx context.Context, channel release.Channel) (*release.Manifest, error)
	FetchForDate(ctx context.Context, channel release.Channel, date release.Date) (*release.Manifest, error)
}

// State is a phase of one search run.
type State int

const (
	StateInit State = iota
	StateProbing
	StateFound
	StateExhausted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateProbing:
		return "probing"
	case StateFound:
		return "found"
	case StateExhausted:
		return "exhausted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateFound || s == StateExhausted || s == StateFailed
}

// Verdict is what happened to one candidate date.
type Verdict int

const (
	// VerdictNoRelease means nothing was published that day.
	VerdictNoRelease Verdict = iota
	// VerdictRejected means a manifest exists but misses something.
	VerdictRejected
	// VerdictAccepted means the manifest satisfies the requirement.
	VerdictAccepted
)

func (v Verdict) String() string {
	switch v {
	case VerdictNoRelease:
		return "no release"
	case VerdictRejected:
		return "rejected"
	case VerdictAccepted:
		return "accepted"
	default:
		return "unknown"
	}
}

// Event describes one probed date.
type Event struct {
	RunID string
	Date  release.Date

	// Index counts probed dates from zero; Total is the window size.
	Index int
	Total int

	Verdict Verdict
	Result  availability.Result
}

// Observer is notified once per probed date, in probing order.
type Observer func(Event)

// Outcome is the terminal result of a search run.
type Outcome struct {
	RunID   string
	Channel release.Channel
	State   State

	// Anchor is the date of the channel's latest manifest; LowerBound is the
	// oldest date the run may return.
	Anchor     release.Date
	LowerBound release.Date
	MaxAgeDays int

	// Date, Version and Manifest describe the accepted release. They are
	// zero unless State is StateFound.
	Date     release.Date
	Version  string
	Manifest *release.Manifest

	// Probed is the number of candidate dates examined.
	Probed int

	// Components are checked for every target. Skipped are exception-listed
	// components that only have to be present in the manifest.
	Components []string
	Skipped    []string
}

// Found reports whether a release was accepted.
func (o *Outcome) Found() bool {
	return o != nil && o.State == StateFound
}
