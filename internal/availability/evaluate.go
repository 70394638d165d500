package availability

import (
	"fmt"
	"strings"

	"github.com/ZebulonRouseFrantzich/lastgood/internal/release"
)

// Miss is one unmet (component, target) pair. Target is empty when the
// component is missing from the manifest altogether.
type Miss struct {
	Component string
	Target    release.Target
}

func (m Miss) String() string {
	if m.Target == "" {
		return m.Component + " (not shipped)"
	}
	return fmt.Sprintf("%s for %s", m.Component, m.Target)
}

// Result is the outcome of evaluating one manifest.
type Result struct {
	Missing []Miss
}

// Satisfied reports whether every check passed.
func (r Result) Satisfied() bool {
	return len(r.Missing) == 0
}

// String summarizes the misses for logs.
func (r Result) String() string {
	if r.Satisfied() {
		return "all components available"
	}
	parts := make([]string, len(r.Missing))
	for i, m := range r.Missing {
		parts[i] = m.String()
	}
	return "missing " + strings.Join(parts, ", ")
}

// Evaluate checks every planned pair against m. A component absent from m
// fails even when exceptions leave it no targets to check.
func (p *Plan) Evaluate(m *release.Manifest) Result {
	var result Result
	for _, check := range p.checks {
		if !m.Has(check.Component) {
			result.Missing = append(result.Missing, Miss{Component: check.Component})
			continue
		}
		for _, target := range check.Targets {
			if !m.Available(check.Component, target) {
				result.Missing = append(result.Missing, Miss{Component: check.Component, Target: target})
			}
		}
	}
	return result
}
