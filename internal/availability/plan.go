// Package availability decides whether a channel manifest satisfies a
// requirement.
//
// The requirement is compiled once into a Plan: the profile is expanded,
// component names are resolved through the manifest's renames, and the
// exception list is applied to work out which targets each component must
// be checked against. Evaluating a manifest is then a plain lookup over
// that fixed set of (component, target) pairs.
package availability

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ZebulonRouseFrantzich/lastgood/internal/release"
)

// Exceptions lists components that only ship for some platforms by design.
type Exceptions interface {
	Restricted(component string) ([]release.Target, bool)
}

// NoExceptions is an empty exception list.
type NoExceptions struct{}

// Restricted always reports no exception.
func (NoExceptions) Restricted(string) ([]release.Target, bool) { return nil, false }

// Check is one component and the targets it must be available for. A check
// with no targets only requires the component to be present in the manifest.
type Check struct {
	Component string
	Targets   []release.Target
}

// Plan is a compiled requirement. It is immutable once built.
type Plan struct {
	checks []Check
}

// NewPlan compiles req against the profile table and renames of anchor,
// normally the channel's latest manifest.
func NewPlan(anchor *release.Manifest, req release.Requirement, exceptions Exceptions) (*Plan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if exceptions == nil {
		exceptions = NoExceptions{}
	}

	profile, ok := anchor.Profile(req.Profile)
	if !ok {
		return nil, &release.MalformedManifestError{
			Reason: fmt.Sprintf("profile %q missing from manifest dated %s", req.Profile, anchor.Date),
		}
	}

	names := make([]string, 0, len(profile)+len(req.Components))
	seen := make(map[string]bool)
	for _, name := range append(append([]string(nil), profile...), req.Components...) {
		name = anchor.Resolve(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)

	plan := &Plan{}
	for _, name := range names {
		plan.checks = append(plan.checks, Check{Component: name, Targets: requiredTargets(name, req, exceptions)})
	}

	if len(plan.Components()) == 0 {
		return nil, &release.InvalidConfigurationError{
			Field:  "components",
			Reason: fmt.Sprintf("no components left to check for profile %q after applying exceptions", req.Profile),
		}
	}

	return plan, nil
}

// requiredTargets returns the targets component must be checked against.
// Exception-listed components get no targets, unless the requirement
// targets exactly the current host and the host is one of the component's
// platforms; then the host check is kept.
func requiredTargets(component string, req release.Requirement, exceptions Exceptions) []release.Target {
	platforms, ok := exceptions.Restricted(component)
	if !ok {
		return append([]release.Target(nil), req.Targets...)
	}
	if req.IsCurrentHost() {
		for _, p := range platforms {
			if p == req.Host {
				return []release.Target{req.Host}
			}
		}
	}
	return nil
}

// Components returns the names of the components checked per target.
func (p *Plan) Components() []string {
	var names []string
	for _, c := range p.checks {
		if len(c.Targets) > 0 {
			names = append(names, c.Component)
		}
	}
	return names
}

// Skipped returns the exception-listed components that are only required
// to be present.
func (p *Plan) Skipped() []string {
	var names []string
	for _, c := range p.checks {
		if len(c.Targets) == 0 {
			names = append(names, c.Component)
		}
	}
	return names
}
