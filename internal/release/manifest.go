package release

// Manifest is a snapshot of one channel as published on one date.
type Manifest struct {
	Channel Channel
	Date    Date

	// Version is the raw version string of the "rust" package, for example
	// "1.89.0 (29483883e 2025-08-04)". Empty when the package is missing.
	Version string

	// Packages maps a component name to its per-target availability.
	// A component missing from this map was not shipped at all that day.
	Packages map[string]Package

	// Profiles maps a profile name to the components it installs.
	Profiles map[string][]string

	// Renames maps a legacy component name to its current name.
	Renames map[string]string
}

// Package is one component's entry in a manifest.
type Package struct {
	Version string
	Targets map[Target]bool
}

// Has reports whether the component is present in the manifest at all.
func (m *Manifest) Has(component string) bool {
	_, ok := m.Packages[m.Resolve(component)]
	return ok
}

// Available reports whether the component is published for target.
// A wildcard entry covers every target; a target missing from the
// component's table counts as unavailable.
func (m *Manifest) Available(component string, target Target) bool {
	pkg, ok := m.Packages[m.Resolve(component)]
	if !ok {
		return false
	}
	if available, ok := pkg.Targets[target]; ok {
		return available
	}
	return pkg.Targets[WildcardTarget]
}

// Resolve follows the renames table. Unknown names are returned unchanged.
func (m *Manifest) Resolve(component string) string {
	if to, ok := m.Renames[component]; ok && to != "" {
		return to
	}
	return component
}

// Profile returns the components of the named profile.
func (m *Manifest) Profile(p Profile) ([]string, bool) {
	components, ok := m.Profiles[string(p)]
	return components, ok
}
