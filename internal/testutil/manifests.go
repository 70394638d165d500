package testutil

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ZebulonRouseFrantzich/lastgood/internal/release"
)

// Tier1 is the embedded tier-1 target list, duplicated here so fixtures do
// not depend on the Lua loader.
var Tier1 = []release.Target{
	"aarch64-apple-darwin",
	"aarch64-pc-windows-msvc",
	"aarch64-unknown-linux-gnu",
	"i686-pc-windows-msvc",
	"i686-unknown-linux-gnu",
	"x86_64-pc-windows-gnu",
	"x86_64-pc-windows-msvc",
	"x86_64-unknown-linux-gnu",
}

// ManifestBuilder assembles release.Manifest fixtures.
type ManifestBuilder struct {
	m     *release.Manifest
	order []string
}

// NewManifest starts a manifest for channel and date. A non-empty version
// adds a "rust" package carrying it.
func NewManifest(channel, date, version string) *ManifestBuilder {
	b := &ManifestBuilder{m: &release.Manifest{
		Channel:  release.Channel(channel),
		Date:     release.MustParseDate(date),
		Version:  version,
		Packages: make(map[string]release.Package),
		Profiles: make(map[string][]string),
		Renames:  make(map[string]string),
	}}
	if version != "" {
		b.m.Packages["rust"] = release.Package{Version: version, Targets: map[release.Target]bool{}}
	}
	return b
}

// WithComponents adds components available for every given target.
func (b *ManifestBuilder) WithComponents(targets []release.Target, names ...string) *ManifestBuilder {
	for _, name := range names {
		pkg := release.Package{Version: b.m.Version, Targets: make(map[release.Target]bool, len(targets))}
		for _, t := range targets {
			pkg.Targets[t] = true
		}
		b.m.Packages[name] = pkg
		b.order = append(b.order, name)
	}
	return b
}

// WithWildcard adds a component published for every target via "*".
func (b *ManifestBuilder) WithWildcard(name string) *ManifestBuilder {
	b.m.Packages[name] = release.Package{Targets: map[release.Target]bool{release.WildcardTarget: true}}
	b.order = append(b.order, name)
	return b
}

// Unavailable marks component as explicitly unavailable for target.
func (b *ManifestBuilder) Unavailable(component string, target release.Target) *ManifestBuilder {
	if pkg, ok := b.m.Packages[component]; ok {
		pkg.Targets[target] = false
	}
	return b
}

// Remove drops a component from the packages table but keeps it in profiles.
func (b *ManifestBuilder) Remove(component string) *ManifestBuilder {
	delete(b.m.Packages, component)
	return b
}

// WithProfile sets a profile explicitly.
func (b *ManifestBuilder) WithProfile(profile string, components ...string) *ManifestBuilder {
	b.m.Profiles[profile] = append([]string(nil), components...)
	return b
}

// WithRename records a renamed component.
func (b *ManifestBuilder) WithRename(from, to string) *ManifestBuilder {
	b.m.Renames[from] = to
	return b
}

// Build returns the manifest. Profiles not set explicitly contain every
// component added through the builder.
func (b *ManifestBuilder) Build() *release.Manifest {
	for _, p := range []release.Profile{release.ProfileMinimal, release.ProfileDefault, release.ProfileComplete} {
		if _, ok := b.m.Profiles[string(p)]; !ok {
			b.m.Profiles[string(p)] = append([]string(nil), b.order...)
		}
	}
	return b.m
}

// ManifestTOML renders m in the upstream channel manifest format.
func ManifestTOML(m *release.Manifest) []byte {
	var sb strings.Builder

	sb.WriteString("manifest-version = \"2\"\n")
	fmt.Fprintf(&sb, "date = %q\n", m.Date.String())

	for _, name := range sortedKeys(m.Packages) {
		pkg := m.Packages[name]
		fmt.Fprintf(&sb, "\n[pkg.%q]\n", name)
		version := pkg.Version
		if version == "" {
			version = "0.0.0"
		}
		fmt.Fprintf(&sb, "version = %q\n", version)

		targets := make([]string, 0, len(pkg.Targets))
		for t := range pkg.Targets {
			targets = append(targets, string(t))
		}
		sort.Strings(targets)
		for _, t := range targets {
			fmt.Fprintf(&sb, "\n[pkg.%q.target.%q]\n", name, t)
			fmt.Fprintf(&sb, "available = %t\n", pkg.Targets[release.Target(t)])
			if pkg.Targets[release.Target(t)] {
				fmt.Fprintf(&sb, "url = \"https://static.rust-lang.org/dist/%s/%s-%s.tar.gz\"\n", m.Date, name, t)
				sb.WriteString("hash = \"0000000000000000000000000000000000000000000000000000000000000000\"\n")
			}
		}
	}

	for _, from := range sortedKeys(m.Renames) {
		fmt.Fprintf(&sb, "\n[renames.%q]\n", from)
		fmt.Fprintf(&sb, "to = %q\n", m.Renames[from])
	}

	sb.WriteString("\n[profiles]\n")
	for _, name := range sortedKeys(m.Profiles) {
		quoted := make([]string, len(m.Profiles[name]))
		for i, c := range m.Profiles[name] {
			quoted[i] = fmt.Sprintf("%q", c)
		}
		fmt.Fprintf(&sb, "%s = [%s]\n", name, strings.Join(quoted, ", "))
	}

	return []byte(sb.String())
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
