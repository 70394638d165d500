package manifest

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"

	"github.com/ZebulonRouseFrantzich/lastgood/internal/release"
)

// SupportedVersion is the only manifest-version this client understands.
const SupportedVersion = "2"

// document mirrors the parts of channel-rust-<channel>.toml that matter for
// availability. Artifacts, hashes and URLs are ignored.
type document struct {
	ManifestVersion string                 `toml:"manifest-version"`
	Date            string                 `toml:"date"`
	Pkg             map[string]pkgEntry    `toml:"pkg"`
	Renames         map[string]renameEntry `toml:"renames"`
	Profiles        map[string][]string    `toml:"profiles"`
}

type pkgEntry struct {
	Version string                 `toml:"version"`
	Target  map[string]targetEntry `toml:"target"`
}

type targetEntry struct {
	Available bool `toml:"available"`
}

type renameEntry struct {
	To string `toml:"to"`
}

// Decode parses a channel manifest fetched from url.
func Decode(channel release.Channel, url string, body []byte) (*release.Manifest, error) {
	var doc document
	if err := toml.Unmarshal(body, &doc); err != nil {
		return nil, &release.MalformedManifestError{URL: url, Reason: "invalid TOML", Err: err}
	}

	if doc.ManifestVersion != "" && doc.ManifestVersion != SupportedVersion {
		return nil, &release.MalformedManifestError{
			URL:    url,
			Reason: fmt.Sprintf("unsupported manifest-version %q", doc.ManifestVersion),
		}
	}
	if doc.Date == "" {
		return nil, &release.MalformedManifestError{URL: url, Reason: "missing date"}
	}
	date, err := release.ParseDate(doc.Date)
	if err != nil {
		return nil, &release.MalformedManifestError{URL: url, Reason: "invalid date", Err: err}
	}
	if len(doc.Pkg) == 0 {
		return nil, &release.MalformedManifestError{URL: url, Reason: "missing pkg table"}
	}

	m := &release.Manifest{
		Channel:  channel,
		Date:     date,
		Packages: make(map[string]release.Package, len(doc.Pkg)),
		Profiles: make(map[string][]string, len(doc.Profiles)),
		Renames:  make(map[string]string, len(doc.Renames)),
	}

	for name, entry := range doc.Pkg {
		pkg := release.Package{
			Version: entry.Version,
			Targets: make(map[release.Target]bool, len(entry.Target)),
		}
		for triple, target := range entry.Target {
			pkg.Targets[release.Target(triple)] = target.Available
		}
		m.Packages[name] = pkg
	}
	if rust, ok := doc.Pkg["rust"]; ok {
		m.Version = rust.Version
	}
	for name, components := range doc.Profiles {
		m.Profiles[name] = components
	}
	for from, rename := range doc.Renames {
		m.Renames[from] = rename.To
	}

	return m, nil
}
