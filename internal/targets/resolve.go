package targets

import (
	"fmt"

	"github.com/ZebulonRouseFrantzich/lastgood/internal/release"
)

// Resolve expands a target mode into concrete targets. TargetsAll yields the
// tier-1 list; TargetsCurrent yields only host, which must be known.
func (d *Data) Resolve(mode release.TargetMode, host release.Target) ([]release.Target, error) {
	switch mode {
	case release.TargetsAll:
		return d.Tier1(), nil
	case release.TargetsCurrent:
		if host == "" {
			return nil, &release.InvalidConfigurationError{
				Field:  "host",
				Reason: "the current host has no known target triple; pass --host",
			}
		}
		return []release.Target{host}, nil
	default:
		return nil, &release.InvalidConfigurationError{
			Field:  "targets",
			Reason: fmt.Sprintf("unknown target mode %q", mode),
		}
	}
}
