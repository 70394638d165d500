package platform

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

// ErrUnsupportedPlatform means the host has no known Rust target triple.
var ErrUnsupportedPlatform = errors.New("unsupported host platform")

func unsupported(i *Info) error {
	if i == nil {
		return ErrUnsupportedPlatform
	}
	return fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, i.OS, i.ArchRaw)
}

// distroFunc matches host.PlatformInformationWithContext.
type distroFunc func(ctx context.Context) (platform, family, version string, err error)

// RealDetector implements Detector using actual platform detection.
type RealDetector struct {
	goos   string
	goarch string
	distro distroFunc
}

// NewDetector creates a new platform detector for the running process.
func NewDetector() Detector {
	return &RealDetector{
		goos:   runtime.GOOS,
		goarch: runtime.GOARCH,
		distro: host.PlatformInformationWithContext,
	}
}

// Detect performs platform detection and returns platform information.
//
// An OS/architecture pair without a known target triple is not an error:
// Info.Target stays empty and HostTarget reports it, so callers that never
// need the host triple keep working. On Linux, a failed distribution lookup
// falls back to glibc.
func (d *RealDetector) Detect(ctx context.Context) (*Info, error) {
	info := &Info{
		OS:      d.goos,
		ArchRaw: d.goarch,
		Arch:    normalizeArch(d.goarch),
	}

	if d.goos == "linux" {
		info.Libc = LibcGNU
		platform, family, version, err := d.distro(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
			}
		} else if platform = normalizePlatform(platform); platform != "" {
			info.Platform = platform
			info.Family = mapFamily(family, platform)
			info.Version = normalizePlatform(version)
			if info.Family == FamilyAlpine {
				info.Libc = LibcMusl
			}
		}
	}

	if target, ok := TargetTriple(info.OS, info.Arch, info.Libc); ok {
		info.Target = target
	}

	return info, nil
}
