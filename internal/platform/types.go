// Package platform detects the host platform and maps it to the Rust
// target triple used to address per-target packages in channel manifests.
//
// OS and architecture come from the Go runtime. On Linux, gopsutil is used
// to detect the distribution so musl based systems (Alpine) resolve to the
// -musl environment. The detected information can also be injected into a
// Lua state as a read-only "platform" table.
package platform

import (
	"context"

	"github.com/ZebulonRouseFrantzich/lastgood/internal/release"
)

// Linux distribution family constants.
const (
	FamilyDebian  = "debian"  // Debian, Ubuntu, Linux Mint
	FamilyRHEL    = "rhel"    // RHEL, CentOS, Rocky Linux, AlmaLinux
	FamilyFedora  = "fedora"  // Fedora
	FamilySUSE    = "suse"    // openSUSE, SLES
	FamilyArch    = "arch"    // Arch Linux, Manjaro
	FamilyAlpine  = "alpine"  // Alpine Linux (musl)
	FamilyGentoo  = "gentoo"  // Gentoo
	FamilyUnknown = "unknown" // Unrecognized distributions
)

// C library flavours relevant to Linux target triples.
const (
	LibcGNU  = "gnu"
	LibcMusl = "musl"
)

// Info contains platform detection information.
type Info struct {
	OS       string // "linux", "darwin", "windows"
	Arch     string // normalized: "amd64", "arm64", "386", "arm", ...
	ArchRaw  string // original GOARCH
	Platform string // distro ID (Linux only, e.g., "ubuntu", "alpine")
	Family   string // canonical family (e.g., "debian", "alpine")
	Version  string // distro version (Linux only)
	Libc     string // "gnu" or "musl" on Linux, empty elsewhere

	// Target is the Rust target triple for this host. Empty when the
	// OS/architecture pair has no known triple.
	Target release.Target
}

// HostTarget returns the host triple or ErrUnsupportedPlatform.
func (i *Info) HostTarget() (release.Target, error) {
	if i == nil || i.Target == "" {
		return "", unsupported(i)
	}
	return i.Target, nil
}

// IsLinux returns true if the platform is Linux.
func (i *Info) IsLinux() bool {
	return i.OS == "linux"
}

// IsMacOS returns true if the platform is macOS.
func (i *Info) IsMacOS() bool {
	return i.OS == "darwin"
}

// IsWindows returns true if the platform is Windows.
func (i *Info) IsWindows() bool {
	return i.OS == "windows"
}

// IsMusl returns true on musl based Linux systems.
func (i *Info) IsMusl() bool {
	return i.OS == "linux" && i.Libc == LibcMusl
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}

// StaticDetector returns a fixed Info, for callers that already know the
// host or must not probe it.
type StaticDetector struct {
	Info *Info
}

// Detect returns the configured info.
func (s StaticDetector) Detect(ctx context.Context) (*Info, error) {
	return s.Info, nil
}
