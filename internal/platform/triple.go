package platform

import "github.com/ZebulonRouseFrantzich/lastgood/internal/release"

// tripleKey identifies a host by GOOS, normalized GOARCH and libc.
type tripleKey struct {
	os, arch, libc string
}

// triples maps hosts to the Rust target triple rustup would install for them.
var triples = map[tripleKey]release.Target{
	{"linux", "amd64", LibcGNU}:   "x86_64-unknown-linux-gnu",
	{"linux", "arm64", LibcGNU}:   "aarch64-unknown-linux-gnu",
	{"linux", "386", LibcGNU}:     "i686-unknown-linux-gnu",
	{"linux", "arm", LibcGNU}:     "armv7-unknown-linux-gnueabihf",
	{"linux", "riscv64", LibcGNU}: "riscv64gc-unknown-linux-gnu",
	{"linux", "ppc64le", LibcGNU}: "powerpc64le-unknown-linux-gnu",
	{"linux", "ppc64", LibcGNU}:   "powerpc64-unknown-linux-gnu",
	{"linux", "s390x", LibcGNU}:   "s390x-unknown-linux-gnu",
	{"linux", "loong64", LibcGNU}: "loongarch64-unknown-linux-gnu",
	{"linux", "amd64", LibcMusl}:  "x86_64-unknown-linux-musl",
	{"linux", "arm64", LibcMusl}:  "aarch64-unknown-linux-musl",
	{"linux", "386", LibcMusl}:    "i686-unknown-linux-musl",
	{"linux", "arm", LibcMusl}:    "armv7-unknown-linux-musleabihf",
	{"darwin", "amd64", ""}:       "x86_64-apple-darwin",
	{"darwin", "arm64", ""}:       "aarch64-apple-darwin",
	{"windows", "amd64", ""}:      "x86_64-pc-windows-msvc",
	{"windows", "arm64", ""}:      "aarch64-pc-windows-msvc",
	{"windows", "386", ""}:        "i686-pc-windows-msvc",
	{"freebsd", "amd64", ""}:      "x86_64-unknown-freebsd",
	{"netbsd", "amd64", ""}:       "x86_64-unknown-netbsd",
	{"illumos", "amd64", ""}:      "x86_64-unknown-illumos",
}

// TargetTriple returns the Rust target triple for a host. libc is only
// consulted on Linux, where an empty value means glibc.
func TargetTriple(goos, arch, libc string) (release.Target, bool) {
	arch = normalizeArch(arch)
	if goos == "linux" {
		if libc == "" {
			libc = LibcGNU
		}
	} else {
		libc = ""
	}
	target, ok := triples[tripleKey{goos, arch, libc}]
	return target, ok
}

// InfoForTarget builds a best effort Info from an explicit triple, used
// when the operator overrides detection with --host.
func InfoForTarget(target release.Target) *Info {
	for key, t := range triples {
		if t == target {
			return &Info{OS: key.os, Arch: key.arch, ArchRaw: key.arch, Libc: key.libc, Target: target}
		}
	}
	return &Info{Target: target}
}
