// Package targets holds the versioned platform support data (tier-1
// targets and component exceptions) and expands a target mode into a
// concrete target list.
//
// The data lives in a Lua file evaluated in a sandboxed gopher-lua VM with
// the host's read-only platform table injected. The default file is
// embedded in the binary; operators can point --platforms at a newer copy
// without rebuilding. Loaded data never changes afterwards.
package targets

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/ZebulonRouseFrantzich/lastgood/internal/platform"
	"github.com/ZebulonRouseFrantzich/lastgood/internal/release"
	lua "github.com/yuin/gopher-lua"
)

//go:embed platforms.lua
var embeddedPlatforms string

// Data is an immutable snapshot of platform support policy.
type Data struct {
	version    string
	tier1      []release.Target
	exceptions map[string][]release.Target
}

// ParseError reports a platform data file that could not be evaluated or
// does not have the expected shape.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua error)
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// Default evaluates the embedded platform data.
func Default(ctx context.Context, info *platform.Info) (*Data, error) {
	return Parse(ctx, embeddedPlatforms, info)
}

// LoadFile evaluates a platform data file from disk.
func LoadFile(ctx context.Context, path string, info *platform.Info) (*Data, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read platform data: %w", err)
	}
	return Parse(ctx, string(src), info)
}

// Parse evaluates Lua source that defines a global "platforms" table.
func Parse(ctx context.Context, src string, info *platform.Info) (*Data, error) {
	L := newSandboxedVM()
	defer L.Close()
	L.SetContext(ctx)

	if err := platform.InjectPlatformTable(L, info); err != nil {
		return nil, fmt.Errorf("inject platform table: %w", err)
	}

	if err := L.DoString(src); err != nil {
		return nil, &ParseError{Message: "Lua error in platform data", Detail: err.Error()}
	}

	return extractData(L)
}

func extractData(L *lua.LState) (*Data, error) {
	root, ok := L.GetGlobal("platforms").(*lua.LTable)
	if !ok {
		return nil, &ParseError{
			Message: "missing or invalid 'platforms' table",
			Detail:  fmt.Sprintf("expected table, got %s", L.GetGlobal("platforms").Type()),
		}
	}

	data := &Data{exceptions: make(map[string][]release.Target)}

	if v, ok := root.RawGetString("version").(lua.LString); ok {
		data.version = string(v)
	}
	if data.version == "" {
		return nil, &ParseError{Message: "invalid platform data", Detail: "version must be a non-empty string"}
	}

	tier1, ok := root.RawGetString("tier1").(*lua.LTable)
	if !ok {
		return nil, &ParseError{Message: "invalid platform data", Detail: "tier1 must be a list of target triples"}
	}
	targets, err := extractTargets(tier1, "tier1")
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, &ParseError{Message: "invalid platform data", Detail: "tier1 is empty"}
	}
	data.tier1 = targets

	if exVal := root.RawGetString("exceptions"); exVal != lua.LNil {
		exceptions, ok := exVal.(*lua.LTable)
		if !ok {
			return nil, &ParseError{Message: "invalid platform data", Detail: "exceptions must be a list"}
		}
		if err := extractExceptions(exceptions, data); err != nil {
			return nil, err
		}
	}

	return data, nil
}

// extractTargets reads a list of triples. nil entries (from platform.when)
// are skipped; duplicates are rejected.
func extractTargets(table *lua.LTable, field string) ([]release.Target, error) {
	var (
		out  []release.Target
		seen = make(map[release.Target]bool)
		bad  error
	)
	table.ForEach(func(_, value lua.LValue) {
		if bad != nil || value == lua.LNil {
			return
		}
		s, ok := value.(lua.LString)
		if !ok || s == "" {
			bad = &ParseError{Message: "invalid platform data", Detail: fmt.Sprintf("%s entries must be non-empty strings", field)}
			return
		}
		t := release.Target(s)
		if seen[t] {
			bad = &ParseError{Message: "invalid platform data", Detail: fmt.Sprintf("duplicate %s entry %q", field, s)}
			return
		}
		seen[t] = true
		out = append(out, t)
	})
	if bad != nil {
		return nil, bad
	}
	return out, nil
}

func extractExceptions(table *lua.LTable, data *Data) error {
	var bad error
	table.ForEach(func(_, value lua.LValue) {
		if bad != nil {
			return
		}
		entry, ok := value.(*lua.LTable)
		if !ok {
			bad = &ParseError{Message: "invalid platform data", Detail: "exception entries must be tables"}
			return
		}
		component, _ := entry.RawGetString("component").(lua.LString)
		if component == "" {
			bad = &ParseError{Message: "invalid platform data", Detail: "exception without component"}
			return
		}
		list, ok := entry.RawGetString("platforms").(*lua.LTable)
		if !ok {
			bad = &ParseError{Message: "invalid platform data", Detail: fmt.Sprintf("exception %q needs a platforms list", component)}
			return
		}
		restricted, err := extractTargets(list, "platforms")
		if err != nil {
			bad = err
			return
		}
		if len(restricted) == 0 {
			bad = &ParseError{Message: "invalid platform data", Detail: fmt.Sprintf("exception %q has no platforms", component)}
			return
		}
		if _, dup := data.exceptions[string(component)]; dup {
			bad = &ParseError{Message: "invalid platform data", Detail: fmt.Sprintf("duplicate exception %q", component)}
			return
		}
		data.exceptions[string(component)] = restricted
	})
	return bad
}

// Version identifies the platform policy snapshot.
func (d *Data) Version() string {
	return d.version
}

// Tier1 returns a copy of the tier-1 target list.
func (d *Data) Tier1() []release.Target {
	return append([]release.Target(nil), d.tier1...)
}

// Restricted returns the only platforms an exception-listed component ships
// for. ok is false for components without an exception.
func (d *Data) Restricted(component string) (platforms []release.Target, ok bool) {
	list, ok := d.exceptions[component]
	if !ok {
		return nil, false
	}
	return append([]release.Target(nil), list...), true
}

// ExceptionComponents returns the exception-listed component names, sorted.
func (d *Data) ExceptionComponents() []string {
	names := make([]string, 0, len(d.exceptions))
	for name := range d.exceptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
