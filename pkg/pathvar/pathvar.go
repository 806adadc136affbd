package pathvar

import (
	"runtime"
	"sort"
	"strings"
)

// Vars maps variable name to platform-specific concrete path prefixes.
// Platform names follow runtime.GOOS ("linux", "windows", "darwin").
type Vars map[string]map[string]string

// CurrentPlatform returns the platform key for the running system.
func CurrentPlatform() string {
	return runtime.GOOS
}

type replacement struct {
	name   string
	prefix string // normalized, no trailing slash
}

// Replacer rewrites paths for one platform.
type Replacer struct {
	windows bool
	repls   []replacement
}

// New builds a Replacer for the given platform. Variables without a mapping
// for that platform are ignored. When several variables match a path, the
// one with the longest concrete prefix wins.
func New(platform string, vars Vars) *Replacer {
	r := &Replacer{windows: platform == "windows"}
	for name, platforms := range vars {
		prefix, ok := platforms[platform]
		if !ok {
			continue
		}
		r.repls = append(r.repls, replacement{
			name:   name,
			prefix: strings.TrimSuffix(normalize(prefix), "/"),
		})
	}
	sort.Slice(r.repls, func(i, j int) bool {
		a, b := r.repls[i], r.repls[j]
		if len(a.prefix) != len(b.prefix) {
			return len(a.prefix) > len(b.prefix)
		}
		return a.name < b.name
	})
	return r
}

// Replace rewrites path into "{var}/suffix" form when its prefix matches a
// variable's concrete path at a component boundary. When no variable
// matches, the path is returned unchanged apart from slash normalization.
func (r *Replacer) Replace(path string) string {
	normalized := normalize(path)
	parts := splitComponents(normalized)

	for _, repl := range r.repls {
		prefixParts := splitComponents(repl.prefix)
		rest, ok := r.stripPrefix(parts, prefixParts)
		if !ok {
			continue
		}
		if len(rest) == 0 {
			return "{" + repl.name + "}"
		}
		return "{" + repl.name + "}/" + strings.Join(rest, "/")
	}
	return normalized
}

// Expand performs the inverse of Replace: "{var}/suffix" becomes the
// variable's concrete path for this platform, forward-slash normalized. A
// path without a leading known variable is returned unchanged apart from
// slash normalization.
func (r *Replacer) Expand(path string) string {
	normalized := normalize(path)
	if !strings.HasPrefix(normalized, "{") {
		return normalized
	}
	end := strings.Index(normalized, "}")
	if end < 0 {
		return normalized
	}
	name := normalized[1:end]
	for _, repl := range r.repls {
		if repl.name != name {
			continue
		}
		rest := strings.TrimPrefix(normalized[end+1:], "/")
		if rest == "" {
			return repl.prefix
		}
		return repl.prefix + "/" + rest
	}
	return normalized
}

// stripPrefix matches prefix components against the leading components of
// parts. Windows paths compare case-insensitively.
func (r *Replacer) stripPrefix(parts, prefix []string) ([]string, bool) {
	if len(prefix) > len(parts) {
		return nil, false
	}
	for i, p := range prefix {
		if r.windows {
			if !strings.EqualFold(parts[i], p) {
				return nil, false
			}
		} else if parts[i] != p {
			return nil, false
		}
	}
	return parts[len(prefix):], true
}

// normalize converts backslashes to forward slashes.
func normalize(path string) string {
	return strings.ReplaceAll(path, "\\", "/")
}

// splitComponents splits a normalized path into components, keeping a
// leading "/" marker for rooted paths so that "/render" and "render" do not
// compare equal.
func splitComponents(path string) []string {
	trimmed := strings.TrimSuffix(path, "/")
	if trimmed == "" {
		return []string{"/"}
	}
	var parts []string
	if strings.HasPrefix(trimmed, "/") {
		parts = append(parts, "/")
		trimmed = trimmed[1:]
	}
	for _, c := range strings.Split(trimmed, "/") {
		if c != "" {
			parts = append(parts, c)
		}
	}
	return parts
}
