package discovery

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Pattern represents a compiled filter condition supporting substring and regex matching.
type Pattern struct {
	raw   string
	regex *regexp.Regexp
	lower string
}

// Compile transforms raw pattern strings into Pattern values. Strings wrapped
// in slashes are treated as regular expressions, everything else as a
// case-insensitive substring match.
func Compile(patterns []string) ([]Pattern, error) {
	result := make([]Pattern, 0, len(patterns))
	for _, raw := range patterns {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.HasPrefix(raw, "/") && strings.HasSuffix(raw, "/") && len(raw) >= 2 {
			expr := raw[1 : len(raw)-1]
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("compile regexp %q: %w", raw, err)
			}
			result = append(result, Pattern{raw: raw, regex: re})
			continue
		}
		result = append(result, Pattern{raw: raw, lower: strings.ToLower(raw)})
	}
	return result, nil
}

// Match reports whether the pattern matches the supplied string.
func (p Pattern) Match(s string) bool {
	if s == "" {
		return false
	}
	if p.regex != nil {
		return p.regex.MatchString(s)
	}
	return strings.Contains(strings.ToLower(s), p.lower)
}

// Filter applies include and exclude patterns to alignment paths, matching
// against the base file name. Empty include means include everything.
func Filter(paths []string, only, skip []Pattern) []string {
	if len(only) == 0 && len(skip) == 0 {
		return paths
	}
	result := make([]string, 0, len(paths))
	for _, path := range paths {
		base := filepath.Base(path)
		if len(only) > 0 && !matchesAny(base, only) {
			continue
		}
		if len(skip) > 0 && matchesAny(base, skip) {
			continue
		}
		result = append(result, path)
	}
	return result
}

func matchesAny(s string, patterns []Pattern) bool {
	for _, pattern := range patterns {
		if pattern.Match(s) {
			return true
		}
	}
	return false
}
