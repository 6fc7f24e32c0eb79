package discovery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoAlignments indicates that no alignment files were found during discovery.
var ErrNoAlignments = errors.New("no alignments discovered")

// Format selects the alignment file naming convention to search for.
type Format string

const (
	FormatAuto   Format = "auto"
	FormatFasta  Format = "fasta"
	FormatNexus  Format = "nexus"
	FormatPhylip Format = "phylip"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatFasta:
		return FormatFasta, nil
	case FormatNexus:
		return FormatNexus, nil
	case FormatPhylip:
		return FormatPhylip, nil
	default:
		return "", fmt.Errorf("unsupported input format %q (auto|fasta|nexus|phylip)", s)
	}
}

func patterns(format Format) []string {
	switch format {
	case FormatFasta:
		return []string{"*.fa*"}
	case FormatNexus:
		return []string{"*.nex*"}
	case FormatPhylip:
		return []string{"*.phy*"}
	default:
		return []string{"*.fa*", "*.nex*", "*.phy*"}
	}
}

// Alignments returns alignment file paths under dir. If explicit paths are
// provided they are validated and returned in the order given. Otherwise the
// format's glob patterns are used and results are sorted lexicographically.
func Alignments(dir string, format Format, explicit []string) ([]string, error) {
	if len(explicit) > 0 {
		return resolveExplicit(dir, explicit)
	}

	matches := make(map[string]struct{})
	for _, pattern := range patterns(format) {
		found, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, m := range found {
			info, err := os.Stat(m)
			if err != nil || info.IsDir() {
				continue
			}
			matches[m] = struct{}{}
		}
	}

	if len(matches) == 0 {
		return nil, ErrNoAlignments
	}

	paths := make([]string, 0, len(matches))
	for p := range matches {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func resolveExplicit(dir string, explicit []string) ([]string, error) {
	seen := make(map[string]struct{})
	resolved := make([]string, 0, len(explicit))
	for _, input := range explicit {
		cleaned := input
		if !filepath.IsAbs(cleaned) {
			cleaned = filepath.Join(dir, cleaned)
		}
		info, err := os.Stat(cleaned)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("alignment %q not found", input)
			}
			return nil, fmt.Errorf("stat %q: %w", input, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("alignment %q is a directory", input)
		}
		cleaned = filepath.Clean(cleaned)
		if _, ok := seen[cleaned]; ok {
			continue
		}
		seen[cleaned] = struct{}{}
		resolved = append(resolved, cleaned)
	}
	if len(resolved) == 0 {
		return nil, ErrNoAlignments
	}
	return resolved, nil
}
