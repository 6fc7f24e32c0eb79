package deps

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// Sentinel errors surfaced by the dependency gate.
var (
	ErrMissingDependency      = errors.New("missing dependency")
	ErrIncompatibleDependency = errors.New("incompatible dependency")
)

// Executable names resolved against PATH.
const (
	IqtreeExe         = "iqtree2"
	IqtreeFallbackExe = "iqtree"
	AstralExe         = "astral"
)

// Tool describes one external executable the pipeline may invoke.
type Tool struct {
	Name        string
	Fallback    string
	Optional    bool
	VersionArgs []string
	MinMajor    int
}

// Status is the resolved availability and compatibility verdict for one tool.
// Computed once per run, never mutated afterwards.
type Status struct {
	Name       string `json:"name"`
	Command    string `json:"command,omitempty"`
	Path       string `json:"path,omitempty"`
	Version    string `json:"version,omitempty"`
	Optional   bool   `json:"optional"`
	Resolved   bool   `json:"resolved"`
	Compatible bool   `json:"compatible"`
	Detail     string `json:"detail,omitempty"`
}

// Ok reports whether the tool can be used for job dispatch.
func (s Status) Ok() bool {
	return s.Resolved && s.Compatible
}

// DefaultTools returns the pipeline's dependency set: IQ-TREE is mandatory
// (version 1 accepted as a fallback executable name), ASTRAL is optional.
func DefaultTools() []Tool {
	return []Tool{
		{Name: IqtreeExe, Fallback: IqtreeFallbackExe, VersionArgs: []string{"--version"}, MinMajor: 2},
		{Name: AstralExe, Optional: true},
	}
}

var versionRegex = regexp.MustCompile(`(?i)version\s+v?(\d+(?:\.\d+)+)`)

// Check resolves every tool and returns the statuses plus a single verdict:
// false when any mandatory tool is unresolved or incompatible. Optional tools
// being absent never blocks, but is reported.
func Check(tools []Tool) ([]Status, bool) {
	statuses := make([]Status, 0, len(tools))
	ok := true
	for _, tool := range tools {
		status := checkOne(tool)
		if !status.Ok() && !tool.Optional {
			ok = false
		}
		statuses = append(statuses, status)
	}
	return statuses, ok
}

// Find returns the status for the named tool.
func Find(statuses []Status, name string) (Status, bool) {
	for _, status := range statuses {
		if status.Name == name {
			return status, true
		}
	}
	return Status{}, false
}

func checkOne(tool Tool) Status {
	status := Status{Name: tool.Name, Optional: tool.Optional}

	command := tool.Name
	path, err := exec.LookPath(command)
	if err != nil && tool.Fallback != "" {
		command = tool.Fallback
		path, err = exec.LookPath(command)
	}
	if err != nil {
		if Missing(err) {
			status.Detail = fmt.Sprintf("%v: not found in PATH", ErrMissingDependency)
		} else {
			status.Detail = fmt.Sprintf("%v: %v", ErrMissingDependency, err)
		}
		return status
	}
	status.Resolved = true
	status.Command = command
	status.Path = path

	if len(tool.VersionArgs) == 0 {
		// Resolution alone is the contract for tools without a stable
		// version banner (the ASTRAL launcher prints usage on --version).
		status.Compatible = true
		return status
	}

	out, err := runCommand(command, tool.VersionArgs...)
	if err != nil {
		// Some tools print the banner and exit non-zero; keep the output
		// if it carries a parseable version token.
		if out == "" {
			status.Detail = fmt.Sprintf("%v: version query failed: %v", ErrIncompatibleDependency, err)
			return status
		}
	}
	version, parseErr := parseVersion(out)
	if parseErr != nil {
		status.Detail = fmt.Sprintf("%v: %v", ErrIncompatibleDependency, parseErr)
		return status
	}
	status.Version = version

	if tool.MinMajor > 0 && majorVersion(version) < tool.MinMajor {
		status.Detail = fmt.Sprintf("%v: found version %s, need major >= %d", ErrIncompatibleDependency, version, tool.MinMajor)
		return status
	}
	status.Compatible = true
	return status
}

func runCommand(name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	cmd.Stdin = nil
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return strings.TrimSpace(buf.String()), err
}

func parseVersion(out string) (string, error) {
	match := versionRegex.FindStringSubmatch(out)
	if len(match) < 2 {
		return "", fmt.Errorf("unable to parse version from %q", firstLine(out))
	}
	return match[1], nil
}

func majorVersion(version string) int {
	parts := strings.Split(version, ".")
	if len(parts) == 0 {
		return 0
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0
	}
	return major
}

// Missing reports whether executing the command returned a not-found error.
func Missing(cmdErr error) bool {
	return errors.Is(cmdErr, exec.ErrNotFound)
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx != -1 {
		return s[:idx]
	}
	return s
}
