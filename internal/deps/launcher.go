package deps

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteLauncher generates a thin shell wrapper that makes a packaged ASTRAL
// jar resolvable as a plain executable named "astral". The script lands in
// outDir (which should be on PATH for the checker to pick it up) and is
// overwritten deterministically when it already exists.
func WriteLauncher(jarPath, outDir string) (string, error) {
	jar, err := filepath.Abs(jarPath)
	if err != nil {
		return "", fmt.Errorf("resolve jar path %q: %w", jarPath, err)
	}
	info, err := os.Stat(jar)
	if err != nil {
		return "", fmt.Errorf("stat jar %q: %w", jarPath, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("jar path %q is a directory", jarPath)
	}

	libDir := filepath.Join(filepath.Dir(jar), "lib")
	script := fmt.Sprintf("#!/bin/sh\nexec java -D\"java.library.path=%s\" -jar %q \"$@\"\n", libDir, jar)

	dest := filepath.Join(outDir, AstralExe)
	if err := os.WriteFile(dest, []byte(script), 0o755); err != nil {
		return "", fmt.Errorf("write launcher %q: %w", dest, err)
	}
	// WriteFile does not change the mode of a pre-existing file.
	if err := os.Chmod(dest, 0o755); err != nil {
		return "", fmt.Errorf("chmod launcher %q: %w", dest, err)
	}
	return dest, nil
}
