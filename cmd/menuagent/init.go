package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/defaults"
)

// runInit writes the example config.yaml into dir. An existing file is
// left alone.
func runInit(w io.Writer, dir string) error {
	fmt.Fprintf(w, "Initializing menuagent in %s\n", dir)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	// The config may carry API keys, so it is owner-only.
	configPath := filepath.Join(dir, "config.yaml")
	written, err := writeIfMissing(configPath, defaults.ConfigYAML, 0o600)
	if err != nil {
		return err
	}
	if written {
		fmt.Fprintf(w, "  ✓ %s\n", configPath)
	} else {
		fmt.Fprintf(w, "  - %s (exists, skipped)\n", configPath)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Edit config.yaml to set generator.api_key, then run: menuagent serve")
	return nil
}

// writeIfMissing writes content to path only if the file does not already
// exist. It reports whether it wrote.
func writeIfMissing(path string, content []byte, perm os.FileMode) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.WriteFile(path, content, perm); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}
