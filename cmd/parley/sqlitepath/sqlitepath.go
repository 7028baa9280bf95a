// Package sqlitepath resolves the conversation database location shared by
// parley's commands.
package sqlitepath

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/papercomputeco/parley/pkg/config"
)

// DefaultFile is the database file name under ~/.parley.
const DefaultFile = "parley.db"

// ResolveSQLitePath picks the first non-empty candidate (typically the
// --sqlite flag, then the config file value). With none it falls back to
// ~/.parley/parley.db, creating the directory if needed.
func ResolveSQLitePath(candidates ...string) (string, error) {
	for _, c := range candidates {
		if c != "" {
			return expandHome(c)
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not resolve home directory: %w", err)
	}
	dir := filepath.Join(home, config.Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, DefaultFile), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !hasHomePrefix(path) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not resolve home directory: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}

func hasHomePrefix(path string) bool {
	return len(path) >= 2 && path[0] == '~' && path[1] == '/'
}
