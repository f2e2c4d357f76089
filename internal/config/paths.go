package config

import (
	"os"
	"path/filepath"
	"strings"
)

// expandPath expands a leading ~ and makes the path absolute
func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}

// resolvePaths expands every filesystem path in the configuration
func (c *Root) resolvePaths() error {
	for _, p := range []*string{&c.Storage.Durable.JSON.DataDir, &c.Log.File} {
		expanded, err := expandPath(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}
