package config

import (
	"os"
	"path/filepath"
)

// GetRuntimePath resolves the runtime directory. Relative paths are
// anchored at the user's home so the bot behaves the same regardless of
// the working directory it was launched from.
func GetRuntimePath() string {
	path := os.Getenv("MOCHI_RUNTIME_PATH")
	if path == "" {
		path = ".mochibot"
	}
	return resolveRuntimePath(path)
}

func resolveRuntimePath(path string) string {
	if !filepath.IsAbs(path) {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path)
	}
	return path
}
