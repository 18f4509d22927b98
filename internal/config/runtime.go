package config

import (
	"os"
	"path/filepath"
)

const defaultRuntimeDir = ".chorus"

func GetRuntimePath() string {
	return resolveRuntimePath(os.Getenv("CHORUS_RUNTIME_PATH"))
}

// resolveRuntimePath anchors relative runtime paths in the user's home directory.
func resolveRuntimePath(path string) string {
	if path == "" {
		path = defaultRuntimeDir
	}

	if !filepath.IsAbs(path) {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path)
	}
	return path
}
