package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// DefaultEnvFiles are loaded in order; earlier files win because godotenv
// never overrides variables that are already set.
var DefaultEnvFiles = []string{".env.local", ".env"}

// LoadEnvFiles loads the given env files, or DefaultEnvFiles when none are
// given. Missing files are ignored.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = DefaultEnvFiles
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}
