package env

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadEnv loads the first .env file found in the working directory or the
// worker directory. It reports which file was loaded, or "" when none exists,
// in which case variables are assumed to be set directly.
func LoadEnv(workerDir string) string {
	candidates := []string{".env"}
	if workerDir != "" {
		candidates = append(candidates, filepath.Join(workerDir, ".env"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err == nil {
			return path
		}
	}
	return ""
}

// Lookup returns the first non-empty value among the given keys.
func Lookup(keys ...string) (string, bool) {
	for _, key := range keys {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			return val, true
		}
	}
	return "", false
}
