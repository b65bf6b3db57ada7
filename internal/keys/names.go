// Package keys builds filesystem- and object-store-safe names.
package keys

import (
	"path"
	"path/filepath"
	"strings"
)

// CleanName keeps ASCII letters, digits, spaces, hyphens and underscores,
// replaces every other character with an underscore and trims surrounding
// whitespace.
func CleanName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isKept(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return strings.TrimSpace(b.String())
}

func isKept(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == ' ', r == '-', r == '_':
		return true
	}
	return false
}

// ArtifactName returns "{city}-{format}-{theme}{ext}" with every part cleaned
// and the stem lowercased. An empty theme is written as "default".
func ArtifactName(city, format, theme, ext string) string {
	if theme == "" {
		theme = "Default"
	}
	stem := CleanName(city) + "-" + CleanName(format) + "-" + CleanName(theme)
	return strings.ToLower(stem) + ext
}

// Prefix converts a directory relative to root into a slash-separated object
// key prefix. ok is false when dir is not inside root.
func Prefix(root, dir string) (prefix string, ok bool) {
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Join joins a key prefix and a relative slash path.
func Join(prefix, rel string) string {
	if prefix == "" {
		return rel
	}
	return path.Join(prefix, rel)
}
