// Package security keeps user supplied names from escaping the
// directories the console writes to.
package security

import (
	"path/filepath"
	"strings"
)

// maxFilenameLen bounds sanitized names.
const maxFilenameLen = 128

// SanitizeFilename makes a safe file name from a field or snapshot name.
// Anything other than ASCII letters, digits, dot, underscore or dash
// becomes an underscore, runs of underscores collapse, leading and
// trailing dots and underscores are trimmed. An empty result is "unknown".
func SanitizeFilename(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}

// OutputPath returns dir/<sanitized name>.<ext>. The result is always a
// direct child of dir.
func OutputPath(dir, name, ext string) string {
	return filepath.Join(dir, SanitizeFilename(name)+"."+strings.TrimPrefix(ext, "."))
}

// WithinDirectory reports whether path, after cleaning, lies inside dir.
// It is a lexical check and does not resolve symlinks.
func WithinDirectory(path, dir string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
