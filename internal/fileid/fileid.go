// Package fileid generates document ids and the storage filenames derived from them.
package fileid

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

const maxNameLen = 128

// NewID returns a fresh opaque document id.
func NewID() string {
	return uuid.New().String()
}

// StorageName returns the storage filename for an upload: the id, an underscore, and the
// sanitized base name of the original file. Distinct ids always yield distinct names.
func StorageName(id, originalName string) string {
	return id + "_" + SanitizeName(originalName)
}

// SanitizeName reduces name to a safe single path element: directory parts are dropped,
// whitespace becomes underscores, and anything other than letters, digits, '.', '-' and '_'
// is removed. The extension is preserved when truncating long names.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(filepath.Clean("/" + name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "document"
	}
	if len(out) > maxNameLen {
		ext := filepath.Ext(out)
		if len(ext) >= maxNameLen {
			ext = ""
		}
		out = truncateRunes(out[:len(out)-len(ext)], maxNameLen-len(ext)) + ext
	}
	return out
}

// truncateRunes cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
