package utils

import (
	"path/filepath"
	"strings"
)

// DigitsOnly strips every non-digit rune from s. Document numbers are
// normalized through here before any checksum or blacklist lookup.
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// allowedDocumentExts is the upload allow-list for credential documents
var allowedDocumentExts = map[string]bool{
	".pdf":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// AllowedDocumentExt reports whether the filename carries an accepted
// document extension
func AllowedDocumentExt(filename string) bool {
	return allowedDocumentExts[strings.ToLower(filepath.Ext(filename))]
}
