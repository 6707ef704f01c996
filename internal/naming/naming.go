// Package naming builds filesystem-safe names for account folders and
// processed media files.
package naming

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	whitespace   = regexp.MustCompile(`\s+`)
	invalidChars = regexp.MustCompile(`[^a-z0-9_-]+`)
	schemePrefix = regexp.MustCompile(`^https?://`)
)

// Slugify lowercases s, strips accents, turns whitespace into dashes and drops
// everything that is not a letter, digit, underscore or dash.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	out := strings.ToLower(stripped)
	out = whitespace.ReplaceAllString(out, "-")
	return invalidChars.ReplaceAllString(out, "")
}

// SanitizeFilename slugifies the base name and lowercases the extension.
func SanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	name := Slugify(base)
	if name == "" {
		name = "file"
	}
	return name + ext
}

// ReplaceExt swaps the extension of filename for ext (with leading dot).
func ReplaceExt(filename, ext string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + ext
}

// AvailableFilename returns filename if it does not exist in dir, otherwise the
// first "name-N.ext" that does not.
func AvailableFilename(dir, filename string) string {
	ext := filepath.Ext(filename)
	name := strings.TrimSuffix(filename, ext)

	candidate := filename
	for i := 1; exists(filepath.Join(dir, candidate)); i++ {
		candidate = fmt.Sprintf("%s-%d%s", name, i, ext)
	}
	return candidate
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// FolderFromDomain derives an account folder from its domain:
// "https://shop.example.com/store/" becomes "shop.example.com_store".
func FolderFromDomain(domain string) string {
	folder := strings.TrimSpace(domain)
	folder = schemePrefix.ReplaceAllString(folder, "")
	folder = strings.ReplaceAll(folder, "/", "_")
	return strings.TrimRight(folder, "_")
}
