// Package slug derives URL keys for debates from their titles.
package slug

import (
	"regexp"
	"strings"
)

// space is the whitespace set browsers match with \s. RE2's \s is ASCII only
// and misses no-break and other Unicode spaces pasted from documents.
const space = `\s\v\x{00A0}\x{1680}\x{2000}-\x{200A}\x{2028}\x{2029}\x{202F}\x{205F}\x{3000}\x{FEFF}`

var (
	disallowed = regexp.MustCompile(`[^a-z0-9` + space + `-]`)
	whitespace = regexp.MustCompile(`[` + space + `]+`)
	hyphens    = regexp.MustCompile(`-+`)
)

// Derive lowercases title, keeps only [a-z0-9], whitespace and hyphens,
// turns whitespace runs into a hyphen, collapses repeated hyphens and trims
// hyphens from both ends.
func Derive(title string) string {
	s := strings.ToLower(title)
	s = disallowed.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, "-")
	s = hyphens.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
