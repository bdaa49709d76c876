package q3

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// StripColors removes ^X color codes from a player or server name.
func StripColors(name string) string {
	if !strings.Contains(name, "^") {
		return name
	}

	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		if name[i] == '^' && i+1 < len(name) {
			i++
			continue
		}
		b.WriteByte(name[i])
	}

	return b.String()
}

// CleanName strips color codes and trims spaces. Names that are not valid UTF-8
// are taken as Latin-1 and decoded.
func CleanName(name string) string {
	s := StripColors(name)
	if utf8.ValidString(s) {
		return strings.TrimSpace(s)
	}
	if decoded, err := charmap.ISO8859_1.NewDecoder().String(s); err == nil {
		s = decoded
	}

	return strings.TrimSpace(s)
}
