package q3

import "strings"

// infostring tokenizer states
const (
	expectKey = iota
	expectValue
)

// Pair is one key/value entry of an infostring.
type Pair struct {
	Key   string
	Value string
}

// ParseInfostring tokenizes a `\key\value\key\value` run into ordered pairs.
// A leading backslash is optional. A trailing key without value is dropped,
// as are pairs with an empty key.
func ParseInfostring(s string) []Pair {
	s = strings.TrimPrefix(s, `\`)
	if s == "" {
		return nil
	}

	var (
		pairs []Pair
		key   string
		state = expectKey
	)

	for {
		token, rest, more := strings.Cut(s, `\`)

		switch state {
		case expectKey:
			key = token
			state = expectValue
		case expectValue:
			if key != "" {
				pairs = append(pairs, Pair{Key: key, Value: token})
			}
			state = expectKey
		}

		if !more {
			break
		}
		s = rest
	}

	return pairs
}

// Cvar returns the value following the first key token equal to name in the
// infostring line of raw, or "" when the cvar is absent.
// raw may be a whole status reply; only its infostring line is scanned.
func Cvar(raw, name string) string {
	line, _, _ := strings.Cut(stripMarker(raw, statusMarker), "\n")
	for _, p := range ParseInfostring(line) {
		if p.Key == name {
			return p.Value
		}
	}

	return ""
}

// formatInfostring renders pairs back to the `\key\value` form.
func formatInfostring(pairs []Pair) string {
	var b strings.Builder
	for _, p := range pairs {
		b.WriteByte('\\')
		b.WriteString(p.Key)
		b.WriteByte('\\')
		b.WriteString(p.Value)
	}

	return b.String()
}
