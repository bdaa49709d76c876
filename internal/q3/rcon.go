package q3

import (
	"regexp"
	"strconv"
	"strings"
)

// Replies of servers refusing an rcon command.
var rconRefusals = []string{
	"Bad rconpassword.",
	"No rconpassword set on the server.",
	"No rconpassword set.",
}

var mapLine = regexp.MustCompile(`^map:\s(.+)`)

// rconColumns is the number of columns following the player name in a status row:
// lastmsg, address, qport, rate.
const rconColumns = 4

// ParseRconStatus parses the reply of "rcon <password> status".
//
// Blank lines, separator lines (leading '-') and the column header (leading "num")
// are skipped, a "map:" line sets Map and every other line is a player row.
// Rows that do not parse are skipped.
func ParseRconStatus(raw string) (*StatusDocument, error) {
	text := stripMarker(raw, printMarker)

	trimmed := strings.TrimSpace(text)
	for _, refusal := range rconRefusals {
		if strings.HasPrefix(trimmed, refusal) {
			return nil, newError(KindAuth, refusal)
		}
	}

	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return nil, newError(KindStructure, "no information provided")
	}

	doc := &StatusDocument{
		Variant: VariantRcon,
		Players: []Player{},
	}

	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.TrimSpace(line) == "",
			strings.HasPrefix(line, "-"),
			strings.HasPrefix(line, "num"):
			continue
		case strings.HasPrefix(line, "map"):
			if m := mapLine.FindStringSubmatch(line); m != nil {
				doc.Map = strings.TrimSpace(m[1])
			} else {
				doc.Map = ""
			}
		default:
			if player, ok := parseRconPlayer(line); ok {
				doc.Players = append(doc.Players, player)
			}
		}
	}

	return doc, nil
}

// parseRconPlayer parses a `num score ping name lastmsg address qport rate` row.
// The name may contain spaces; it spans from the ping column to the lastmsg column.
func parseRconPlayer(line string) (Player, bool) {
	spans := fieldSpans(line)
	if len(spans) < 4+rconColumns {
		return Player{}, false
	}
	field := func(i int) string { return line[spans[i][0]:spans[i][1]] }

	slot, err := strconv.Atoi(field(0))
	if err != nil {
		return Player{}, false
	}
	score, err := strconv.Atoi(field(1))
	if err != nil {
		return Player{}, false
	}

	p := Player{Slot: slot, Score: score}
	if ping, err := strconv.Atoi(field(2)); err == nil {
		p.Ping = ping
	} else {
		switch state := field(2); state {
		case "CNCT", "ZMBI":
			p.Ping = -1
			p.State = state
		default:
			return Player{}, false
		}
	}

	tail := len(spans) - rconColumns
	if p.LastMsg, err = strconv.Atoi(field(tail)); err != nil {
		return Player{}, false
	}
	p.Address = field(tail + 1)
	if p.QPort, err = strconv.Atoi(field(tail + 2)); err != nil {
		return Player{}, false
	}
	if p.Rate, err = strconv.Atoi(field(tail + 3)); err != nil {
		return Player{}, false
	}

	p.Name = strings.TrimRight(line[spans[3][0]:spans[tail][0]], " \t")

	return p, true
}

// fieldSpans returns the [start, end) offsets of the whitespace separated fields of s.
func fieldSpans(s string) [][2]int {
	var (
		spans [][2]int
		start = -1
	)

	for i := 0; i < len(s); i++ {
		blank := s[i] == ' ' || s[i] == '\t'
		switch {
		case blank && start >= 0:
			spans = append(spans, [2]int{start, i})
			start = -1
		case !blank && start < 0:
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, [2]int{start, len(s)})
	}

	return spans
}
