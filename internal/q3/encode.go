package q3

import (
	"fmt"
	"sort"
	"strings"
)

// EncodeStatus renders doc as a getstatus reply, the way a server sends it.
// Info keys are written in sorted order; when Info is empty the non-empty Cvars are used.
// ParseStatus of the result reproduces the infostring and the players of doc.
func EncodeStatus(doc *StatusDocument) string {
	source := doc.Info
	if len(source) == 0 {
		source = doc.Cvars
	}

	keys := make([]string, 0, len(source))
	for k, v := range source {
		if k != "" && (len(doc.Info) > 0 || v != "") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	pairs := make([]Pair, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, Pair{Key: k, Value: source[k]})
	}

	var b strings.Builder
	b.WriteString(Header)
	b.WriteString(statusMarker)
	b.WriteByte('\n')
	b.WriteString(formatInfostring(pairs))
	b.WriteByte('\n')
	for _, p := range doc.Players {
		fmt.Fprintf(&b, "%d %d \"%s\"\n", p.Score, p.Ping, p.Name)
	}

	return b.String()
}

// EncodeRconStatus renders doc as the reply of "rcon <password> status".
func EncodeRconStatus(doc *StatusDocument) string {
	var b strings.Builder
	b.WriteString(Header)
	b.WriteString(printMarker)
	b.WriteByte('\n')
	fmt.Fprintf(&b, "map: %s\n", doc.MapName())
	b.WriteString("num score ping name            lastmsg address               qport rate\n")
	b.WriteString("--- ----- ---- --------------- ------- --------------------- ----- -----\n")
	for _, p := range doc.Players {
		ping := fmt.Sprintf("%4d", p.Ping)
		if p.State != "" {
			ping = p.State
		}
		fmt.Fprintf(&b, "%3d %5d %s %-15s %7d %-21s %5d %5d\n",
			p.Slot, p.Score, ping, p.Name, p.LastMsg, p.Address, p.QPort, p.Rate)
	}

	return b.String()
}
