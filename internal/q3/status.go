package q3

import (
	"strconv"
	"strings"
)

// Reply markers preceding the payload of server responses.
const (
	statusMarker = "statusResponse"
	printMarker  = "print"
)

// Variant selects the reply format handled by ParseStatus.
type Variant uint8

const (
	// VariantStatus is the public getstatus reply.
	VariantStatus Variant = iota
	// VariantRcon is the reply to the "rcon <password> status" admin command.
	VariantRcon
)

// String returns the variant name.
func (v Variant) String() string {
	if v == VariantRcon {
		return "rcon_status"
	}

	return "status"
}

// MarshalText encodes the variant as its name.
func (v Variant) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// KnownCvars is the closed set of cvars extracted into StatusDocument.Cvars.
var KnownCvars = []string{
	"sv_hostname",
	"mapname",
	"g_gametype",
	"gamename",
	"version",
	"protocol",
	"sv_maxclients",
	"sv_privateClients",
	"g_needpass",
	"g_maxGameClients",
	"fraglimit",
	"timelimit",
	"capturelimit",
	"duel_fraglimit",
	"g_maxForceRank",
	"g_forcePowerDisable",
	"g_weaponDisable",
	"g_duelWeaponDisable",
	"g_forceBasedTeams",
	"g_privateDuel",
	"g_saberLocking",
	"sv_floodProtect",
	"sv_allowDownload",
	"sv_maxRate",
	"sv_minPing",
	"sv_maxPing",
	"dmflags",
	"bot_minplayers",
}

// Player is one connected client.
// Plain status replies fill Score, Ping and Name only; Slot is then the position in the reply.
type Player struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	State   string `json:"state,omitempty"`
	Slot    int    `json:"slot"`
	Score   int    `json:"score"`
	Ping    int    `json:"ping"`
	LastMsg int    `json:"last_msg,omitempty"`
	QPort   int    `json:"qport,omitempty"`
	Rate    int    `json:"rate,omitempty"`
}

// StatusDocument is the structured view of a status reply.
type StatusDocument struct {
	// Cvars holds every key of KnownCvars; absent cvars map to "".
	Cvars map[string]string `json:"cvars,omitempty"`

	// Info holds every pair of the infostring, known or not.
	Info map[string]string `json:"info,omitempty"`

	// Map is the current map reported by rcon status, "" when absent.
	Map string `json:"map,omitempty"`

	Players []Player `json:"players"`

	Variant Variant `json:"variant"`
}

// ParseStatus parses a raw reply of the given variant.
func ParseStatus(raw string, variant Variant) (*StatusDocument, error) {
	if variant == VariantRcon {
		return ParseRconStatus(raw)
	}

	return parsePlainStatus(raw), nil
}

// parsePlainStatus parses a getstatus reply. It never fails: a missing marker is
// tolerated and malformed player lines are skipped.
func parsePlainStatus(raw string) *StatusDocument {
	doc := &StatusDocument{
		Variant: VariantStatus,
		Cvars:   make(map[string]string, len(KnownCvars)),
		Info:    make(map[string]string),
		Players: []Player{},
	}

	lines := strings.Split(stripMarker(raw, statusMarker), "\n")
	for _, p := range ParseInfostring(strings.TrimRight(lines[0], "\r")) {
		if _, dup := doc.Info[p.Key]; !dup {
			doc.Info[p.Key] = p.Value
		}
	}
	for _, name := range KnownCvars {
		doc.Cvars[name] = doc.Info[name]
	}

	for _, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(line, Header) {
			// A fragment repeating the reply marker.
			line = stripMarker(line, statusMarker)
		}
		if line == "" {
			continue
		}

		if player, ok := parseStatusPlayer(line, len(doc.Players)); ok {
			doc.Players = append(doc.Players, player)
		}
	}

	return doc
}

// parseStatusPlayer parses a `score ping "name"` line.
func parseStatusPlayer(line string, slot int) (Player, bool) {
	scoreField, rest := cutField(line)
	pingField, rest := cutField(rest)

	score, err := strconv.Atoi(scoreField)
	if err != nil {
		return Player{}, false
	}
	ping, err := strconv.Atoi(pingField)
	if err != nil {
		return Player{}, false
	}

	name := strings.TrimSpace(rest)
	if name == "" {
		return Player{}, false
	}
	if strings.HasPrefix(name, `"`) {
		name = strings.TrimPrefix(name, `"`)
		name = strings.TrimSuffix(name, `"`)
	}

	return Player{Slot: slot, Score: score, Ping: ping, Name: name}, true
}

// cutField returns the first space separated field of s and the remainder after it.
func cutField(s string) (field, rest string) {
	s = strings.TrimLeft(s, " \t")
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], s[i+1:]
	}

	return s, ""
}

// stripMarker removes a leading out-of-band header, the response tag and the
// newline following it. Each part is optional.
func stripMarker(raw, tag string) string {
	s := strings.TrimPrefix(raw, Header)
	if rest, ok := strings.CutPrefix(s, tag); ok {
		rest = strings.TrimPrefix(rest, "\r")
		if rest == "" || rest[0] == '\n' {
			s = strings.TrimPrefix(rest, "\n")
		}
	}

	return s
}

// Cvar returns the value of a cvar from the infostring, "" when absent.
func (d *StatusDocument) Cvar(name string) string {
	if v, ok := d.Cvars[name]; ok {
		return v
	}

	return d.Info[name]
}

// Hostname returns sv_hostname.
func (d *StatusDocument) Hostname() string {
	return d.Cvar("sv_hostname")
}

// MapName returns the rcon reported map, falling back to the mapname cvar.
func (d *StatusDocument) MapName() string {
	if d.Map != "" {
		return d.Map
	}

	return d.Cvar("mapname")
}

// GameType returns the decoded g_gametype, e.g. "Capture the Flag".
func (d *StatusDocument) GameType() string {
	raw := d.Cvar("g_gametype")
	if raw == "" {
		return ""
	}

	return GameTypeName(raw)
}

// MaxClients returns sv_maxclients, 0 when absent or malformed.
func (d *StatusDocument) MaxClients() int {
	n, _ := strconv.Atoi(strings.TrimSpace(d.Cvar("sv_maxclients")))
	return n
}
