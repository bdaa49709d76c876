package q3

import "strconv"

// GameType is the numeric value of the g_gametype cvar.
type GameType int

// Game types as numbered by Jedi Academy servers.
const (
	GameTypeFFA GameType = iota
	GameTypeHolocron
	GameTypeJediMaster
	GameTypeDuel
	GameTypePowerDuel
	GameTypeSinglePlayer
	GameTypeTeam
	GameTypeSiege
	GameTypeCTF
	GameTypeCTY
)

var gameTypeNames = [...]string{
	GameTypeFFA:          "FFA",
	GameTypeHolocron:     "Holocron",
	GameTypeJediMaster:   "Jedi Master",
	GameTypeDuel:         "Duel",
	GameTypePowerDuel:    "Power Duel",
	GameTypeSinglePlayer: "Single Player",
	GameTypeTeam:         "Team FFA",
	GameTypeSiege:        "Siege",
	GameTypeCTF:          "Capture the Flag",
	GameTypeCTY:          "Capture the Ysalamiri",
}

// String returns the display name, or the number for unknown game types.
func (g GameType) String() string {
	if g >= 0 && int(g) < len(gameTypeNames) {
		return gameTypeNames[g]
	}

	return strconv.Itoa(int(g))
}

// GameTypeName decodes a raw g_gametype value into its display name.
// Values that are not integers are returned unchanged.
func GameTypeName(raw string) string {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return raw
	}

	return GameType(n).String()
}
