package q3

import (
	"reflect"
	"testing"
)

const statusReply = "\xFF\xFF\xFF\xFFstatusResponse\n" +
	`\sv_hostname\^1My ^7Server\mapname\mp/ffa3\g_gametype\8\sv_maxclients\32\custom\x` + "\n" +
	"5 48 \"^1Padawan\"\n" +
	"12 0 \"Name With \"Quotes\"\"\n" +
	"broken line\n" +
	"7 20\n" +
	"-3 999 \"Neg\"\n" +
	"\n"

func TestParsePlainStatus(t *testing.T) {
	doc, err := ParseStatus(statusReply, VariantStatus)
	if err != nil {
		t.Fatal(err)
	}

	if doc.Variant != VariantStatus {
		t.Fatalf("variant = %s", doc.Variant)
	}
	if len(doc.Cvars) != len(KnownCvars) {
		t.Fatalf("cvars has %d keys, want %d", len(doc.Cvars), len(KnownCvars))
	}
	if v := doc.Cvars["sv_hostname"]; v != "^1My ^7Server" {
		t.Fatalf("sv_hostname = %q", v)
	}
	if v, ok := doc.Cvars["fraglimit"]; !ok || v != "" {
		t.Fatalf("absent known cvar = %q, %v", v, ok)
	}
	if _, ok := doc.Cvars["custom"]; ok {
		t.Fatal("unknown cvar leaked into Cvars")
	}
	if doc.Info["custom"] != "x" {
		t.Fatalf("info custom = %q", doc.Info["custom"])
	}
	if doc.GameType() != "Capture the Flag" {
		t.Fatalf("game type = %q", doc.GameType())
	}
	if doc.MaxClients() != 32 {
		t.Fatalf("max clients = %d", doc.MaxClients())
	}
	if doc.MapName() != "mp/ffa3" {
		t.Fatalf("map = %q", doc.MapName())
	}
	if doc.Hostname() != "^1My ^7Server" {
		t.Fatalf("hostname = %q", doc.Hostname())
	}

	expected := []Player{
		{Slot: 0, Score: 5, Ping: 48, Name: "^1Padawan"},
		{Slot: 1, Score: 12, Ping: 0, Name: `Name With "Quotes"`},
		{Slot: 2, Score: -3, Ping: 999, Name: "Neg"},
	}
	if !reflect.DeepEqual(doc.Players, expected) {
		t.Fatalf("players = %+v, want %+v", doc.Players, expected)
	}
}

func TestParsePlainStatusTolerance(t *testing.T) {
	// Marker absent, unquoted name, CRLF line endings.
	doc, err := ParseStatus("\\sv_hostname\\X\r\n1 2 unquoted name\r\n", VariantStatus)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Hostname() != "X" {
		t.Fatalf("hostname = %q", doc.Hostname())
	}
	if len(doc.Players) != 1 || doc.Players[0].Name != "unquoted name" {
		t.Fatalf("players = %+v", doc.Players)
	}

	// A second fragment repeating the reply marker.
	raw := Header + "statusResponse\n\\a\\1\n1 2 \"x\"\n" + Header + "statusResponse\n3 4 \"y\"\n"
	doc, _ = ParseStatus(raw, VariantStatus)
	if len(doc.Players) != 2 || doc.Players[1].Name != "y" {
		t.Fatalf("players = %+v", doc.Players)
	}

	// Empty reply yields an empty document.
	doc, err = ParseStatus("", VariantStatus)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Players) != 0 || doc.Hostname() != "" || doc.GameType() != "" {
		t.Fatalf("doc = %+v", doc)
	}
}

func TestParseStatusIdempotent(t *testing.T) {
	first, _ := ParseStatus(statusReply, VariantStatus)
	second, _ := ParseStatus(statusReply, VariantStatus)

	if !reflect.DeepEqual(first, second) {
		t.Fatal("parsing the same reply twice gave different documents")
	}
}

func TestEncodeStatusRoundTrip(t *testing.T) {
	doc := &StatusDocument{
		Info: map[string]string{
			"sv_hostname":   "^5Round ^7Trip",
			"mapname":       "mp/ctf1",
			"g_gametype":    "8",
			"sv_maxclients": "16",
			"custom_cvar":   "",
		},
		Players: []Player{
			{Slot: 0, Score: 10, Ping: 50, Name: "^2One"},
			{Slot: 1, Score: -1, Ping: 999, Name: "Two Words"},
		},
	}

	parsed, err := ParseStatus(EncodeStatus(doc), VariantStatus)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(parsed.Info, doc.Info) {
		t.Fatalf("info = %v, want %v", parsed.Info, doc.Info)
	}
	if !reflect.DeepEqual(parsed.Players, doc.Players) {
		t.Fatalf("players = %+v, want %+v", parsed.Players, doc.Players)
	}
	if parsed.Cvars["mapname"] != "mp/ctf1" {
		t.Fatalf("mapname = %q", parsed.Cvars["mapname"])
	}
}
