// Package models defines the data structures used for API requests and database persistence.
package models

import "time"

// RegisterRequest is the payload asking the service to track a game server.
type RegisterRequest struct {
	Server string `json:"server"`
}

// RconRequest is the payload of a live rcon status query.
type RconRequest struct {
	Server   string `json:"server"`
	Password string `json:"password"`
}

// Server is the last known snapshot of a tracked game server.
type Server struct {
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	LastOnline  time.Time `json:"last_online,omitzero"`
	Address     string    `json:"address"`
	Host        string    `json:"host"`
	CountryCode string    `json:"country_code"`
	Hostname    string    `json:"hostname"`
	CleanName   string    `json:"clean_name"`
	MapName     string    `json:"map_name"`
	GameType    string    `json:"game_type"`
	GameName    string    `json:"game_name"`
	Version     string    `json:"version"`
	PlayerList  []Player  `json:"player_list,omitempty"`
	Port        int       `json:"port"`
	Players     int       `json:"players"`
	MaxPlayers  int       `json:"max_players"`
	Count       int64     `json:"count"`
	Online      bool      `json:"online"`
}

// Player is a client seen in the last snapshot of a server.
type Player struct {
	Name      string `json:"name"`
	CleanName string `json:"clean_name"`
	Score     int    `json:"score"`
	Ping      int    `json:"ping"`
}
