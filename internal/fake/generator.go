// Package fake provides utilities for generating random server snapshots for testing and development purposes.
package fake

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/q3query/internal/models"
	"github.com/woozymasta/q3query/internal/q3"
	"github.com/woozymasta/q3query/internal/storage"
)

var (
	maps      = []string{"mp/ffa1", "mp/ffa3", "mp/ffa5", "mp/duel1", "mp/duel6", "mp/ctf1", "mp/ctf4", "mp/siege_hoth", "mp/siege_desert"}
	gameNames = []string{"basejka", "JA+ Mod", "MBII", "japlus"}
	versions  = []string{"JAmp: v1.0.1.0 win-x86 Oct 24 2003", "OpenJK-MP 1.0.1.0 linux-x86_64", "JAmp: v1.0.1.1 linux-i386 Nov 10 2003"}
	names     = []string{"Padawan", "Kyle", "Jaden", "Tavion", "Rosh", "Luke", "Alora", "Desann", "Galak", "Reelo"}
	colors    = []string{"", "^1", "^2", "^3", "^4", "^5", "^6", "^7"}
	gameTypes = []q3.GameType{q3.GameTypeFFA, q3.GameTypeDuel, q3.GameTypePowerDuel, q3.GameTypeTeam, q3.GameTypeSiege, q3.GameTypeCTF}

	// Countries list
	countriesHigh = []string{"US", "DE", "RU", "BR", "FR", "GB", "PL", "NL"}
	countriesLow  = []string{"CA", "AU", "IT", "ES", "SE", "FI", "CZ", "AR"}
)

// GenerateData populates the storage with a specified number of randomized server records.
// It simulates maps, game types, countries, players and servers going down.
func GenerateData(store *storage.Repository, count int) {
	for i := 0; i < count; i++ {
		// Random date-time in 30 days range
		daysAgo := rand.Intn(30)
		seen := time.Now().Add(-time.Duration(daysAgo) * 24 * time.Hour).
			Add(-time.Duration(rand.Intn(1440)) * time.Minute)

		server := randomServer(seen)
		if err := store.UpsertServer(server); err != nil {
			log.Warn().Err(err).Msg("Failed to generate fake server")
			continue
		}

		if rand.Float32() < 0.3 { // 30% chance polled again
			server.LastSeen = server.LastSeen.Add(time.Minute)
			_ = store.UpsertServer(server)
		}

		if rand.Float32() < 0.2 { // 20% chance down on the last poll
			_ = store.UpsertServer(models.Server{
				Address:   server.Address,
				Host:      server.Host,
				Port:      server.Port,
				FirstSeen: server.FirstSeen,
				LastSeen:  server.LastSeen.Add(time.Hour),
			})
		}
	}

	log.Info().Int("count", count).Msg("Fake servers generated")
}

func randomServer(seen time.Time) models.Server {
	host := fmt.Sprintf("%d.%d.%d.%d", rand.Intn(220)+1, rand.Intn(255), rand.Intn(255), rand.Intn(255))
	target := q3.Target{Host: host, Port: 29070 + rand.Intn(20)}

	var country string
	if rand.Float32() < 0.75 {
		country = countriesHigh[rand.Intn(len(countriesHigh))]
	} else {
		country = countriesLow[rand.Intn(len(countriesLow))]
	}

	maxPlayers := 8 + rand.Intn(25)
	players := make([]models.Player, rand.Intn(maxPlayers+1))
	for i := range players {
		name := colors[rand.Intn(len(colors))] + names[rand.Intn(len(names))]
		players[i] = models.Player{
			Name:      name,
			CleanName: q3.CleanName(name),
			Score:     rand.Intn(50) - 5,
			Ping:      20 + rand.Intn(200),
		}
	}

	hostname := fmt.Sprintf("%s|JKA| Server #%d", colors[rand.Intn(len(colors))], rand.Intn(1000))

	return models.Server{
		Address:     target.String(),
		Host:        target.Host,
		Port:        target.Port,
		CountryCode: country,
		Hostname:    hostname,
		CleanName:   q3.CleanName(hostname),
		MapName:     maps[rand.Intn(len(maps))],
		GameType:    gameTypes[rand.Intn(len(gameTypes))].String(),
		GameName:    gameNames[rand.Intn(len(gameNames))],
		Version:     versions[rand.Intn(len(versions))],
		Players:     len(players),
		MaxPlayers:  maxPlayers,
		PlayerList:  players,
		Online:      true,
		FirstSeen:   seen.Add(-7 * 24 * time.Hour),
		LastSeen:    seen,
	}
}
