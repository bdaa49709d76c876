// Package game provides the query operations of Quake3-family game servers:
// public status, rcon status and raw commands.
package game

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/q3query/internal/config"
	"github.com/woozymasta/q3query/internal/models"
	"github.com/woozymasta/q3query/internal/q3"
)

// QueryStatus sends getstatus to server ("host:port") and parses the reply.
func QueryStatus(ctx context.Context, server string, options config.Query) (*q3.StatusDocument, error) {
	raw, err := exchange(ctx, server, q3.CommandStatus, options)
	if err != nil {
		return nil, err
	}

	return q3.ParseStatus(raw, q3.VariantStatus)
}

// QueryRconStatus sends "rcon <password> status" to server and parses the reply.
func QueryRconStatus(ctx context.Context, server, password string, options config.Query) (*q3.StatusDocument, error) {
	payload, err := q3.RconCommand(password, "status")
	if err != nil {
		return nil, err
	}

	raw, err := exchange(ctx, server, payload, options)
	if err != nil {
		return nil, err
	}

	return q3.ParseStatus(raw, q3.VariantRcon)
}

// QueryRaw sends any out-of-band command to server and returns the reply text as received.
func QueryRaw(ctx context.Context, server, command string, options config.Query) (string, error) {
	return exchange(ctx, server, command, options)
}

// exchange validates server and runs a single request/response exchange with it.
func exchange(ctx context.Context, server, payload string, options config.Query) (string, error) {
	target, err := q3.Resolve(server)
	if err != nil {
		return "", err
	}

	return exchangeTarget(ctx, target, payload, options)
}

func exchangeTarget(ctx context.Context, target q3.Target, payload string, options config.Query) (string, error) {
	client := q3.NewClient(options.QuietPeriod, options.BufferSize)
	start := time.Now()

	raw, err := client.Exchange(ctx, q3.Request{
		Target:  target,
		Payload: payload,
		Timeout: options.Timeout,
	})
	if err != nil {
		log.Debug().
			Err(err).
			Str("server", target.String()).
			Stringer("kind", q3.KindOf(err)).
			Dur("duration", time.Since(start)).
			Msg("Query failed")

		return "", fmt.Errorf("query %s: %w", target, err)
	}

	log.Trace().
		Str("server", target.String()).
		Int("bytes", len(raw)).
		Dur("duration", time.Since(start)).
		Msg("Query completed")

	return raw, nil
}

// Poll queries the status of target once and returns the record to store:
// a snapshot when the server answered, an offline record and the error otherwise.
func Poll(ctx context.Context, target q3.Target, options config.Query) (models.Server, error) {
	seen := time.Now()

	raw, err := exchangeTarget(ctx, target, q3.CommandStatus, options)
	if err != nil {
		return Offline(target, seen), err
	}

	doc, err := q3.ParseStatus(raw, q3.VariantStatus)
	if err != nil {
		return Offline(target, seen), err
	}

	return Snapshot(target, doc, seen), nil
}

// Snapshot converts a getstatus document of target into a storable server record.
func Snapshot(target q3.Target, doc *q3.StatusDocument, seen time.Time) models.Server {
	players := make([]models.Player, 0, len(doc.Players))
	for _, p := range doc.Players {
		players = append(players, models.Player{
			Name:      p.Name,
			CleanName: q3.CleanName(p.Name),
			Score:     p.Score,
			Ping:      p.Ping,
		})
	}

	return models.Server{
		Address:    target.String(),
		Host:       target.Host,
		Port:       target.Port,
		Hostname:   doc.Hostname(),
		CleanName:  q3.CleanName(doc.Hostname()),
		MapName:    doc.MapName(),
		GameType:   doc.GameType(),
		GameName:   doc.Cvar("gamename"),
		Version:    doc.Cvar("version"),
		Players:    len(players),
		MaxPlayers: doc.MaxClients(),
		PlayerList: players,
		Online:     true,
		FirstSeen:  seen,
		LastSeen:   seen,
	}
}

// Offline returns the record of a poll of target that got no answer.
func Offline(target q3.Target, seen time.Time) models.Server {
	return models.Server{
		Address:   target.String(),
		Host:      target.Host,
		Port:      target.Port,
		FirstSeen: seen,
		LastSeen:  seen,
	}
}
