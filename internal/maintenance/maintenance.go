// Package maintenance provide tools for clean and update database
package maintenance

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/q3query/internal/config"
	"github.com/woozymasta/q3query/internal/game"
	"github.com/woozymasta/q3query/internal/models"
	"github.com/woozymasta/q3query/internal/q3"
	"github.com/woozymasta/q3query/internal/storage"
)

// Workers is the number of concurrent re-check queries.
const Workers = 10

// Run checks if any maintenance flags are set and executes the corresponding tasks.
// Returns true if a maintenance task was executed (indicating the program should exit).
func Run(ctx context.Context, cfg *config.Config, store *storage.Repository) bool {
	if cfg.Storage.PruneOffline {
		log.Info().Msg("Pruning offline servers...")

		count, err := store.DeleteOfflineServers()
		if err != nil {
			log.Error().Err(err).Msg("Failed to prune servers")
		} else {
			log.Info().Int64("deleted", count).Msg("Prune finished")
		}

		return true
	}

	var taskName string
	var onlyOffline bool

	switch {
	case cfg.Storage.CheckOffline:
		taskName = "Check Offline"
		onlyOffline = true
	case cfg.Storage.CheckAll:
		taskName = "Check All"
	default:
		return false
	}

	servers, err := store.GetServersSubset(onlyOffline)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch servers")
		return true
	}

	if len(servers) == 0 {
		log.Info().Msg("No servers found for maintenance")
		return true
	}

	log.Info().Int("count", len(servers)).Int("workers", Workers).Msgf("Starting '%s' task...", taskName)
	Recheck(ctx, servers, store, cfg.Query)
	if ctx.Err() != nil {
		log.Warn().Msg("Maintenance task interrupted")
		return true
	}
	log.Info().Msg("Maintenance task completed")

	return true
}

// Recheck polls every server with a fixed worker pool.
// Servers that answer are updated, the others are deleted.
// Once ctx is done no further server is polled and none is deleted.
func Recheck(ctx context.Context, servers []models.Server, store *storage.Repository, options config.Query) {
	jobs := make(chan models.Server, len(servers))
	var wg sync.WaitGroup

	for i := 0; i < Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range jobs {
				if ctx.Err() != nil {
					continue // drain
				}
				recheckServer(ctx, s, store, options)
			}
		}()
	}

feed:
	for _, s := range servers {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- s:
		}
	}
	close(jobs)

	wg.Wait()
}

func recheckServer(ctx context.Context, s models.Server, store *storage.Repository, options config.Query) {
	logCtx := log.With().Str("server", s.Address).Logger()

	target := q3.Target{Host: s.Host, Port: s.Port}
	if target.Port < q3.MinPort || target.Port > q3.MaxPort {
		logCtx.Debug().Msg("Invalid port, deleting server")
		deleteServer(logCtx, store, s.Address)
		return
	}

	snapshot, err := game.Poll(ctx, target, options)
	if ctx.Err() != nil {
		logCtx.Debug().Err(err).Msg("Check cancelled, server kept")
		return
	}
	if err != nil {
		logCtx.Debug().Err(err).Msg("Server unreachable, deleting server")
		deleteServer(logCtx, store, s.Address)
		return
	}

	snapshot.CountryCode = s.CountryCode
	if err := store.UpsertServer(snapshot); err != nil {
		logCtx.Error().Err(err).Msg("Failed to update server")
		return
	}

	logCtx.Trace().Msg("Server updated successfully")
}

func deleteServer(logCtx zerolog.Logger, store *storage.Repository, address string) {
	if err := store.DeleteServer(address); err != nil {
		logCtx.Error().Err(err).Msg("Failed to delete server")
	}
}
