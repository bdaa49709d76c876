// main is the entry point of the Q3Query application.
// It initializes the configuration and logger, then either runs one-shot queries,
// database maintenance, or the HTTP server with its background pollers.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/q3query/internal/config"
	"github.com/woozymasta/q3query/internal/fake"
	"github.com/woozymasta/q3query/internal/geoip"
	"github.com/woozymasta/q3query/internal/logger"
	"github.com/woozymasta/q3query/internal/maintenance"
	"github.com/woozymasta/q3query/internal/probe"
	"github.com/woozymasta/q3query/internal/q3"
	"github.com/woozymasta/q3query/internal/server"
	"github.com/woozymasta/q3query/internal/storage"
)

func main() {
	cfg := config.Parse()

	logger.Setup(cfg.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// One-shot queries
	if handled, err := probe.Run(ctx, cfg, os.Stdout); handled {
		if err != nil {
			log.Error().Err(err).Msg("Probe finished with errors")
			stop()
			os.Exit(1)
		}
		return
	}

	log.Info().Msg("Starting q3query service...")

	// Database
	store, err := storage.New(cfg.Storage.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}()

	// data generation or database maintenance
	if cfg.Storage.GenerateCount > 0 {
		fake.GenerateData(store, cfg.Storage.GenerateCount)
		return
	} else if maintenance.Run(ctx, cfg, store) {
		return
	}

	// GeoIP Update
	log.Info().Msg("Checking GeoIP database...")
	if err := geoip.EnsureDB(cfg.GeoIP.Path, cfg.GeoIP.URL, cfg.GeoIP.Interval); err != nil {
		log.Error().Err(err).Msg("Failed to download GeoIP database")
	}

	geoProvider, err := geoip.Open(cfg.GeoIP.Path)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open GeoIP database, country detection disabled")
		geoProvider = nil
	} else {
		defer func() {
			if err := geoProvider.Close(); err != nil {
				log.Error().Err(err).Msg("Error closing GeoIP provider")
			}
		}()
	}

	// Watch list
	var watchList []q3.Target
	if cfg.Poll.ServersFile != "" {
		watchList, err = config.LoadWatchList(cfg.Poll.ServersFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load watch list")
		}
	}

	// Init server
	srvHandler := server.New(store, geoProvider, cfg, watchList)

	// Background queue
	srvHandler.StartWorkers()

	// Live queries may wait for timeout plus quiet period
	writeTimeout := cfg.Query.Timeout + cfg.Query.QuietPeriod + 5*time.Second

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      srvHandler.Run(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful Shutdown
	<-ctx.Done()

	log.Info().Msg("Shutting down server...")

	// Shut down HTTP
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop workers (wait queue done)
	srvHandler.StopWorkers()

	log.Info().Msg("Server exited")
}
