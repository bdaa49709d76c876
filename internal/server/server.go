// Package server implements the HTTP server, middleware, and request handlers for the application.
package server

import (
	"net"
	"net/http"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/q3query/internal/config"
	"github.com/woozymasta/q3query/internal/geoip"
	"github.com/woozymasta/q3query/internal/q3"
	"github.com/woozymasta/q3query/internal/storage"
)

// New creates a new Server instance with the provided storage, GeoIP provider, configuration
// and the servers of the watch list.
func New(store *storage.Repository, geo *geoip.Provider, cfg *config.Config, watchList []q3.Target) *Server {
	hostMap := make(map[uint64]struct{})
	for _, host := range cfg.Server.AllowedHosts {
		hash := xxhash.Sum64String(host)
		hostMap[hash] = struct{}{}
	}

	return &Server{
		storage:        store,
		geoip:          geo,
		resolver:       net.DefaultResolver,
		queryOptions:   cfg.Query,
		authToken:      cfg.Server.AuthToken,
		allowedHosts:   hostMap,
		maxBody:        cfg.Server.MaxBodySize,
		trustProxy:     cfg.Server.TrustProxy,
		workers:        cfg.Server.Workers,
		hardLimitCount: cfg.RateLimit.HardLimitCount,
		hardLimitWin:   cfg.RateLimit.HardLimitWin,
		softLimitDur:   cfg.RateLimit.SoftLimitDur,
		watchList:      watchList,
		pollInterval:   cfg.Poll.Interval,
		statusCache:    expirable.NewLRU[string, *q3.StatusDocument](cfg.Server.CacheSize, nil, cfg.Server.CacheTTL),

		queue:    make(chan pollJob, cfg.Server.QueueSize),
		shutdown: make(chan struct{}),
	}
}

// StartWorkers initializes the background worker pool for processing poll jobs,
// the watch list poller and the cache cleanup routine.
func (s *Server) StartWorkers() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}

	if len(s.watchList) > 0 && s.pollInterval > 0 {
		log.Info().
			Int("servers", len(s.watchList)).
			Dur("interval", s.pollInterval).
			Msg("Watch list poller started")

		s.pollerWg.Add(1)
		go s.pollWatchList()
	}

	// Clean soft-limit cache
	go s.gcSoftLimitCache()
}

// StopWorkers gracefully stops the background workers and closes the job queue.
func (s *Server) StopWorkers() {
	close(s.shutdown)
	s.pollerWg.Wait()
	close(s.queue)
	s.wg.Wait()
}

// Run configures the HTTP routes and returns the main handler.
func (s *Server) Run() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /api/servers", s.RateLimitMiddleware(http.HandlerFunc(s.handleRegister)))
	mux.Handle("GET /api/version", http.HandlerFunc(s.handleVersion))

	mux.Handle("GET /api/servers", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleListServers)))
	mux.Handle("GET /api/server", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleGetServer)))
	mux.Handle("DELETE /api/server", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleDeleteServer)))
	mux.Handle("GET /api/status", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleLiveStatus)))
	mux.Handle("POST /api/rcon/status", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleRconStatus)))

	return s.LoggingMiddleware(mux)
}

// gcSoftLimitCache periodically cleans up expired entries from the soft rate-limit cache.
func (s *Server) gcSoftLimitCache() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			now := time.Now()
			s.seenCache.Range(func(key, value any) bool {
				if t, ok := value.(time.Time); ok {
					if now.Sub(t) > s.softLimitDur {
						s.seenCache.Delete(key)
					}
				} else {
					s.seenCache.Delete(key)
				}
				return true
			})
		}
	}
}
