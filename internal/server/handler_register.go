package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/q3query/internal/game"
	"github.com/woozymasta/q3query/internal/models"
	"github.com/woozymasta/q3query/internal/q3"
)

// handleRegister asks the service to track a game server.
// It validates the address, checks the host allowlist (or, without one, that the host
// resolves to public addresses only) and the soft rate limit,
// and queues a poll so the client is never blocked by the game server.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	ip := GetRealIP(r, s.trustProxy)

	// Max body limit size
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)

	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Debug().
			Err(err).
			Str("ip", ip).
			Msg("Invalid JSON")

		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON"})
		return
	}

	target, err := q3.Resolve(req.Server)
	if err != nil {
		log.Debug().
			Err(err).
			Str("ip", ip).
			Str("server", req.Server).
			Msg("Invalid server address")

		writeQueryError(w, err)
		return
	}

	// Check host allowlist, or require a public address when there is none
	if len(s.allowedHosts) > 0 {
		if _, allowed := s.allowedHosts[xxhash.Sum64String(target.Host)]; !allowed {
			log.Debug().
				Str("ip", ip).
				Str("server", target.String()).
				Msg("Host not allowed")

			writeJSON(w, http.StatusForbidden, errorResponse{Error: "Host not allowed"})
			return
		}
	} else if err := s.checkPublicHost(r.Context(), target.Host); err != nil {
		log.Debug().
			Err(err).
			Str("ip", ip).
			Str("server", target.String()).
			Msg("Address not allowed")

		writeJSON(w, http.StatusForbidden, errorResponse{Error: "Address not allowed"})
		return
	}

	// Soft Limit
	key := target.String()
	if val, ok := s.seenCache.Load(key); ok {
		if lastSeen, ok := val.(time.Time); ok && time.Since(lastSeen) < s.softLimitDur {
			log.Trace().
				Str("ip", ip).
				Str("server", key).
				Msg("Dropped by soft limit hit")

			writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Recently polled"})
			return
		}
	}

	if !s.enqueue(pollJob{Target: target, Source: "api"}) {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Queue full"})
		return
	}
	s.seenCache.Store(key, time.Now())

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "ok", "message": "Poll queued"})
}

// checkPublicHost resolves host and fails unless every address is a public unicast one.
func (s *Server) checkPublicHost(ctx context.Context, host string) error {
	var ips []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ips = []net.IP{ip}
	} else {
		addrs, err := s.resolver.LookupIPAddr(ctx, host)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", host, err)
		}
		for _, a := range addrs {
			ips = append(ips, a.IP)
		}
	}

	if len(ips) == 0 {
		return fmt.Errorf("no addresses for %s", host)
	}

	for _, ip := range ips {
		if !isPublicIP(ip) {
			return fmt.Errorf("%s is not a public address", ip)
		}
	}

	return nil
}

// isPublicIP reports whether ip is a globally routable unicast address.
func isPublicIP(ip net.IP) bool {
	return !ip.IsLoopback() &&
		!ip.IsPrivate() &&
		!ip.IsUnspecified() &&
		!ip.IsLinkLocalUnicast() &&
		!ip.IsLinkLocalMulticast() &&
		!ip.IsInterfaceLocalMulticast() &&
		!ip.IsMulticast() &&
		!ip.Equal(net.IPv4bcast)
}

// enqueue adds a job without blocking. It reports false when the queue is full.
func (s *Server) enqueue(job pollJob) bool {
	select {
	case s.queue <- job:
		log.Trace().
			Str("server", job.Target.String()).
			Str("source", job.Source).
			Msg("Poll queued")

		return true
	default:
		log.Warn().
			Str("server", job.Target.String()).
			Str("source", job.Source).
			Msg("Queue full, poll dropped")

		return false
	}
}

// worker is a background goroutine that processes jobs from the poll queue.
func (s *Server) worker() {
	defer s.wg.Done()

	for job := range s.queue {
		s.processJob(job)
	}
}

// processJob queries the game server, resolves the country (GeoIP), and upserts the snapshot to the storage.
// A server that does not answer is stored as offline.
func (s *Server) processJob(job pollJob) {
	ctx := context.Background()

	server, err := game.Poll(ctx, job.Target, s.queryOptions)
	if err != nil {
		log.Debug().
			Err(err).
			Str("server", job.Target.String()).
			Stringer("kind", q3.KindOf(err)).
			Msg("Poll failed")
	}

	// GeoIP
	if s.geoip != nil {
		server.CountryCode = s.geoip.CountryCode(ctx, job.Target.Host)
	}

	// Write to DB
	if err := s.storage.UpsertServer(server); err != nil {
		log.Error().Err(err).Str("server", server.Address).Msg("Failed to save server to DB")
		return
	}

	log.Debug().
		Str("server", server.Address).
		Str("source", job.Source).
		Bool("online", server.Online).
		Int("players", server.Players).
		Msg("Server saved")
}
