package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/q3query/internal/game"
	"github.com/woozymasta/q3query/internal/models"
	"github.com/woozymasta/q3query/internal/q3"
	"github.com/woozymasta/q3query/internal/vars"
)

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// statusResponse is the JSON body of a live query.
type statusResponse struct {
	Status *q3.StatusDocument `json:"status"`
	Server string             `json:"server"`
	Cached bool               `json:"cached"`
}

// handleVersion returns the build information.
func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, vars.Info())
}

// handleListServers returns a JSON list of all tracked servers.
// This endpoint is protected by AdminAuthMiddleware.
func (s *Server) handleListServers(w http.ResponseWriter, _ *http.Request) {
	servers, err := s.storage.GetServers()
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch servers")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Database Error"})
		return
	}

	if servers == nil {
		servers = []models.Server{}
	}

	writeJSON(w, http.StatusOK, servers)
}

// handleGetServer returns details and players of a tracked server.
// Query params: ?address=1.2.3.4:29070
func (s *Server) handleGetServer(w http.ResponseWriter, r *http.Request) {
	target, ok := targetParam(w, r, "address")
	if !ok {
		return
	}

	server, err := s.storage.GetServer(target.String())
	if err != nil {
		log.Error().Err(err).Str("server", target.String()).Msg("Failed to fetch server")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Database Error"})
		return
	}

	if server == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Server not found"})
		return
	}

	writeJSON(w, http.StatusOK, server)
}

// handleDeleteServer removes a tracked server from the database.
// Query params: ?address=1.2.3.4:29070
func (s *Server) handleDeleteServer(w http.ResponseWriter, r *http.Request) {
	target, ok := targetParam(w, r, "address")
	if !ok {
		return
	}

	if err := s.storage.DeleteServer(target.String()); err != nil {
		log.Error().Err(err).Str("server", target.String()).Msg("Failed to delete server")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Database Error"})
		return
	}

	s.statusCache.Remove(target.String())
	log.Info().Str("server", target.String()).Msg("Server deleted manually")

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Server deleted"})
}

// handleLiveStatus performs a live getstatus query to a game server.
// Replies are cached for a short time to shield servers from repeated requests.
// Query params: ?server=1.2.3.4:29070
func (s *Server) handleLiveStatus(w http.ResponseWriter, r *http.Request) {
	target, ok := targetParam(w, r, "server")
	if !ok {
		return
	}

	key := target.String()
	if doc, ok := s.statusCache.Get(key); ok {
		writeJSON(w, http.StatusOK, statusResponse{Server: key, Status: doc, Cached: true})
		return
	}

	doc, err := game.QueryStatus(r.Context(), key, s.queryOptions)
	if err != nil {
		writeQueryError(w, err)
		return
	}

	s.statusCache.Add(key, doc)
	writeJSON(w, http.StatusOK, statusResponse{Server: key, Status: doc})
}

// handleRconStatus performs a live rcon status query. The password is never stored or logged.
func (s *Server) handleRconStatus(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)

	var req models.RconRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON"})
		return
	}

	doc, err := game.QueryRconStatus(r.Context(), req.Server, req.Password, s.queryOptions)
	if err != nil {
		writeQueryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Server: req.Server, Status: doc})
}

// targetParam reads and validates a "host:port" query parameter, answering 400 when it is invalid.
func targetParam(w http.ResponseWriter, r *http.Request, name string) (q3.Target, bool) {
	target, err := q3.Resolve(r.URL.Query().Get(name))
	if err != nil {
		writeQueryError(w, err)
		return q3.Target{}, false
	}

	return target, true
}

// writeQueryError maps a query failure to an HTTP status.
func writeQueryError(w http.ResponseWriter, err error) {
	kind := q3.KindOf(err)

	detail := err.Error()
	var qe *q3.Error
	if errors.As(err, &qe) && qe.Detail != "" {
		detail = qe.Detail
	}

	writeJSON(w, statusForKind(kind), errorResponse{Error: detail, Kind: kind.String()})
}

// statusForKind returns the HTTP status reported for a query error kind.
func statusForKind(kind q3.Kind) int {
	switch kind {
	case q3.KindParameter, q3.KindFormat, q3.KindRange:
		return http.StatusBadRequest
	case q3.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
