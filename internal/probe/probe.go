// Package probe runs one-shot queries requested on the command line and prints their results.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/q3query/internal/config"
	"github.com/woozymasta/q3query/internal/game"
	"github.com/woozymasta/q3query/internal/q3"
	"golang.org/x/sync/errgroup"
)

// Result is the printed outcome of one query.
type Result struct {
	Status *q3.StatusDocument `json:"status,omitempty"`
	Server string             `json:"server"`
	Error  string             `json:"error,omitempty"`
	Kind   string             `json:"kind,omitempty"`
}

// Run executes the queries requested in cfg.Probe and writes them to out.
// It returns false when no query was requested. The error reports failed queries.
func Run(ctx context.Context, cfg *config.Config, out io.Writer) (bool, error) {
	if !cfg.ProbeRequested() {
		return false, nil
	}

	var failed int

	if len(cfg.Probe.Status) > 0 {
		results := Status(ctx, cfg.Probe.Status, cfg.Probe.Concurrency, cfg.Query)
		for _, r := range results {
			if r.Error != "" {
				failed++
			}
		}
		if err := writeJSON(out, results, cfg.Probe.Pretty); err != nil {
			return true, err
		}
	}

	if cfg.Probe.RconStatus != "" {
		doc, err := game.QueryRconStatus(ctx, cfg.Probe.RconStatus, cfg.Probe.RconPassword, cfg.Query)
		r := newResult(cfg.Probe.RconStatus, doc, err)
		if r.Error != "" {
			failed++
		}
		if err := writeJSON(out, r, cfg.Probe.Pretty); err != nil {
			return true, err
		}
	}

	if cfg.Probe.Raw != "" {
		raw, err := game.QueryRaw(ctx, cfg.Probe.Raw, cfg.Probe.Command, cfg.Query)
		if err != nil {
			log.Error().Err(err).Str("server", cfg.Probe.Raw).Msg("Raw query failed")
			failed++
		} else if _, err := io.WriteString(out, raw+"\n"); err != nil {
			return true, err
		}
	}

	if failed > 0 {
		return true, fmt.Errorf("%d queries failed", failed)
	}

	return true, nil
}

// Status queries every server concurrently, at most limit at a time.
// Results keep the order of servers.
func Status(ctx context.Context, servers []string, limit int, options config.Query) []Result {
	results := make([]Result, len(servers))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, server := range servers {
		g.Go(func() error {
			doc, err := game.QueryStatus(ctx, server, options)
			results[i] = newResult(server, doc, err)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func newResult(server string, doc *q3.StatusDocument, err error) Result {
	if err != nil {
		log.Error().Err(err).Str("server", server).Msg("Query failed")
		return Result{Server: server, Error: err.Error(), Kind: q3.KindOf(err).String()}
	}

	return Result{Server: server, Status: doc}
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}

	return enc.Encode(v)
}
