package maintenance

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/woozymasta/q3query/internal/config"
	"github.com/woozymasta/q3query/internal/models"
	"github.com/woozymasta/q3query/internal/q3"
	"github.com/woozymasta/q3query/internal/q3/q3test"
	"github.com/woozymasta/q3query/internal/storage"
)

func newStore(t *testing.T) *storage.Repository {
	t.Helper()

	store, err := storage.New(filepath.Join(t.TempDir(), "maintenance.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func offline(target q3.Target) models.Server {
	now := time.Now()
	return models.Server{Address: target.String(), Host: target.Host, Port: target.Port, FirstSeen: now, LastSeen: now}
}

func testConfig() *config.Config {
	return &config.Config{
		Query: config.Query{Timeout: 2 * time.Second, QuietPeriod: 100 * time.Millisecond},
	}
}

func TestRunNothingRequested(t *testing.T) {
	if Run(context.Background(), testConfig(), newStore(t)) {
		t.Fatal("Run reported a task without flags")
	}
}

func TestRunPruneOffline(t *testing.T) {
	store := newStore(t)
	_ = store.UpsertServer(offline(q3.Target{Host: "10.0.0.1", Port: 29070}))

	cfg := testConfig()
	cfg.Storage.PruneOffline = true
	if !Run(context.Background(), cfg, store) {
		t.Fatal("prune not run")
	}

	servers, _ := store.GetServers()
	if len(servers) != 0 {
		t.Fatalf("servers = %+v", servers)
	}
}

func TestRunCheckOffline(t *testing.T) {
	up := q3test.NewServer(func(string) []q3test.Reply {
		return []q3test.Reply{{Data: []byte(q3.Header + "statusResponse\n\\sv_hostname\\Back\\sv_maxclients\\8\n")}}
	})
	defer up.Close()

	down := q3test.NewServer(nil)
	defer down.Close()

	store := newStore(t)
	_ = store.UpsertServer(offline(up.Target()))
	_ = store.UpsertServer(offline(down.Target()))

	cfg := testConfig()
	cfg.Storage.CheckOffline = true
	if !Run(context.Background(), cfg, store) {
		t.Fatal("check not run")
	}

	servers, err := store.GetServers()
	if err != nil {
		t.Fatal(err)
	}
	if len(servers) != 1 {
		t.Fatalf("servers = %+v", servers)
	}
	if s := servers[0]; s.Address != up.Addr() || !s.Online || s.Hostname != "Back" || s.MaxPlayers != 8 {
		t.Fatalf("server = %+v", s)
	}
}

func TestRunCheckAllCancelledKeepsServers(t *testing.T) {
	slow := q3test.NewServer(func(string) []q3test.Reply {
		return []q3test.Reply{{
			Data:  []byte(q3.Header + "statusResponse\n\\sv_hostname\\Slow\n"),
			Delay: 300 * time.Millisecond,
		}}
	})
	defer slow.Close()

	store := newStore(t)
	targets := []q3.Target{slow.Target()}
	for port := 20000; port < 20000+3*Workers; port++ {
		targets = append(targets, q3.Target{Host: "127.0.0.1", Port: port})
	}
	for _, target := range targets {
		_ = store.UpsertServer(offline(target))
	}

	cfg := testConfig()
	cfg.Storage.CheckAll = true

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if !Run(ctx, cfg, store) {
		t.Fatal("check not run")
	}

	servers, err := store.GetServers()
	if err != nil {
		t.Fatal(err)
	}
	if len(servers) != len(targets) {
		t.Fatalf("servers left after cancelled check = %d, want %d", len(servers), len(targets))
	}
}
