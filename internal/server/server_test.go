package server

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/woozymasta/q3query/internal/config"
	"github.com/woozymasta/q3query/internal/models"
	"github.com/woozymasta/q3query/internal/q3"
	"github.com/woozymasta/q3query/internal/q3/q3test"
	"github.com/woozymasta/q3query/internal/storage"
	"github.com/woozymasta/q3query/internal/vars"
)

const testToken = "secret-token"

const statusReply = q3.Header + "statusResponse\n" +
	"\\sv_hostname\\^2Live\\mapname\\mp/ffa3\\g_gametype\\0\\sv_maxclients\\16\n" +
	"4 50 \"^1Kyle\"\n"

const rconReply = q3.Header + "print\nmap: mp/ffa3\nnum score ping name lastmsg address qport rate\n" +
	"--- ----- ---- ---- ------- ------- ----- -----\n  0     4   50 Kyle 0 10.0.0.1:29070 1 25000\n"

func testConfig() *config.Config {
	return &config.Config{
		Server: config.Server{
			AuthToken:   testToken,
			MaxBodySize: 512,
			Workers:     2,
			QueueSize:   10,
			CacheTTL:    time.Minute,
			CacheSize:   16,
		},
		Query: config.Query{Timeout: 2 * time.Second, QuietPeriod: 100 * time.Millisecond},
		RateLimit: config.RateLimit{
			HardLimitCount: 100,
			HardLimitWin:   time.Minute,
			SoftLimitDur:   time.Minute,
		},
		Poll: config.Poll{Interval: time.Hour},
	}
}

func newGameServer(t *testing.T) *q3test.Server {
	t.Helper()

	srv := q3test.NewServer(func(payload string) []q3test.Reply {
		switch payload {
		case q3.CommandStatus:
			return []q3test.Reply{{Data: []byte(statusReply)}}
		case "rcon pw status":
			return []q3test.Reply{{Data: []byte(rconReply)}}
		default:
			return []q3test.Reply{{Data: []byte(q3.Header + "print\nBad rconpassword.\n")}}
		}
	})
	t.Cleanup(srv.Close)

	return srv
}

func newTestServer(t *testing.T, cfg *config.Config, watchList []q3.Target) (*Server, *storage.Repository) {
	t.Helper()

	store, err := storage.New(filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return New(store, nil, cfg, watchList), store
}

func do(t *testing.T, h http.Handler, method, target, body string, admin bool) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if admin {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()

	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

// waitServer polls the storage until address is stored or the deadline passes.
func waitServer(t *testing.T, store *storage.Repository, address string) *models.Server {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s, err := store.GetServer(address)
		if err != nil {
			t.Fatal(err)
		}
		if s != nil {
			return s
		}
		time.Sleep(20 * time.Millisecond)
	}

	t.Fatalf("server %s was not stored", address)
	return nil
}

func TestRegisterPollsServer(t *testing.T) {
	game := newGameServer(t)
	cfg := testConfig()
	cfg.Server.AllowedHosts = []string{"127.0.0.1"}
	s, store := newTestServer(t, cfg, nil)
	s.StartWorkers()
	defer s.StopWorkers()

	rec := do(t, s.Run(), http.MethodPost, "/api/servers", `{"server":"`+game.Addr()+`"}`, false)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	stored := waitServer(t, store, game.Addr())
	if !stored.Online || stored.CleanName != "Live" || stored.MaxPlayers != 16 || stored.GameType != "FFA" {
		t.Fatalf("server = %+v", stored)
	}
	if len(stored.PlayerList) != 1 || stored.PlayerList[0].CleanName != "Kyle" {
		t.Fatalf("players = %+v", stored.PlayerList)
	}
}

func TestRegisterRejects(t *testing.T) {
	cfg := testConfig()
	cfg.Server.AllowedHosts = []string{"10.0.0.1"}
	s, _ := newTestServer(t, cfg, nil)
	h := s.Run()

	tests := []struct {
		name string
		body string
		kind string
		code int
	}{
		{name: "invalid json", body: `{`, code: http.StatusBadRequest},
		{name: "missing server", body: `{}`, code: http.StatusBadRequest, kind: "parameter"},
		{name: "no port", body: `{"server":"10.0.0.1"}`, code: http.StatusBadRequest, kind: "format"},
		{name: "port range", body: `{"server":"10.0.0.1:65535"}`, code: http.StatusBadRequest, kind: "range"},
		{name: "host not allowed", body: `{"server":"10.0.0.2:29070"}`, code: http.StatusForbidden},
		{name: "body too large", body: `{"server":"` + strings.Repeat("a", 1024) + `:1"}`, code: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/servers", tt.body, false)
			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.code, rec.Body)
			}

			var resp errorResponse
			decode(t, rec, &resp)
			if resp.Kind != tt.kind {
				t.Fatalf("kind = %q, want %q", resp.Kind, tt.kind)
			}
		})
	}

	if len(s.queue) != 0 {
		t.Fatalf("queued %d jobs", len(s.queue))
	}
}

func TestRegisterRejectsNonPublicAddresses(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), nil)
	h := s.Run()

	servers := []string{
		"127.0.0.1:22",          // loopback
		"10.0.0.5:6379",         // private
		"172.16.3.4:29070",      // private
		"192.168.1.10:27960",    // private
		"169.254.169.254:80",    // link-local
		"0.0.0.0:27960",         // unspecified
		"224.0.0.1:27960",       // multicast
		"255.255.255.255:27960", // broadcast
	}

	for _, server := range servers {
		rec := do(t, h, http.MethodPost, "/api/servers", `{"server":"`+server+`"}`, false)
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s: status = %d, want 403, body = %s", server, rec.Code, rec.Body)
		}
	}

	if len(s.queue) != 0 {
		t.Fatalf("queued %d jobs", len(s.queue))
	}
}

func TestIsPublicIP(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"203.0.113.7", true},
		{"8.8.8.8", true},
		{"2001:4860:4860::8888", true},
		{"127.0.0.1", false},
		{"::1", false},
		{"10.1.2.3", false},
		{"fd00::1", false},
		{"169.254.1.1", false},
		{"fe80::1", false},
		{"0.0.0.0", false},
		{"::", false},
		{"ff02::1", false},
	}

	for _, tt := range tests {
		if got := isPublicIP(net.ParseIP(tt.ip)); got != tt.want {
			t.Errorf("isPublicIP(%s) = %v, want %v", tt.ip, got, tt.want)
		}
	}
}

func TestRegisterSoftLimit(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), nil)
	h := s.Run()

	body := `{"server":"203.0.113.1:29070"}`
	if rec := do(t, h, http.MethodPost, "/api/servers", body, false); rec.Code != http.StatusAccepted {
		t.Fatalf("first status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/servers", body, false); rec.Code != http.StatusOK {
		t.Fatalf("second status = %d", rec.Code)
	}

	if len(s.queue) != 1 {
		t.Fatalf("queued %d jobs, want 1", len(s.queue))
	}
}

func TestRegisterQueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.Server.QueueSize = 1
	s, _ := newTestServer(t, cfg, nil)
	h := s.Run()

	_ = do(t, h, http.MethodPost, "/api/servers", `{"server":"203.0.113.1:29070"}`, false)
	rec := do(t, h, http.MethodPost, "/api/servers", `{"server":"203.0.113.2:29070"}`, false)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.HardLimitCount = 2
	s, _ := newTestServer(t, cfg, nil)
	h := s.Run()

	var last int
	for i := 0; i < 3; i++ {
		last = do(t, h, http.MethodPost, "/api/servers", `{`, false).Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("third status = %d, want 429", last)
	}
}

func TestAdminAuth(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), nil)
	h := s.Run()

	paths := []struct{ method, target string }{
		{http.MethodGet, "/api/servers"},
		{http.MethodGet, "/api/server?address=10.0.0.1:29070"},
		{http.MethodDelete, "/api/server?address=10.0.0.1:29070"},
		{http.MethodGet, "/api/status?server=10.0.0.1:29070"},
		{http.MethodPost, "/api/rcon/status"},
	}

	for _, p := range paths {
		if rec := do(t, h, p.method, p.target, "", false); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s status = %d, want 401", p.method, p.target, rec.Code)
		}
	}
}

func TestServersCRUD(t *testing.T) {
	s, store := newTestServer(t, testConfig(), nil)
	h := s.Run()

	rec := do(t, h, http.MethodGet, "/api/servers", "", true)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("empty list = %d %s", rec.Code, rec.Body)
	}

	now := time.Now().UTC()
	_ = store.UpsertServer(models.Server{
		Address: "10.0.0.1:29070", Host: "10.0.0.1", Port: 29070, Hostname: "Stored", Online: true,
		FirstSeen: now, LastSeen: now, PlayerList: []models.Player{{Name: "Kyle", CleanName: "Kyle"}},
	})

	rec = do(t, h, http.MethodGet, "/api/servers", "", true)
	var list []models.Server
	decode(t, rec, &list)
	if len(list) != 1 || list[0].Hostname != "Stored" {
		t.Fatalf("list = %+v", list)
	}

	rec = do(t, h, http.MethodGet, "/api/server?address=10.0.0.1:29070", "", true)
	var one models.Server
	decode(t, rec, &one)
	if rec.Code != http.StatusOK || len(one.PlayerList) != 1 {
		t.Fatalf("get = %d %+v", rec.Code, one)
	}

	if rec := do(t, h, http.MethodGet, "/api/server?address=10.0.0.9:29070", "", true); rec.Code != http.StatusNotFound {
		t.Fatalf("missing status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/server?address=bad", "", true); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad address status = %d", rec.Code)
	}

	if rec := do(t, h, http.MethodDelete, "/api/server?address=10.0.0.1:29070", "", true); rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if got, _ := store.GetServer("10.0.0.1:29070"); got != nil {
		t.Fatalf("server not deleted: %+v", got)
	}
}

func TestLiveStatusCached(t *testing.T) {
	game := newGameServer(t)
	s, _ := newTestServer(t, testConfig(), nil)
	h := s.Run()

	for i, cached := range []bool{false, true} {
		rec := do(t, h, http.MethodGet, "/api/status?server="+game.Addr(), "", true)
		if rec.Code != http.StatusOK {
			t.Fatalf("#%d status = %d, body = %s", i, rec.Code, rec.Body)
		}

		var resp statusResponse
		decode(t, rec, &resp)
		if resp.Cached != cached || resp.Status == nil || resp.Status.Hostname() != "^2Live" {
			t.Fatalf("#%d response = %+v", i, resp)
		}
	}

	if got := len(game.Requests()); got != 1 {
		t.Fatalf("requests = %d, want 1", got)
	}
}

func TestLiveStatusTimeout(t *testing.T) {
	silent := q3test.NewServer(nil)
	defer silent.Close()

	s, _ := newTestServer(t, testConfig(), nil)

	rec := do(t, s.Run(), http.MethodGet, "/api/status?server="+silent.Addr(), "", true)
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", rec.Code)
	}

	var resp errorResponse
	decode(t, rec, &resp)
	if resp.Kind != "timeout" || resp.Error != "No response!" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestRconStatus(t *testing.T) {
	game := newGameServer(t)
	s, _ := newTestServer(t, testConfig(), nil)
	h := s.Run()

	body, _ := json.Marshal(models.RconRequest{Server: game.Addr(), Password: "pw"})
	rec := do(t, h, http.MethodPost, "/api/rcon/status", string(body), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp statusResponse
	decode(t, rec, &resp)
	if resp.Status.Map != "mp/ffa3" || len(resp.Status.Players) != 1 || resp.Status.Players[0].Rate != 25000 {
		t.Fatalf("response = %+v", resp.Status)
	}

	body, _ = json.Marshal(models.RconRequest{Server: game.Addr(), Password: "wrong"})
	rec = do(t, h, http.MethodPost, "/api/rcon/status", string(body), true)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("refused status = %d", rec.Code)
	}

	var errResp errorResponse
	decode(t, rec, &errResp)
	if errResp.Kind != "auth" {
		t.Fatalf("refused response = %+v", errResp)
	}
}

func TestVersion(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), nil)

	rec := do(t, s.Run(), http.MethodGet, "/api/version", "", false)

	var info vars.BuildInfo
	decode(t, rec, &info)
	if rec.Code != http.StatusOK || info.Name != vars.Name {
		t.Fatalf("version = %d %+v", rec.Code, info)
	}
}

func TestWatchListPoller(t *testing.T) {
	game := newGameServer(t)
	s, store := newTestServer(t, testConfig(), []q3.Target{game.Target()})
	s.StartWorkers()

	stored := waitServer(t, store, game.Addr())
	s.StopWorkers()

	if !stored.Online || stored.MapName != "mp/ffa3" {
		t.Fatalf("server = %+v", stored)
	}
}

func TestStatusForKind(t *testing.T) {
	tests := []struct {
		kind q3.Kind
		want int
	}{
		{q3.KindParameter, http.StatusBadRequest},
		{q3.KindFormat, http.StatusBadRequest},
		{q3.KindRange, http.StatusBadRequest},
		{q3.KindTimeout, http.StatusGatewayTimeout},
		{q3.KindStructure, http.StatusBadGateway},
		{q3.KindNetwork, http.StatusBadGateway},
		{q3.KindAuth, http.StatusBadGateway},
		{q3.KindUnknown, http.StatusBadGateway},
	}

	for _, tt := range tests {
		if got := statusForKind(tt.kind); got != tt.want {
			t.Errorf("statusForKind(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}
