package server

import (
	"net"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/woozymasta/q3query/internal/config"
	"github.com/woozymasta/q3query/internal/geoip"
	"github.com/woozymasta/q3query/internal/q3"
	"github.com/woozymasta/q3query/internal/storage"
)

// Server holds the dependencies, configuration, and runtime state required
// to handle HTTP requests and background server polling.
type Server struct {
	// storage provides access to the persistent database layer for reading and writing server snapshots.
	storage *storage.Repository

	// geoip provides functionality for resolving server hosts to country codes.
	// It can be nil if the GeoIP database is not initialized.
	geoip *geoip.Provider

	// resolver resolves registered host names for the public address check.
	resolver *net.Resolver

	// statusCache keeps recent live getstatus documents by server address.
	statusCache *expirable.LRU[string, *q3.StatusDocument]

	// allowedHosts is a set of hashed host names (using xxhash) that may be registered
	// for polling. Empty means any host resolving to public addresses.
	allowedHosts map[uint64]struct{}

	// queue is a buffered channel used to pass poll jobs from HTTP handlers
	// and the watch list poller to background workers.
	queue chan pollJob

	// shutdown is a signal channel used to broadcast a stop signal to all background goroutines
	// during a graceful shutdown.
	shutdown chan struct{}

	// seenCache tracks recently queued servers for the "soft rate limit".
	seenCache sync.Map

	// authToken is the secret token required to access administrative API endpoints.
	authToken string

	// watchList holds the servers polled every pollInterval.
	watchList []q3.Target

	// queryOptions holds configuration settings for querying game servers.
	queryOptions config.Query

	// wg waits for the query workers.
	wg sync.WaitGroup

	// pollerWg waits for the watch list poller, which must stop before the queue is closed.
	pollerWg sync.WaitGroup

	// maxBody specifies the maximum allowed size (in bytes) for incoming HTTP request bodies.
	maxBody int64

	// workers is the number of background query workers.
	workers int

	// hardLimitCount is the maximum number of requests allowed per IP address
	// within the hardLimitWin duration.
	hardLimitCount int

	// hardLimitWin is the time window duration for the hard rate limiter.
	hardLimitWin time.Duration

	// softLimitDur is the duration for which a registration is ignored
	// if the same server was queued recently.
	softLimitDur time.Duration

	// pollInterval is the watch list poll period.
	pollInterval time.Duration

	// trustProxy indicates whether the server should trust headers like X-Forwarded-For
	// or CF-Connecting-IP when determining the client's real IP address.
	trustProxy bool
}

// pollJob represents a unit of work to be processed by background workers.
type pollJob struct {
	// Target is the validated server to query.
	Target q3.Target

	// Source tells where the job came from ("api" or "watch") for logging.
	Source string
}
