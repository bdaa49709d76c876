// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/woozymasta/q3query/internal/logger"
	"github.com/woozymasta/q3query/internal/q3"
	"github.com/woozymasta/q3query/internal/vars"
)

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Server    Server        `group:"Server Options" env-namespace:"Q3QUERY"`
	Query     Query         `group:"Query Options" namespace:"query" env-namespace:"Q3QUERY_QUERY"`
	Probe     Probe         `group:"Probe Options" env-namespace:"Q3QUERY"`
	Storage   Storage       `group:"Storage Options" namespace:"db" env-namespace:"Q3QUERY_DB"`
	GeoIP     GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"Q3QUERY_GEOIP"`
	RateLimit RateLimit     `group:"Rate Limit Options" namespace:"rate-limit" env-namespace:"Q3QUERY_RATE_LIMIT"`
	Poll      Poll          `group:"Poll Options" namespace:"poll" env-namespace:"Q3QUERY_POLL"`
	Logger    logger.Config `group:"Logger Options" namespace:"log" env-namespace:"Q3QUERY_LOG"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

// Server holds web server configuration.
type Server struct {
	// betteralign:ignore

	Address      string        `short:"l" long:"address" env:"LISTEN_ADDRESS" description:"Server listen address" default:":8080"`
	AuthToken    string        `short:"t" long:"auth-token" env:"AUTH_TOKEN" description:"Admin authentication token"`
	AllowedHosts []string      `short:"a" long:"allowed-host" env:"ALLOWED_HOSTS" description:"Hosts that may be registered for polling (any public address if empty)" env-delim:","`
	MaxBodySize  int64         `long:"max-body-size" env:"MAX_BODY_SIZE" description:"Max body size for incoming requests" default:"512"`
	TrustProxy   bool          `long:"trust-proxy" env:"TRUST_PROXY" description:"Trust X-Forwarded-For headers"`
	Workers      int           `long:"workers" env:"WORKERS" description:"Number of background query workers" default:"10"`
	QueueSize    int           `long:"queue-size" env:"QUEUE_SIZE" description:"Background query queue size" default:"1000"`
	CacheTTL     time.Duration `long:"cache-ttl" env:"CACHE_TTL" description:"How long live status replies are cached" default:"10s"`
	CacheSize    int           `long:"cache-size" env:"CACHE_SIZE" description:"Max number of cached live status replies" default:"256"`
}

// Query holds out-of-band query protocol configuration.
type Query struct {
	// betteralign:ignore

	Timeout     time.Duration `long:"timeout" env:"TIMEOUT" description:"Time to wait for the first reply datagram (min 2s)" default:"10s"`
	QuietPeriod time.Duration `long:"quiet-period" env:"QUIET_PERIOD" description:"Time to keep collecting reply datagrams after the first one" default:"2s"`
	BufferSize  int           `long:"buffer-size" env:"BUFFER_SIZE" description:"Reply datagram buffer size" default:"65507"`
}

// Probe holds one-shot query options. When any query is requested the program prints
// the result to stdout and exits instead of serving HTTP.
type Probe struct {
	// betteralign:ignore

	Status       []string `short:"s" long:"status" description:"Query getstatus of host:port and print it (repeatable)"`
	RconStatus   string   `long:"rcon-status" description:"Query rcon status of host:port and print it"`
	RconPassword string   `long:"rcon-password" env:"RCON_PASSWORD" description:"Password for --rcon-status"`
	Raw          string   `long:"raw" description:"Send --command to host:port and print the raw reply"`
	Command      string   `long:"command" description:"Command sent by --raw" default:"getinfo"`
	Concurrency  int      `long:"concurrency" description:"Max concurrent --status queries" default:"8"`
	Pretty       bool     `long:"pretty" description:"Indent JSON output"`
}

// Storage holds database configuration.
type Storage struct {
	// betteralign:ignore

	Path          string `short:"d" long:"path" env:"PATH" description:"Path to SQLite database" default:"q3query.db"`
	PruneOffline  bool   `long:"prune-offline" description:"Delete servers that did not answer the last poll"`
	CheckOffline  bool   `long:"check-offline" description:"Re-check offline servers. Update if UP, delete if DOWN"`
	CheckAll      bool   `long:"check-all" description:"Re-check ALL servers. Update if UP, delete if DOWN"`
	GenerateCount int    `long:"gen-fake-data" hidden:"true"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file" default:"q3query.mmdb"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
}

// RateLimit holds API rate limiting configuration.
type RateLimit struct {
	// betteralign:ignore

	HardLimitCount int           `long:"hard-count" env:"HARD_COUNT" description:"Hard IP limit: requests count" default:"8"`
	HardLimitWin   time.Duration `long:"hard-window" env:"HARD_WINDOW" description:"Hard IP limit: window duration" default:"1m"`
	SoftLimitDur   time.Duration `long:"soft" env:"SOFT" description:"Soft limit: ignore registration if polled within duration" default:"5m"`
}

// Poll holds the watch list configuration.
type Poll struct {
	// betteralign:ignore

	ServersFile string        `long:"servers-file" env:"SERVERS_FILE" description:"YAML file with servers to poll periodically"`
	Interval    time.Duration `long:"interval" env:"INTERVAL" description:"Watch list poll interval" default:"1m"`
}

// ProbeRequested reports whether a one-shot query was requested.
func (c *Config) ProbeRequested() bool {
	return len(c.Probe.Status) > 0 || c.Probe.RconStatus != "" || c.Probe.Raw != ""
}

// MaintenanceRequested reports whether a database maintenance task was requested.
func (c *Config) MaintenanceRequested() bool {
	return c.Storage.PruneOffline || c.Storage.CheckOffline || c.Storage.CheckAll || c.Storage.GenerateCount > 0
}

// Validate checks option values that flags cannot express.
func (c *Config) Validate() error {
	if c.Query.Timeout < q3.MinTimeout {
		return fmt.Errorf("query timeout must be at least %s, got %s", q3.MinTimeout, c.Query.Timeout)
	}
	if c.Query.QuietPeriod <= 0 {
		return errors.New("query quiet period must be positive")
	}
	if c.Query.BufferSize < 1 || c.Query.BufferSize > 65535 {
		return fmt.Errorf("query buffer size must be in range [1-65535], got %d", c.Query.BufferSize)
	}
	if c.Probe.RconStatus != "" && c.Probe.RconPassword == "" {
		return errors.New("--rcon-status requires --rcon-password")
	}
	if c.Probe.Concurrency < 1 {
		return errors.New("probe concurrency must be at least 1")
	}

	if c.ProbeRequested() || c.MaintenanceRequested() {
		return nil
	}

	if c.Server.AuthToken == "" {
		return errors.New("required flag `-t, --auth-token' or environment variable `Q3QUERY_AUTH_TOKEN` was not specified")
	}
	if c.Server.Workers < 1 || c.Server.QueueSize < 1 {
		return errors.New("workers and queue size must be at least 1")
	}

	return nil
}

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}

	if cfg.Version {
		vars.Print()
		os.Exit(0)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	return &cfg
}
