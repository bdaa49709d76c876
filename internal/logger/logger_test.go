package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestSetupFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q3query.log")

	Setup(Config{Level: "debug", Format: "json", Output: path})
	t.Cleanup(func() { Setup(Config{Level: "info", Format: "console", Output: "stderr"}) })

	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Fatalf("level = %s", zerolog.GlobalLevel())
	}

	log.Debug().Str("server", "127.0.0.1:29070").Msg("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"server":"127.0.0.1:29070"`) {
		t.Fatalf("log = %s", data)
	}
}

func TestSetupInvalidLevel(t *testing.T) {
	Setup(Config{Level: "loud", Output: "stderr"})

	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("level = %s, want info", zerolog.GlobalLevel())
	}
}
