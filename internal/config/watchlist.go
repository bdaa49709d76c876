package config

import (
	"fmt"
	"os"

	"github.com/woozymasta/q3query/internal/q3"
	"gopkg.in/yaml.v3"
)

// WatchList is the YAML document listing servers polled periodically.
//
//	servers:
//	  - 242.9.9.9:29070
//	  - server.com:27960
type WatchList struct {
	Servers []string `yaml:"servers"`
}

// LoadWatchList reads a watch list file and returns its validated, de-duplicated targets.
func LoadWatchList(path string) ([]q3.Target, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("watch list file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read watch list: %w", err)
	}

	var list WatchList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse watch list: %w", err)
	}

	return list.Targets()
}

// Targets validates every entry of the list.
func (w WatchList) Targets() ([]q3.Target, error) {
	seen := make(map[q3.Target]struct{}, len(w.Servers))
	targets := make([]q3.Target, 0, len(w.Servers))

	for i, server := range w.Servers {
		target, err := q3.Resolve(server)
		if err != nil {
			return nil, fmt.Errorf("watch list entry %d (%q): %w", i+1, server, err)
		}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		targets = append(targets, target)
	}

	return targets, nil
}
