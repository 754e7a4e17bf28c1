package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds the daemon-level settings schedulerd needs that
// spec.md leaves to the surrounding deployment rather than the scheduling
// core: where to persist state, what to listen on, the license pool
// definition, and the optional remote accounting-DB sync target. Modeled
// on the teacher's manager.Config (NodeID/BindAddr/DataDir).
type ServerConfig struct {
	DataDir    string `yaml:"data_dir"`
	ListenAddr string `yaml:"listen_addr"`

	// Licenses is a Configure-style string (e.g. "matlab:10,simulink:5")
	// defining the cluster's flat license pool at startup (spec.md §4.4
	// "Construction").
	Licenses string `yaml:"licenses"`

	// LicenseSyncURL, if set, starts a licsync.Poller against this remote
	// accounting-DB endpoint (spec.md §4.4 "Remote-sync").
	LicenseSyncURL         string `yaml:"license_sync_url"`
	LicenseSyncIntervalSec int    `yaml:"license_sync_interval"`

	Scheduling Config `yaml:"scheduling"`
}

// DefaultServerConfig returns the daemon defaults layered on top of the
// scheduling defaults.
func DefaultServerConfig() *ServerConfig {
	cfg := &ServerConfig{
		DataDir:                "./data",
		ListenAddr:             "127.0.0.1:9100",
		LicenseSyncIntervalSec: 60,
		Scheduling:             *Default(),
	}
	cfg.Scheduling.resolveDurations()
	return cfg
}

// LoadServer reads and parses a YAML daemon configuration file, applying
// defaults for any field the file omits.
func LoadServer(path string) (*ServerConfig, error) {
	cfg := DefaultServerConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading server config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing server config %s: %w", path, err)
	}
	cfg.Scheduling.resolveDurations()
	if err := cfg.Scheduling.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
