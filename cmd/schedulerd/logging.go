package main

import (
	"fmt"

	"github.com/cuemby/warren/internal/config"
	"github.com/cuemby/warren/internal/log"
)

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// loadServerConfig resolves the daemon config from --config, falling back
// to defaults, then applies the --data-dir override.
func loadServerConfig(cmd cobraFlags) (*config.ServerConfig, error) {
	path, _ := cmd.GetString("config")

	var cfg *config.ServerConfig
	if path == "" {
		cfg = config.DefaultServerConfig()
	} else {
		loaded, err := config.LoadServer(path)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	if dataDir, _ := cmd.GetString("data-dir"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, nil
}

// cobraFlags is the subset of *pflag.FlagSet (and *cobra.Command) this
// package needs, so helpers can accept either a command's own flags or its
// inherited persistent flags without importing pflag directly.
type cobraFlags interface {
	GetString(name string) (string, error)
}
