package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate schedulerd configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate the configured YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadServerConfig(cmd.Flags())
		if err != nil {
			return err
		}
		fmt.Printf("config OK: data_dir=%s listen_addr=%s licenses=%q\n", cfg.DataDir, cfg.ListenAddr, cfg.Licenses)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}
