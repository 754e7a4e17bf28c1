package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "schedulerd",
	Short: "schedulerd runs the HPC cluster scheduling core",
	Long: `schedulerd is the standalone scheduling core: queue building and
sorting, dependency resolution, license accounting, preemption and gang
time-slicing, driven by a single foreground scheduler loop per cycle.`,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a schedulerd YAML config file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("data-dir", "", "Override the config file's data_dir")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scheduleOnceCmd)
	rootCmd.AddCommand(configCmd)
}
