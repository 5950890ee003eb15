package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sarchlab/netsim/logging"
)

const (
	envLogLevel    = "NETSIM_LOG_LEVEL"
	envMonitorPort = "NETSIM_MONITOR_PORT"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "netsim",
	Short: "Discrete event network simulator",
	Long: "netsim builds a network of nodes, links and wifi channels from a " +
		"scenario file and simulates echo traffic over it.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := loadDotEnv(".env"); err != nil {
			return err
		}

		if !cmd.Flags().Changed("log-level") {
			if v := os.Getenv(envLogLevel); v != "" {
				logLevel = v
			}
		}

		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}

		slog.SetDefault(logging.New(level, cmd.ErrOrStderr()))

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"debug, info, warn or error; defaults to $"+envLogLevel)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(exampleCmd)
}

// loadDotEnv reads defaults from path. A missing file is not an error and
// variables already set win.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}

// envInt reads an integer variable, returning def when unset.
func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	return strconv.Atoi(v)
}
