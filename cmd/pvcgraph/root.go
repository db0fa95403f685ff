package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dd0wney/pvcgraph/pkg/config"
	"github.com/dd0wney/pvcgraph/pkg/logging"
)

var rootCmd = &cobra.Command{
	Use:   "pvcgraph",
	Short: "Track islands of connected pipe pieces",
	Long: `pvcgraph replays scripted placements of pipes and fittings and reports
which pieces are attached to each other and which islands they form.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default .pvcgraph.yaml)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.Float64("tolerance", 0, "mating tolerance in metres (overrides config)")
	flags.Bool("check-invariants", false, "verify the graph after every mutation and panic on corruption")
}

// loadConfig merges flags into the file and environment configuration
func loadConfig(cmd *cobra.Command) (*viper.Viper, config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	v, err := config.New(path)
	if err != nil {
		return nil, config.Config{}, err
	}

	for key, flag := range map[string]string{
		"log_level":        "log-level",
		"tolerance":        "tolerance",
		"check_invariants": "check-invariants",
	} {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, config.Config{}, err
			}
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, config.Config{}, err
	}
	return v, cfg, nil
}

func newLogger(cfg config.Config) logging.Logger {
	return logging.NewJSONLogger(os.Stderr, cfg.Level()).With(logging.String("app", "pvcgraph"))
}
