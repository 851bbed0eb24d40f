// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the judgment-engine CLI.
package main

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/judgment-engine/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// configErr records a failure to read an explicitly named config file.
var configErr error

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the judgment-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "judgment-engine",
	Short: "Retrieve court judgments from the eCourts judgment search portal",
	Long: `judgment-engine drives the eCourts judgment search portal: it passes the
image challenge, applies search filters, extracts the result rows, and
downloads each judgment, converting it to text with optical recognition
for scanned pages.

Results are written to an output directory as metadata.csv (and optionally
metadata.xlsx and per-record text files), and can be kept in a searchable
SQLite archive.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setupLogging(cmd); err != nil {
			return err
		}
		if configErr != nil {
			return configErr
		}
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if used := viper.ConfigFileUsed(); used != "" {
			slog.Debug("config file", "path", used)
		}
		if len(s) > 0 {
			slog.Debug("secrets loaded", "keys", slices.Sorted(maps.Keys(s)))
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./judgment-engine.yaml or ~/.config/judgment-engine/judgment-engine.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("judgment-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "judgment-engine"))
		}
	}

	viper.SetEnvPrefix("JUDGMENT_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// A missing default config file is fine; an explicit one must load.
	if err := viper.ReadInConfig(); err != nil && cfgFile != "" {
		configErr = fmt.Errorf("reading config %s: %w", cfgFile, err)
	}
}

// setupLogging installs a text logger on stderr at the requested level.
func setupLogging(cmd *cobra.Command) error {
	name, _ := cmd.Flags().GetString("log-level")
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return fmt.Errorf("invalid --log-level %q", name)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
