// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the scigen CLI.
// See docs/ARCHITECTURE § Command Line, § Run History.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/scigen/internal/logging"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	logger   = slog.New(slog.DiscardHandler)
	closeLog = func() error { return nil }
)

// rootCmd is the base command for the scigen CLI.
var rootCmd = &cobra.Command{
	Use:   "scigen",
	Short: "Generate random computer science papers",
	Long: `scigen generates syntactically plausible but meaningless academic
documents by expanding a weighted grammar, then typesets them with
pdflatex and bibtex.

Every run is seeded. The seed and full configuration are recorded in a
local history database so any document can be regenerated with replay.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, _, c, err := logging.New(logging.Options{
			Debug:   viper.GetBool("debug"),
			LogFile: viper.GetString("log-file"),
			Stderr:  cmd.ErrOrStderr(),
		})
		if err != nil {
			return err
		}
		logger, closeLog = l, c
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./scigen.yaml or ~/.config/scigen/scigen.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "log every symbol expansion")
	rootCmd.PersistentFlags().String("log-file", "", "also write JSON logs to this file")
	rootCmd.PersistentFlags().String("history-db", "", "run history database (default: ~/.local/share/scigen/history.db)")
	rootCmd.PersistentFlags().Bool("no-history", false, "do not record runs in the history database")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		panic(err)
	}
}

func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "Ignoring .env:", err)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("scigen")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "scigen"))
		}
	}

	viper.SetEnvPrefix("SCIGEN")
	viper.SetEnvKeyReplacer(envKeys)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	closeLog()
	if err != nil {
		os.Exit(1)
	}
}
