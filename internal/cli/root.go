// Package cli implements the portfolioctl operator commands.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/etk18/portfolio/internal/app"
	"github.com/etk18/portfolio/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var dbPath string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "portfolioctl",
	Short: "Operate the portfolio backend from a terminal",
	Long:  "Chat with the portfolio assistant, inspect admin conversations, check resumes and hash admin passwords using the server's configuration.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $DB_PATH or ./data/portfolio.db)")
}

func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	// The terminal belongs to the REPL; conversation files stay server-side.
	cfg.ConversationLog.Enabled = false
	return cfg, nil
}

func openApp() (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)
	return app.New(cfg, logger, nil)
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
