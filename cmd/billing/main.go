// Package main is the billing service binary: the sale listener and health
// server, plus operator commands for migrations and stock maintenance.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fekuna/omnipos-billing-service/config"
	"github.com/fekuna/omnipos-billing-service/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
	appName = "omnipos-billing"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env is resolved once before any subcommand runs.
type env struct {
	cfg    *config.Config
	logger logger.ZapLogger
}

func rootCmd() *cobra.Command {
	e := &env{}

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Billing service: sales, invoices and stock",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load() // Load .env file if it exists
			e.cfg = config.LoadEnv()
			e.logger = newLogger(e.cfg)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.logger != nil {
				_ = e.logger.Sync()
			}
		},
	}

	cmd.AddCommand(
		serveCmd(e),
		migrateCmd(e),
		reconcileCmd(e),
		expireCmd(e),
		nextCodeCmd(e),
		productCmd(e),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
