// Command fixedctl inspects the experiment database and world catalogs.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	dbPath      string
	catalogPath string
)

var rootCmd = &cobra.Command{
	Use:           "fixedctl",
	Short:         "Inspect fixedness lab sessions and catalogs",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", envOr("DB_PATH", "./data/fixedness.db"), "SQLite database path")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", os.Getenv("CATALOG_PATH"), "World catalog path (default: embedded)")

	catalogCmd.AddCommand(catalogValidateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(catalogCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
