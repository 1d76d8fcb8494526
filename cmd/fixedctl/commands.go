package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ashureev/fixedness-lab/internal/catalog"
	"github.com/ashureev/fixedness-lab/internal/game"
	"github.com/ashureev/fixedness-lab/internal/metrics"
	"github.com/ashureev/fixedness-lab/internal/store"
	"github.com/spf13/cobra"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every stored session summary as CSV",
	Long:  `Writes one row per puzzle per ended session to stdout, or to --out.`,
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize <session-id>",
	Short: "Recompute a session summary and print it as JSON",
	Long: `Recomputes the summary of a session from its stored interactions.
Nothing is written; open sessions stay open.`,
	Args: cobra.ExactArgs(1),
	RunE: runSummarize,
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "World catalog tools",
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Load and validate a world catalog",
	Long:  `Validates the catalog at path, or the embedded catalog when no path is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCatalogValidate,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default: stdout)")
}

func runExport(cmd *cobra.Command, _ []string) error {
	repo, err := store.NewSQLite(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer repo.Close()

	summaries, err := repo.ListSummaries(cmd.Context())
	if err != nil {
		return fmt.Errorf("list summaries: %w", err)
	}

	var w io.Writer = cmd.OutOrStdout()
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", exportOut, err)
		}
		defer f.Close()
		w = f
	}
	if err := metrics.WriteCSV(w, summaries); err != nil {
		return err
	}
	if exportOut != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d summaries to %s\n", len(summaries), exportOut)
	}
	return nil
}

func runSummarize(cmd *cobra.Command, args []string) error {
	repo, err := store.NewSQLite(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer repo.Close()

	cat, err := catalog.Load(catalogPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	svc := game.NewService(repo, cat, nil, nil)
	summary, err := svc.PreviewSummary(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("summarize %s: %w", args[0], err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func runCatalogValidate(cmd *cobra.Command, args []string) error {
	path := catalogPath
	if len(args) == 1 {
		path = args[0]
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return err
	}

	source := path
	if source == "" {
		source = "embedded catalog"
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: OK\n", source)
	for _, w := range cat.Worlds() {
		fmt.Fprintf(out, "  %s (%s): %d puzzles\n", w.ID, w.Name, len(w.Puzzles))
	}
	return nil
}
