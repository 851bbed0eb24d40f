// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/judgment-engine/internal/archive"
	"github.com/pdiddy/judgment-engine/pkg/types"
)

const defaultArchive = "output/archive.db"

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Query and export archived search runs",
	Long: `Archive works with the SQLite archive written by search --archive. Runs
lists past searches; search finds records by full-text query over case
names and judgment text; export writes records as YAML or JSON.`,
}

var archiveRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List archived runs",
	RunE:  runArchiveRuns,
}

var archiveSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search archived judgments",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runArchiveSearch,
}

var archiveExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export archived records as YAML or JSON",
	RunE:  runArchiveExport,
}

func init() {
	archiveCmd.PersistentFlags().String("db", defaultArchive, "archive database path")

	for _, c := range []*cobra.Command{archiveSearchCmd, archiveExportCmd} {
		c.Flags().String("run", "", "restrict to one run id")
		c.Flags().String("method", "", "restrict to a conversion method: direct, optical, failed")
	}
	archiveSearchCmd.Flags().Int("max-results", 20, "maximum results")
	archiveExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	archiveExportCmd.Flags().StringP("output", "o", "", "write to file instead of stdout")

	archiveCmd.AddCommand(archiveRunsCmd, archiveSearchCmd, archiveExportCmd)
	rootCmd.AddCommand(archiveCmd)
}

func openArchive(cmd *cobra.Command) (*archive.Store, error) {
	path, _ := cmd.Flags().GetString("db")
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("archive %s: %w", path, err)
	}
	return archive.Open(path, 0)
}

func queryOptions(cmd *cobra.Command, args []string) (archive.QueryOptions, error) {
	var opts archive.QueryOptions
	if len(args) > 0 {
		opts.Query = args[0]
	}
	opts.RunID, _ = cmd.Flags().GetString("run")
	method, _ := cmd.Flags().GetString("method")
	switch m := types.ConversionMethod(method); m {
	case "", types.MethodDirect, types.MethodOptical, types.MethodFailed:
		opts.Method = m
	default:
		return opts, fmt.Errorf("unknown method %q", method)
	}
	if cmd.Flags().Lookup("max-results") != nil {
		opts.MaxResults, _ = cmd.Flags().GetInt("max-results")
	}
	return opts, nil
}

func runArchiveRuns(cmd *cobra.Command, args []string) error {
	store, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Runs(cmd.Context())
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Printf("%s  %s  %s  %s..%s  %s\n", r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"),
			strings.Join(r.Criteria.Courts, ", "),
			r.Criteria.From.Format(types.DateLayout), r.Criteria.To.Format(types.DateLayout),
			r.Summary)
	}
	return nil
}

func runArchiveSearch(cmd *cobra.Command, args []string) error {
	opts, err := queryOptions(cmd, args)
	if err != nil {
		return err
	}
	if opts.IsEmpty() {
		return fmt.Errorf("provide a query, --run, or --method")
	}
	store, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	hits, err := store.Search(cmd.Context(), opts)
	if err != nil {
		return err
	}
	for _, h := range hits {
		r := h.Record
		fmt.Printf("%s #%d  %s  [%s]  %s\n", h.RunID[:min(8, len(h.RunID))], r.Index, r.CaseName, r.Method, r.Ref())
	}
	fmt.Printf("\n%d result(s)\n", len(hits))
	return nil
}

func runArchiveExport(cmd *cobra.Command, args []string) error {
	opts, err := queryOptions(cmd, args)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	if format != "yaml" && format != "json" {
		return fmt.Errorf("unknown format %q", format)
	}
	store, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	var w io.Writer = os.Stdout
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		defer f.Close()
		w = f
	}

	if format == "json" {
		return store.ExportJSON(cmd.Context(), w, opts)
	}
	return store.ExportYAML(cmd.Context(), w, opts)
}
