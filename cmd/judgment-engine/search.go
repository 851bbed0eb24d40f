// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/judgment-engine/internal/archive"
	"github.com/pdiddy/judgment-engine/internal/output"
	"github.com/pdiddy/judgment-engine/internal/pipeline"
	"github.com/pdiddy/judgment-engine/internal/portal"
	"github.com/pdiddy/judgment-engine/internal/results"
	"github.com/pdiddy/judgment-engine/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the portal and retrieve every matching judgment",
	Long: `Search opens a browser session on the judgment portal, passes the image
challenge, applies the search criteria, and retrieves the judgment document
of every result row. Criteria come from flags or a YAML file (--criteria).

Example:
  judgment-engine search --court "Bombay High Court" --from 2020-01-01 --to 2020-12-31 \
    --case-type-pattern '^CRL' --xlsx --out-dir output/bombay-2020`,
	RunE: runSearch,
}

// searchBindings maps search flags to configuration keys.
var searchBindings = map[string]string{
	"out-dir":           "output.dir",
	"xlsx":              "output.xlsx",
	"text":              "output.write_text",
	"archive":           "output.archive_path",
	"workers":           "retrieval.workers",
	"download-attempts": "retrieval.download_attempts",
	"headless":          "browser.headless",
	"debug-dir":         "portal.debug_dir",
	"max-retries":       "portal.max_retries",
	"portal-url":        "portal.url",
}

func init() {
	addCriteriaFlags(searchCmd)
	f := searchCmd.Flags()
	f.String("save-criteria", "", "write the effective criteria to this YAML file")

	f.String("out-dir", "output", "output directory")
	f.Bool("xlsx", false, "also write metadata.xlsx")
	f.Bool("text", false, "write one text file per judgment under text/")
	f.String("archive", "", "SQLite archive to store the run in")
	f.Bool("save-pdfs", false, "keep downloaded PDFs under <out-dir>/pdfs")
	f.Int("workers", 4, "concurrent document retrievals")
	f.Int("download-attempts", 1, "tries per document download")
	f.Bool("headless", true, "run the browser without a window")
	f.String("debug-dir", "", "save every challenge crop to this directory")
	f.Int("max-retries", 5, "challenge retries after the first attempt")
	f.String("portal-url", types.DefaultPortalURL, "judgment search portal URL")
	f.Bool("fail-on-record-errors", false, "exit non-zero when any document failed")

	for flag, key := range searchBindings {
		viper.BindPFlag(key, f.Lookup(flag))
	}

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	criteria, err := criteriaFromFlags(cmd)
	if err != nil {
		return err
	}
	if path, _ := cmd.Flags().GetString("save-criteria"); path != "" {
		if err := portal.WriteCriteriaFile(path, criteria); err != nil {
			return err
		}
		fmt.Printf("Saved criteria to %s\n", path)
	}

	cfg := loadConfig()
	if save, _ := cmd.Flags().GetBool("save-pdfs"); save && cfg.Retrieval.DocumentsDir == "" {
		cfg.Retrieval.DocumentsDir = filepath.Join(cfg.Output.Dir, "pdfs")
	}
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	p, closeArchive, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeArchive()

	fmt.Printf("Searching %s for %s, %s to %s\n", cfg.Portal.URL,
		strings.Join(criteria.Courts, ", "),
		criteria.From.Format(types.DateLayout), criteria.To.Format(types.DateLayout))

	res, err := p.Run(ctx, criteria)
	printOutcome(res.Outcome)
	if err != nil {
		return err
	}

	for _, f := range res.Files {
		fmt.Printf("Wrote %s\n", f)
	}
	if cfg.Output.ArchivePath != "" {
		fmt.Printf("Archived run %s in %s\n", res.RunID, cfg.Output.ArchivePath)
	}

	if fail, _ := cmd.Flags().GetBool("fail-on-record-errors"); fail && res.Summary.Failed > 0 {
		return fmt.Errorf("%d document(s) failed retrieval", res.Summary.Failed)
	}
	return nil
}

// buildPipeline wires the stages for cfg. The returned func closes the
// archive when one is configured.
func buildPipeline(ctx context.Context, cfg types.PipelineConfig, logger *slog.Logger) (*pipeline.Pipeline, func(), error) {
	t, err := newTools(ctx, cfg.OCR, logger)
	if err != nil {
		return nil, nil, err
	}
	client, err := newClient(cfg.Retrieval)
	if err != nil {
		return nil, nil, err
	}
	extractor, err := results.New(portalBase(cfg.Portal.URL), cfg.Portal, logger)
	if err != nil {
		return nil, nil, err
	}

	p := &pipeline.Pipeline{
		Searcher:  portal.New(newLauncher(cfg, logger), t.solver(cfg.Portal.DebugDir, logger), cfg.Portal, logger),
		Extractor: extractor,
		Retriever: t.retriever(client, cfg.Retrieval, logger),
		Writer:    output.New(cfg.Output, logger),
		Config:    cfg.Retrieval,
		Logger:    logger,
		Out:       os.Stdout,
	}

	closer := func() {}
	if cfg.Output.ArchivePath != "" {
		store, err := archive.Open(cfg.Output.ArchivePath, 0)
		if err != nil {
			return nil, nil, err
		}
		p.Archive = store
		closer = func() { store.Close() }
	}
	return p, closer, nil
}

func addCriteriaFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("criteria", "", "YAML file with search criteria")
	f.StringSlice("court", nil, "high court name (repeatable)")
	f.String("from", "", "first judgment date, YYYY-MM-DD")
	f.String("to", "", "last judgment date, YYYY-MM-DD")
	f.StringSlice("bench", nil, "bench name (repeatable; default all benches)")
	f.StringSlice("case-type", nil, "case type to include (repeatable)")
	f.String("case-type-pattern", "", "regular expression selecting case types")
	f.StringSlice("disposal", nil, "disposal nature to include (repeatable)")
	f.String("disposal-pattern", "", "regular expression selecting disposal natures")
}

// criteriaFromFlags loads --criteria when given and applies the criteria
// flags on top of it.
func criteriaFromFlags(cmd *cobra.Command) (types.SearchCriteria, error) {
	f := cmd.Flags()
	var c types.SearchCriteria
	if path, _ := f.GetString("criteria"); path != "" {
		loaded, err := portal.ReadCriteriaFile(path)
		if err != nil {
			return types.SearchCriteria{}, err
		}
		c = loaded
	}

	if v, _ := f.GetStringSlice("court"); len(v) > 0 {
		c.Courts = v
	}
	for _, d := range []struct {
		flag string
		dst  *time.Time
	}{{"from", &c.From}, {"to", &c.To}} {
		v, _ := f.GetString(d.flag)
		if v == "" {
			continue
		}
		t, err := time.Parse(types.DateLayout, v)
		if err != nil {
			return types.SearchCriteria{}, fmt.Errorf("%w: --%s %q: want YYYY-MM-DD", types.ErrInvalidCriteria, d.flag, v)
		}
		*d.dst = t
	}
	if v, _ := f.GetStringSlice("bench"); len(v) > 0 {
		c.Benches = v
	}
	if v, _ := f.GetStringSlice("case-type"); len(v) > 0 {
		c.CaseTypes = v
	}
	if v, _ := f.GetString("case-type-pattern"); v != "" {
		c.CaseTypePattern = v
	}
	if v, _ := f.GetStringSlice("disposal"); len(v) > 0 {
		c.DisposalNatures = v
	}
	if v, _ := f.GetString("disposal-pattern"); v != "" {
		c.DisposalPattern = v
	}

	if err := c.Validate(); err != nil {
		return types.SearchCriteria{}, err
	}
	return c, nil
}

func printOutcome(o portal.Outcome) {
	if len(o.Attempts) == 0 {
		return
	}
	passed := 0
	for _, a := range o.Attempts {
		if a.Outcome == types.AttemptSuccess {
			passed++
		}
	}
	fmt.Printf("Challenge attempts: %d (%d accepted), final state: %s\n", len(o.Attempts), passed, o.State)
}
