// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/judgment-engine/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert [pdf-paths-or-urls...]",
	Short: "Convert judgment PDFs to text",
	Long: `Convert extracts the text of local PDF files or documents at URLs. Pages
without a usable text layer are rasterized and read with optical
recognition. Without --out-dir the text is printed to stdout.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().String("out-dir", "", "write <name>.txt files here instead of stdout")
	convertCmd.Flags().Int("min-page-chars", 0, "letters and digits below which a page is read optically (default 20)")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if n, _ := cmd.Flags().GetInt("min-page-chars"); n > 0 {
		cfg.Retrieval.MinPageChars = n
	}
	outDir, _ := cmd.Flags().GetString("out-dir")
	logger := slog.Default()
	ctx := cmd.Context()

	t, err := newTools(ctx, cfg.OCR, logger)
	if err != nil {
		return err
	}
	client, err := newClient(cfg.Retrieval)
	if err != nil {
		return err
	}
	r := t.retriever(client, cfg.Retrieval, logger)

	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", outDir, err)
		}
	}

	var failed int
	for _, arg := range args {
		var (
			doc    types.RetrievedDocument
			method types.ConversionMethod
		)
		if isURL(arg) {
			doc, method, err = r.Retrieve(ctx, arg)
		} else {
			doc, method, err = r.ConvertFile(ctx, arg)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed:    %s (%v)\n", arg, err)
			failed++
			continue
		}

		if outDir == "" {
			fmt.Println(doc.Text)
			continue
		}
		dest := filepath.Join(outDir, textName(arg))
		if err := os.WriteFile(dest, []byte(doc.Text), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", dest, err)
		}
		fmt.Printf("converted: %s -> %s (%s, %d pages)\n", arg, dest, method, len(doc.Pages))
	}

	if failed > 0 {
		return fmt.Errorf("%d document(s) failed conversion", failed)
	}
	return nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// textName derives the output file name from a path or URL.
func textName(src string) string {
	base := filepath.Base(src)
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == "/" {
		base = "document"
	}
	return base + ".txt"
}
