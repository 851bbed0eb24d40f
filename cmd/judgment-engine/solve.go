// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"fmt"
	"image"
	_ "image/png"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/judgment-engine/internal/browser"
	"github.com/pdiddy/judgment-engine/internal/challenge"
)

var solveCmd = &cobra.Command{
	Use:   "solve [png-files...]",
	Short: "Read the digits of saved challenge images",
	Long: `Solve runs the challenge solver on PNG files, such as the crops saved with
search --debug-dir, and prints the digits read from each. Use --region to
crop a full-page screenshot first.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSolve,
}

func init() {
	solveCmd.Flags().IntSlice("region", nil, "crop rectangle x,y,width,height in pixels (default whole image)")

	rootCmd.AddCommand(solveCmd)
}

func runSolve(cmd *cobra.Command, args []string) error {
	region, _ := cmd.Flags().GetIntSlice("region")
	if len(region) != 0 && len(region) != 4 {
		return fmt.Errorf("--region wants x,y,width,height")
	}

	cfg := loadConfig()
	logger := slog.Default()
	t, err := newTools(cmd.Context(), cfg.OCR, logger)
	if err != nil {
		return err
	}
	solver := t.solver(cfg.Portal.DebugDir, logger)

	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		c := challenge.Capture{Screenshot: data}
		if len(region) == 4 {
			c.Region = browser.Rect{X: region[0], Y: region[1], Width: region[2], Height: region[3]}
		} else {
			img, _, err := image.DecodeConfig(bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("decoding %s: %w", path, err)
			}
			c.Region = browser.Rect{Width: img.Width, Height: img.Height}
		}

		answer, err := solver.Solve(cmd.Context(), c)
		if err != nil {
			return fmt.Errorf("solving %s: %w", path, err)
		}
		if answer == "" {
			answer = "(no digits)"
		}
		fmt.Printf("%s: %s\n", path, answer)
	}
	return nil
}
