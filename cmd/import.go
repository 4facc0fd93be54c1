package main

import (
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/exportwise/advisor-cli/internal/ingest"
	"github.com/exportwise/advisor-cli/internal/model"
	"github.com/exportwise/advisor-cli/internal/resilience"
)

var (
	importFilePath    string
	importConcurrency int
	importDryRun      bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import export outcomes and learn patterns from them",
	Long: `Import export outcomes from an .xlsx workbook or a JSON array file.

Every outcome is persisted; successful outcomes additionally feed the
pattern learner, which reinforces matching strategy patterns or seeds new
ones and re-runs meta-pattern detection.`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to .xlsx or .json outcome file (required)")
	importCmd.Flags().IntVar(&importConcurrency, "concurrency", 4, "concurrent learn workers")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "parse and report without persisting or learning")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	log := zap.L().With(zap.String("command", "import"))

	outcomes, err := readOutcomeFile(importFilePath, log)
	if err != nil {
		return err
	}
	if len(outcomes) == 0 {
		log.Info("no outcomes found in file", zap.String("file", importFilePath))
		return nil
	}
	if importDryRun {
		log.Info("dry run complete", zap.Int("outcomes", len(outcomes)))
		return nil
	}

	env, err := initRuntime(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(importConcurrency)

	var learned, reinforced atomic.Int64
	retryCfg := resilience.DefaultRetryConfig()

	for _, outcome := range outcomes {
		outcome := outcome // per-iteration copy; go directive is below 1.22
		g.Go(func() error {
			if !outcome.Successful {
				// Failed outcomes are recorded for barrier detection only.
				err := resilience.Do(gctx, retryCfg, func(ctx context.Context) error {
					return env.Store.AppendOutcome(ctx, outcome)
				})
				if err != nil {
					log.Warn("record outcome failed",
						zap.String("outcome", outcome.ID), zap.Error(err))
				}
				return nil
			}
			if p := env.Exports.LearnFromOutcome(gctx, outcome); p != nil {
				if p.ApplicationCount == 1 {
					learned.Add(1)
				} else {
					reinforced.Add(1)
				}
			}
			return nil // individual failures never abort the batch
		})
	}
	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "import: learn outcomes")
	}

	log.Info("import complete",
		zap.Int("outcomes", len(outcomes)),
		zap.Int64("patterns_seeded", learned.Load()),
		zap.Int64("patterns_reinforced", reinforced.Load()),
	)
	return nil
}

func readOutcomeFile(path string, log *zap.Logger) ([]model.ExportOutcome, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		outcomes, skipped, err := ingest.ReadOutcomesXLSX(path)
		if err != nil {
			return nil, err
		}
		if len(skipped) > 0 {
			log.Warn("skipped malformed rows",
				zap.String("file", path), zap.Ints("rows", skipped))
		}
		return outcomes, nil
	case ".json":
		return ingest.ReadOutcomesJSON(path)
	default:
		return nil, eris.Errorf("unsupported outcome file %q (want .xlsx or .json)", path)
	}
}
