package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/exportwise/advisor-cli/internal/ingest"
	"github.com/exportwise/advisor-cli/internal/resilience"
	"github.com/exportwise/advisor-cli/internal/store"
	"github.com/exportwise/advisor-cli/internal/validate"
)

var catalogFilePath string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Load a regulatory catalog from a YAML file",
	Long: `Load market requirements and regulatory changes from a YAML catalog.

Entries are checked against the catalog schemas; validation problems are
logged as warnings and the records persisted anyway. Requirements are
upserted by (market, category, name); changes are append-only.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "catalog"))

		cat, err := ingest.ReadCatalog(catalogFilePath)
		if err != nil {
			return err
		}

		env, err := initRuntime(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		stats := loadCatalog(ctx, log, env.Store, cat)

		log.Info("catalog load complete",
			zap.Int("requirements", stats.Requirements),
			zap.Int("changes", stats.Changes),
			zap.Int("flagged", stats.Flagged),
			zap.Int("failed", stats.Failed),
		)
		return nil
	},
}

// catalogStats counts what one catalog load persisted, flagged or lost.
type catalogStats struct {
	Requirements int // requirements persisted
	Changes      int // changes persisted
	Flagged      int // records persisted despite validation problems
	Failed       int // records lost to store errors
}

// loadCatalog persists a parsed catalog. Schema problems are advisory: the
// record is logged with its problems and stored anyway. Only store errors
// drop a record.
func loadCatalog(ctx context.Context, log *zap.Logger, st store.Store, cat *ingest.Catalog) catalogStats {
	retryCfg := resilience.DefaultRetryConfig()
	var stats catalogStats

	for _, r := range cat.ModelRequirements() {
		if problems := validate.Requirement(r); len(problems) > 0 {
			stats.Flagged++
			log.Warn("requirement has validation problems",
				zap.String("market", r.Market), zap.String("name", r.Name),
				zap.Any("problems", problems))
		}
		err := resilience.Do(ctx, retryCfg, func(ctx context.Context) error {
			return st.UpsertRequirement(ctx, r)
		})
		if err != nil {
			stats.Failed++
			log.Warn("upsert requirement failed",
				zap.String("market", r.Market), zap.String("name", r.Name),
				zap.Error(err))
			continue
		}
		stats.Requirements++
	}

	for _, ch := range cat.ModelChanges() {
		if problems := validate.Change(ch); len(problems) > 0 {
			stats.Flagged++
			log.Warn("change has validation problems",
				zap.String("market", ch.Market), zap.String("change", ch.ID),
				zap.Any("problems", problems))
		}
		err := resilience.Do(ctx, retryCfg, func(ctx context.Context) error {
			return st.InsertRegulatoryChange(ctx, ch)
		})
		if err != nil {
			stats.Failed++
			log.Warn("insert change failed",
				zap.String("market", ch.Market), zap.String("change", ch.ID),
				zap.Error(err))
			continue
		}
		stats.Changes++
	}

	return stats
}

func init() {
	catalogCmd.Flags().StringVar(&catalogFilePath, "file", "", "path to catalog YAML file (required)")
	_ = catalogCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(catalogCmd)
}
