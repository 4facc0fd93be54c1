package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Merge near-duplicate patterns",
	Long: `Run one consolidation pass over both pattern stores.

Patterns covering the same markets and strategy (or the same regulatory type
and domain) whose pairwise similarity exceeds the merge threshold are folded
into the highest-usage member; the absorbed patterns are archived with a
pointer to the survivor. Established patterns are exempt.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initRuntime(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		report := env.Learning.ConsolidatePatterns(ctx)
		zap.L().Info("consolidation complete",
			zap.Int("export_merged", report.ExportMerged),
			zap.Int("regulatory_merged", report.RegulatoryMerged),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(consolidateCmd)
}
