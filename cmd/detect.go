package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	detectMarkets    string
	detectCategories string
	detectWindowDays int
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run pattern detection over recorded evidence",
}

var detectMetaCmd = &cobra.Command{
	Use:   "meta",
	Short: "Detect meta-patterns across successful outcomes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initRuntime(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Exports.DetectMetaPatterns(ctx); err != nil {
			return err
		}
		zap.L().Info("meta-pattern detection complete")
		return nil
	},
}

var detectBarriersCmd = &cobra.Command{
	Use:   "barriers",
	Short: "Detect compliance barriers from failed outcomes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initRuntime(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		found := env.Regulatory.DetectComplianceBarriers(ctx, splitFlag(detectMarkets), splitFlag(detectCategories))
		zap.L().Info("barrier detection complete", zap.Int("patterns", len(found)))
		return printJSON(found)
	},
}

var detectHarmonizationCmd = &cobra.Command{
	Use:   "harmonization",
	Short: "Detect markets with harmonized regulatory requirements",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initRuntime(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		found := env.Regulatory.DetectHarmonizationPatterns(ctx, splitFlag(detectMarkets), splitFlag(detectCategories))
		zap.L().Info("harmonization detection complete", zap.Int("patterns", len(found)))
		return printJSON(found)
	},
}

var detectRegwatchCmd = &cobra.Command{
	Use:   "regwatch",
	Short: "Analyze regulatory change frequency per market",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initRuntime(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		window := time.Duration(detectWindowDays) * 24 * time.Hour
		reports := env.Regulatory.MonitorRegulatoryChanges(ctx, splitFlag(detectMarkets), splitFlag(detectCategories), window)
		zap.L().Info("regulatory monitoring complete", zap.Int("markets", len(reports)))
		return printJSON(reports)
	},
}

func splitFlag(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func init() {
	detectCmd.PersistentFlags().StringVar(&detectMarkets, "markets", "", "comma-separated market codes (e.g., DE,FR)")
	detectCmd.PersistentFlags().StringVar(&detectCategories, "categories", "", "comma-separated product categories")
	detectRegwatchCmd.Flags().IntVar(&detectWindowDays, "window-days", 365, "lookback window for change analysis")
	detectCmd.AddCommand(detectMetaCmd, detectBarriersCmd, detectHarmonizationCmd, detectRegwatchCmd)
	rootCmd.AddCommand(detectCmd)
}
