package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	patternsKind   string
	patternsFormat string
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Inspect and manage learned patterns",
}

var patternsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active patterns",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initRuntime(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		switch patternsKind {
		case "export":
			patterns := env.Exports.GetAllPatterns(ctx)
			if patternsFormat == "json" {
				return printJSON(patterns)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tNAME\tMARKETS\tCONF\tRATE\tUSES")
			for _, p := range patterns {
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%.2f\t%.2f\t%d\n",
					p.ID, p.PatternType, p.Name, p.Markets,
					p.Confidence, p.SuccessRate, p.ApplicationCount)
			}
			return w.Flush()
		case "regulatory":
			patterns := env.Regulatory.GetAllPatterns(ctx)
			if patternsFormat == "json" {
				return printJSON(patterns)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tDOMAIN\tNAME\tMARKETS\tCONF\tUSES")
			for _, p := range patterns {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\t%.2f\t%d\n",
					p.ID, p.PatternType, p.Domain, p.Name, p.Markets,
					p.Confidence, p.ApplicationCount)
			}
			return w.Flush()
		default:
			return eris.Errorf("unknown pattern kind %q (want export or regulatory)", patternsKind)
		}
	},
}

var patternsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one pattern as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initRuntime(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if p, err := env.Exports.Get(ctx, args[0]); err == nil {
			return printJSON(p)
		}
		p, err := env.Regulatory.Get(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "pattern %s", args[0])
		}
		return printJSON(p)
	},
}

var patternsArchiveCmd = &cobra.Command{
	Use:   "archive <id>",
	Short: "Archive a pattern so it is no longer applied",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initRuntime(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Exports.ArchivePattern(ctx, args[0], ""); err == nil {
			zap.L().Info("pattern archived", zap.String("id", args[0]))
			return nil
		}
		if err := env.Regulatory.ArchivePattern(ctx, args[0], ""); err != nil {
			return eris.Wrapf(err, "archive pattern %s", args[0])
		}
		zap.L().Info("pattern archived", zap.String("id", args[0]))
		return nil
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	patternsCmd.PersistentFlags().StringVar(&patternsKind, "kind", "export", "pattern kind: export or regulatory")
	patternsCmd.PersistentFlags().StringVar(&patternsFormat, "format", "table", "output format: table or json")
	patternsCmd.AddCommand(patternsListCmd, patternsShowCmd, patternsArchiveCmd)
	rootCmd.AddCommand(patternsCmd)
}
