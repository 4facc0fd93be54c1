package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	feedbackBusinessID string
	feedbackHelpful    bool
	feedbackDetails    string
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback <application-id>",
	Short: "Record feedback on an applied pattern",
	Long: `Record whether an applied pattern turned out to be helpful.

Feedback adjusts the pattern's confidence, increments its application count
and folds the binary outcome into its success rate.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initRuntime(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Learning.ProcessFeedback(ctx, feedbackBusinessID, args[0], feedbackHelpful, feedbackDetails); err != nil {
			return err
		}
		zap.L().Info("feedback applied",
			zap.String("application", args[0]),
			zap.Bool("helpful", feedbackHelpful),
		)
		return nil
	},
}

func init() {
	feedbackCmd.Flags().StringVar(&feedbackBusinessID, "business", "", "business id the feedback comes from")
	feedbackCmd.Flags().BoolVar(&feedbackHelpful, "helpful", true, "whether the applied pattern helped")
	feedbackCmd.Flags().StringVar(&feedbackDetails, "details", "", "free-form feedback details")
	rootCmd.AddCommand(feedbackCmd)
}
