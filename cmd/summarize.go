package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/rfp-evaluator/internal/pipeline"
)

const defaultSummaryFile = "rfp_summary_output.json"

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Summarize an RFP into a reusable summary file",
	Run: func(cmd *cobra.Command, _ []string) {
		summarize(cmd)
	},
}

func init() {
	rootCmd.AddCommand(summarizeCmd)

	summarizeCmd.Flags().String("rfp", "", "RFP document (.pdf or .txt)")
	summarizeCmd.Flags().StringP("out", "o", defaultSummaryFile, "summary file")

	summarizeCmd.MarkFlagRequired("rfp")
}

func summarize(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, config := setup()

	comps, err := newComponents(ctx, config, logger)
	if err != nil {
		logger.Fatal("preparing components", zap.Error(err))
	}

	path := cmd.Flag("rfp").Value.String()
	text, err := pipeline.ReadDocument(ctx, comps.documents, path)
	if err != nil {
		logger.Fatal("reading rfp", zap.Error(err), zap.String("path", path))
	}

	summary := comps.summarizer.Summarize(ctx, text)
	if summary.IsFallback() {
		logger.Warn("llm summary failed, the default summary is written")
	}

	out := cmd.Flag("out").Value.String()
	if err := summary.Save(out); err != nil {
		logger.Fatal("saving rfp summary", zap.Error(err))
	}

	logger.Info("rfp summary saved",
		zap.String("filename", out),
		zap.Int("technical_criteria", len(summary.EvaluationCriteriaDetails.TechnicalCriteria)),
	)
}
