package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/rfp-evaluator/internal/pipeline"
	"github.com/spigell/rfp-evaluator/internal/rfp"
)

var criteriaCmd = &cobra.Command{
	Use:   "criteria",
	Short: "Print the normalized evaluation criteria of an RFP",
	Run: func(cmd *cobra.Command, _ []string) {
		printCriteria(cmd)
	},
}

func init() {
	rootCmd.AddCommand(criteriaCmd)

	criteriaCmd.Flags().String("rfp", "", "RFP document (.pdf or .txt)")
	criteriaCmd.Flags().String("summary", "", "use this RFP summary file (yaml or json) instead of asking the LLM")

	criteriaCmd.MarkFlagRequired("rfp")
}

func printCriteria(cmd *cobra.Command) {
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

	var summary *rfp.Summary
	if summaryPath := cmd.Flag("summary").Value.String(); summaryPath != "" {
		summary, err = rfp.LoadSummary(summaryPath)
		if err != nil {
			logger.Fatal("loading rfp summary", zap.Error(err), zap.String("path", summaryPath))
		}
	} else {
		summary = comps.summarizer.Summarize(ctx, text)
	}

	extraction, err := comps.extractor.Extract(ctx, text, summary.Criteria())
	if err != nil {
		logger.Fatal("extracting criteria", zap.Error(err))
	}

	logger.Info("criteria extracted",
		zap.String("source", string(extraction.Source)),
		zap.Int("chunks", extraction.Chunks),
		zap.Int("dropped_chunks", extraction.Dropped),
	)

	pretty, err := json.MarshalIndent(extraction, "", "  ")
	if err != nil {
		logger.Fatal("encoding criteria", zap.Error(err))
	}
	fmt.Println(string(pretty))
}
