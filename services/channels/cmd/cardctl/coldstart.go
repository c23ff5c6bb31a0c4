package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"
	"quotecards/pkg/coldstart"
	"quotecards/services/channels/internal/config"
)

var (
	coldStartCount   int
	coldStartTimeout time.Duration
)

func init() {
	coldStartCmd.Flags().IntVar(&coldStartCount, "count", 5, "number of cards to generate")
	coldStartCmd.Flags().DurationVar(&coldStartTimeout, "timeout", 5*time.Minute, "overall generation timeout")
	rootCmd.AddCommand(coldStartCmd)
}

var coldStartCmd = &cobra.Command{
	Use:   "coldstart <title> [author]",
	Short: "Generate cold start cards for a book without storing them",
	Long: `Run the configured cold start generator for a book and print the cards as JSON.
Nothing is written to the store.

Examples:
  cardctl coldstart "Walden" "Henry David Thoreau" --count 3`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		author := ""
		if len(args) == 2 {
			author = args[1]
		}
		ctx, cancel := contextWithTimeout(cmd, coldStartTimeout)
		defer cancel()
		cards, err := a.GenerateCards(ctx, args[0], author, coldStartCount)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cards)
	},
}

func coldStartConfig(cfg config.FileConfig, mockDelay time.Duration) coldstart.Config {
	return coldstart.Config{
		VertexBaseURL:     cfg.VertexBaseURL,
		VertexAPIKey:      cfg.VertexAPIKey,
		TextModel:         cfg.TextModel,
		ImageModel:        cfg.ImageModel,
		TextProvider:      cfg.TextProvider,
		GeminiAPIKey:      cfg.GeminiAPIKey,
		GeminiModel:       cfg.GeminiModel,
		RequestsPerSecond: cfg.RequestsPerSecond,
		MaxWidth:          cfg.CompressMaxWidth,
		Quality:           cfg.CompressQuality,
		MockDelay:         mockDelay,
	}
}
