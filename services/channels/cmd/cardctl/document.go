package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"quotecards/pkg/domain"
)

var (
	inspectJSON bool
	clearYes    bool
)

func init() {
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "print the whole document as JSON")
	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "confirm removal of every user, channel and card")

	rootCmd.AddCommand(inspectCmd, sizeCmd, stripMediaCmd, clearCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Summarize the stored document",
	Long: `Summarize the stored document: users, channels, cards and serendipity entries.

Examples:
  # Counts only
  cardctl inspect

  # Full document
  cardctl inspect --json > backup.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, _, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		doc, err := a.Store().Read(cmd.Context())
		if err != nil {
			return err
		}
		if inspectJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		}
		writeSummary(cmd.OutOrStdout(), summarize(doc))
		return nil
	},
}

var sizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Print the serialized size of the stored document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, cfg, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		n, err := a.Store().Size(cmd.Context())
		if err != nil {
			return err
		}
		if cfg.StoreMaxBytes > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%d bytes (%.1f%% of %d)\n", n, 100*float64(n)/float64(cfg.StoreMaxBytes), cfg.StoreMaxBytes)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d bytes\n", n)
		return nil
	},
}

var stripMediaCmd = &cobra.Command{
	Use:   "strip-media",
	Short: "Drop every image and video payload from the stored document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, _, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		n, err := a.Store().StripAllMedia(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stripped media from %d cards\n", n)
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the stored document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !clearYes {
			return errors.New("refusing to clear the document without --yes")
		}
		a, _, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.Store().Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "document cleared")
		return nil
	},
}

type summary struct {
	Users           int
	UserChannels    int
	PresetChannels  int
	Cards           int
	MediaCards      int
	Comments        int
	Items           int
	Recommendations int
	CurrentUser     string
}

func summarize(doc domain.Document) summary {
	s := summary{
		Users:           len(doc.Users),
		Items:           len(doc.SerendipityItems),
		Recommendations: len(doc.SerendipityRecommendations),
		CurrentUser:     "-",
	}
	for _, ch := range doc.Channels {
		if ch.IsPreset {
			s.PresetChannels++
		} else {
			s.UserChannels++
		}
		for _, c := range ch.Cards {
			s.Cards++
			s.Comments += len(c.Comments)
			if c.HasMedia() {
				s.MediaCards++
			}
		}
	}
	if doc.CurrentUserID != nil {
		s.CurrentUser = *doc.CurrentUserID
		if i := doc.FindUser(*doc.CurrentUserID); i >= 0 {
			s.CurrentUser = doc.Users[i].Username
		}
	}
	return s
}

func writeSummary(w io.Writer, s summary) {
	fmt.Fprintf(w, "users:            %d\n", s.Users)
	fmt.Fprintf(w, "current user:     %s\n", s.CurrentUser)
	fmt.Fprintf(w, "channels:         %d user, %d preset\n", s.UserChannels, s.PresetChannels)
	fmt.Fprintf(w, "cards:            %d (%d with media)\n", s.Cards, s.MediaCards)
	fmt.Fprintf(w, "comments:         %d\n", s.Comments)
	fmt.Fprintf(w, "serendipity:      %d items, %d recommendations\n", s.Items, s.Recommendations)
}
