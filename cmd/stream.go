package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/s0up4200/sc2kit/pandascore"
)

var (
	streamMatchID  int
	streamPlayer   string
	streamLanguage string
	streamFeed     string
)

// streamCmd represents the stream command
var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Show stream links for live matches",
	Long: `Show stream links for live matches, or for a single match by ID.

Examples:
  sc2kit stream
  sc2kit stream --player Clem --language en
  sc2kit stream --match 123456`,
	RunE: runStream,
}

func init() {
	rootCmd.AddCommand(streamCmd)

	streamCmd.Flags().IntVar(&streamMatchID, "match", 0, "match ID")
	streamCmd.Flags().StringVar(&streamPlayer, "player", "", "only matches involving this player")
	streamCmd.Flags().StringVar(&streamLanguage, "language", "", "stream language, e.g. en or ko")
	streamCmd.Flags().StringVar(&streamFeed, "feed", "", "subscribe to a realtime feed of --match (frames or events)")
}

func runStream(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	if streamFeed != "" {
		if streamMatchID == 0 {
			return fmt.Errorf("--feed requires --match")
		}
		feed := pandascore.StreamFeed(streamFeed)
		if feed != pandascore.FeedFrames && feed != pandascore.FeedEvents {
			return fmt.Errorf("invalid feed: %s (must be frames or events)", streamFeed)
		}
		_, err := client.Stream(ctx, pandascore.StreamRequest{
			Path:  fmt.Sprintf("/matches/%d", streamMatchID),
			Feeds: []pandascore.StreamFeed{feed},
		})
		return err
	}

	var matches []pandascore.Match
	if streamMatchID != 0 {
		req := pandascore.MatchesRequest{Filters: map[string]any{"id": streamMatchID}}
		found, err := client.Matches(ctx, req)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return fmt.Errorf("match %d not found", streamMatchID)
		}
		matches = found
	} else {
		live, err := client.LiveMatches(ctx)
		if err != nil {
			return err
		}
		if len(live) == 0 {
			fmt.Println("No live matches right now.")
			return nil
		}
		matches = live
	}

	if streamPlayer != "" {
		involved := matches[:0]
		for _, m := range matches {
			if m.Involves(streamPlayer) {
				involved = append(involved, m)
			}
		}
		if len(involved) == 0 {
			fmt.Printf("No live matches involving %s.\n", streamPlayer)
			return nil
		}
		matches = involved
	}

	fmt.Println(formatter.FormatStreams(matches, streamLanguage))
	return nil
}
