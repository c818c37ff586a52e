package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s0up4200/sc2kit/display"
	"github.com/s0up4200/sc2kit/pandascore"
)

var (
	exportFormat  string
	exportOutput  string
	exportLimit   int
	exportPlayer  string
	exportVerbose bool
	exportTourney int
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export <matches|players|tournaments>",
	Short: "Export data to JSON or CSV",
	Long: `Export matches, players or tournaments to a JSON or CSV file.

Examples:
  sc2kit export matches --format csv --limit 100
  sc2kit export matches --player Serral --output serral.json
  sc2kit export players --format csv
  sc2kit export tournaments --verbose`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"matches", "players", "tournaments"},
	RunE:      runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "output format (json or csv)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default <kind>_export.<format>)")
	exportCmd.Flags().IntVarP(&exportLimit, "limit", "l", pandascore.DefaultPageSize, "number of records")
	exportCmd.Flags().StringVar(&exportPlayer, "player", "", "only matches of this player")
	exportCmd.Flags().IntVar(&exportTourney, "tournament", 0, "only matches of this tournament ID")
	exportCmd.Flags().BoolVarP(&exportVerbose, "verbose", "v", false, "export complete API objects")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	kind := strings.ToLower(args[0])
	format, err := display.ParseExportFormat(exportFormat)
	if err != nil {
		return err
	}
	if exportLimit < 1 {
		return fmt.Errorf("limit must be positive")
	}

	exporter := display.Exporter{Format: format, Verbose: exportVerbose}
	exporter.Location, err = cfg.Display.Location()
	if err != nil {
		return err
	}

	var write func(io.Writer) error
	var count int
	switch kind {
	case "matches":
		matches, err := exportMatches(ctx)
		if err != nil {
			return err
		}
		count = len(matches)
		write = func(w io.Writer) error { return exporter.Matches(w, matches) }
	case "players":
		players, err := client.AllPlayers(ctx, pandascore.PlayersRequest{PageSize: min(exportLimit, pandascore.MaxPageSize)}, pages(exportLimit))
		if err != nil {
			return err
		}
		players = players[:min(len(players), exportLimit)]
		count = len(players)
		write = func(w io.Writer) error { return exporter.Players(w, players) }
	case "tournaments":
		req := pandascore.PastTournaments()
		req.PageSize = min(exportLimit, pandascore.MaxPageSize)
		tournaments, err := pandascore.ExecutePaginated[pandascore.Tournament](ctx, client, req.Request(), pages(exportLimit))
		if err != nil {
			return err
		}
		tournaments = tournaments[:min(len(tournaments), exportLimit)]
		count = len(tournaments)
		write = func(w io.Writer) error { return exporter.Tournaments(w, tournaments) }
	default:
		return fmt.Errorf("unknown export type: %s (use matches, players or tournaments)", args[0])
	}

	path := exportOutput
	if path == "" {
		path = display.DefaultOutputPath(kind, format)
	}

	if err := writeFile(path, write); err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	logger.Debug().Str("path", path).Int("records", count).Msg("Export written")
	fmt.Printf("✓ Exported %s to %s (%s)\n", fmt.Sprintf("%d %s", count, exportNoun(kind, count)), path, fileSize(info.Size()))
	return nil
}

func exportMatches(ctx context.Context) ([]pandascore.Match, error) {
	req := pandascore.PastMatches()
	req.PageSize = min(exportLimit, pandascore.MaxPageSize)
	req.TournamentID = exportTourney

	if exportPlayer != "" {
		player, err := findPlayer(ctx, exportPlayer)
		if err != nil {
			return nil, err
		}
		req.OpponentID = player.ID
	}

	matches, err := client.AllMatches(ctx, req, pages(exportLimit))
	if err != nil {
		return nil, err
	}
	return matches[:min(len(matches), exportLimit)], nil
}

func exportNoun(kind string, n int) string {
	if n == 1 {
		return map[string]string{"matches": "match", "players": "player", "tournaments": "tournament"}[kind]
	}
	return kind
}

// pages is the number of full pages needed for n records
func pages(n int) int {
	return (n + pandascore.MaxPageSize - 1) / pandascore.MaxPageSize
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func fileSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
