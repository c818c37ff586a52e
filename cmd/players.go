package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/s0up4200/sc2kit/filter"
	"github.com/s0up4200/sc2kit/pandascore"
)

var (
	searchName   string
	nationality  string
	teamID       int
	location     string
	matchLimit   int
	scheduleDays int
)

// playersCmd represents the players command
var playersCmd = &cobra.Command{
	Use:   "players",
	Short: "List players",
	RunE:  runPlayers,
}

// playerMatchesCmd represents the player-matches command
var playerMatchesCmd = &cobra.Command{
	Use:   "player-matches <name>",
	Short: "Show recent matches of a player",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlayerMatches,
}

// playerScheduleCmd represents the player-schedule command
var playerScheduleCmd = &cobra.Command{
	Use:   "player-schedule <name>",
	Short: "Show upcoming matches of a player",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlayerSchedule,
}

// teamsCmd represents the teams command
var teamsCmd = &cobra.Command{
	Use:   "teams",
	Short: "List teams",
	RunE:  runTeams,
}

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:       "search <player|team> <query>",
	Short:     "Search players or teams by name",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"player", "team"},
	RunE:      runSearch,
}

func init() {
	rootCmd.AddCommand(playersCmd, playerMatchesCmd, playerScheduleCmd, teamsCmd, searchCmd)

	playersCmd.Flags().StringVarP(&searchName, "search", "s", "", "search by name")
	playersCmd.Flags().StringVar(&nationality, "nationality", "", "ISO country code, e.g. KR")
	playersCmd.Flags().IntVar(&teamID, "team", 0, "current team ID")
	addPageFlags(playersCmd)
	addFilterFlags(playersCmd)

	playerMatchesCmd.Flags().IntVarP(&matchLimit, "limit", "l", 10, "number of matches")

	playerScheduleCmd.Flags().IntVar(&scheduleDays, "days", 7, "days ahead to look")

	teamsCmd.Flags().StringVarP(&searchName, "search", "s", "", "search by name")
	teamsCmd.Flags().StringVar(&location, "location", "", "location code, e.g. KR")
	teamsCmd.Flags().IntVar(&page, "page", 1, "page number")
	teamsCmd.Flags().IntVar(&perPage, "per-page", pandascore.DefaultPageSize, "results per page (max 100)")
}

func runPlayers(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	f, err := resolveFilter(filterExpr, preset)
	if err != nil {
		return err
	}

	req := pandascore.PlayersRequest{
		Page:        page,
		PageSize:    perPage,
		Nationality: strings.ToUpper(nationality),
		TeamID:      teamID,
	}
	if searchName != "" {
		req.Search = map[string]string{"name": searchName}
	}

	var players []pandascore.Player
	if fetchAll {
		players, err = client.AllPlayers(ctx, req, maxPages)
	} else {
		players, err = client.Players(ctx, req)
	}
	if err != nil {
		return err
	}

	players, err = filter.Select(ctx, filters, f, players, filter.PlayerEnv)
	if err != nil {
		return err
	}

	fmt.Println(formatter.FormatPlayerList(players))
	return nil
}

// findPlayer resolves a player name, preferring an exact handle match
func findPlayer(ctx context.Context, name string) (pandascore.Player, error) {
	players, err := client.SearchPlayers(ctx, name)
	if err != nil {
		return pandascore.Player{}, err
	}
	if len(players) == 0 {
		return pandascore.Player{}, fmt.Errorf("no player found matching '%s'", name)
	}
	for _, p := range players {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	logger.Debug().Str("query", name).Str("player", players[0].Name).Msg("No exact match, using first result")
	return players[0], nil
}

func runPlayerMatches(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	player, err := findPlayer(ctx, args[0])
	if err != nil {
		return err
	}

	req := pandascore.PastMatches()
	req.OpponentID = player.ID
	req.PageSize = matchLimit
	matches, err := client.Matches(ctx, req)
	if err != nil {
		return err
	}

	if len(matches) == 0 {
		fmt.Printf("No recent matches found for %s.\n", player.Name)
		return nil
	}

	var wins int
	for _, m := range matches {
		if m.WinnerID != nil && *m.WinnerID == player.ID {
			wins++
		}
	}

	title := fmt.Sprintf("Recent matches of %s", player.Name)
	fmt.Println(formatter.FormatMatchList(title, matches, tournamentNames(ctx, matches)))
	fmt.Printf("Record: %d-%d (%.0f%% win rate)\n", wins, len(matches)-wins, 100*float64(wins)/float64(len(matches)))
	return nil
}

func runPlayerSchedule(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	player, err := findPlayer(ctx, args[0])
	if err != nil {
		return err
	}

	req := pandascore.UpcomingMatches()
	req.OpponentID = player.ID
	req.PageSize = pandascore.MaxPageSize

	matches, err := client.Matches(ctx, req)
	if err != nil {
		return err
	}

	horizon := time.Now().AddDate(0, 0, scheduleDays)
	upcoming := matches[:0]
	for _, m := range matches {
		if m.BeginAt == nil || m.BeginAt.IsZero() || !m.BeginAt.After(horizon) {
			upcoming = append(upcoming, m)
		}
	}

	if len(upcoming) == 0 {
		fmt.Printf("No matches scheduled for %s in the next %d days.\n", player.Name, scheduleDays)
		return nil
	}

	title := fmt.Sprintf("Schedule of %s (next %d days)", player.Name, scheduleDays)
	fmt.Println(formatter.FormatMatchList(title, upcoming, tournamentNames(ctx, upcoming)))
	return nil
}

func runTeams(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	req := pandascore.TeamsAlphabetical()
	req.Page = page
	req.PageSize = perPage
	req.Location = strings.ToUpper(location)
	if searchName != "" {
		req.Search = map[string]string{"name": searchName}
	}

	teams, err := client.Teams(ctx, req)
	if err != nil {
		return err
	}

	fmt.Println(formatter.FormatTeamList(teams))
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	kind, query := strings.ToLower(args[0]), args[1]
	switch kind {
	case "player", "players":
		players, err := client.SearchPlayers(ctx, query)
		if err != nil {
			return err
		}
		fmt.Println(formatter.FormatPlayerList(players))
	case "team", "teams":
		teams, err := client.SearchTeams(ctx, query)
		if err != nil {
			return err
		}
		fmt.Println(formatter.FormatTeamList(teams))
	default:
		return fmt.Errorf("unknown search type: %s (use 'player' or 'team')", args[0])
	}
	return nil
}
