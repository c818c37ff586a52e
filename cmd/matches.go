package cmd

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/s0up4200/sc2kit/filter"
	"github.com/s0up4200/sc2kit/pandascore"
)

var (
	// Shared filter flags
	filterExpr string
	preset     string

	// live
	watch       bool
	interval    time.Duration
	streamsOnly bool

	// today
	hideFinished     bool
	tournamentFilter string
	grouped          bool

	// upcoming
	upcomingLimit int
	upcomingDays  int

	// matches
	matchType    string
	page         int
	perPage      int
	opponentID   int
	tournamentID int
	serieID      int
	leagueID     int
	fetchAll     bool
	maxPages     int
)

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&filterExpr, "filter", "f", "", "filter expression (see 'sc2kit filters')")
	cmd.Flags().StringVarP(&preset, "preset", "p", "", "use a preset filter from config")
}

func addPageFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&perPage, "per-page", pandascore.DefaultPageSize, "results per page (max 100)")
	cmd.Flags().BoolVar(&fetchAll, "all", false, "fetch every page")
	cmd.Flags().IntVar(&maxPages, "max-pages", 10, "page limit for --all (0 for no limit)")
}

// liveCmd represents the live command
var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Show running matches",
	Long:  `Show StarCraft II matches that are currently being played. With --watch the list refreshes until interrupted.`,
	RunE:  runLive,
}

// todayCmd represents the today command
var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show all matches happening today",
	Long:  `View today's schedule including finished, live, and upcoming matches.`,
	RunE:  runToday,
}

// upcomingCmd represents the upcoming command
var upcomingCmd = &cobra.Command{
	Use:   "upcoming",
	Short: "Show scheduled matches",
	RunE:  runUpcoming,
}

// matchesCmd represents the matches command
var matchesCmd = &cobra.Command{
	Use:   "matches",
	Short: "List matches",
	Long: `List matches, optionally narrowed by type, opponent, tournament, series or league.

Examples:
  sc2kit matches --type past --opponent 1234
  sc2kit matches --type upcoming --filter 'involves("Serral") and Games >= 5'
  sc2kit matches --all --preset best_of_5`,
	RunE: runMatches,
}

// tournamentMatchesCmd represents the tournament-matches command
var tournamentMatchesCmd = &cobra.Command{
	Use:   "tournament-matches <tournament-id>",
	Short: "List the matches of a tournament",
	Args:  cobra.ExactArgs(1),
	RunE:  runTournamentMatches,
}

func init() {
	rootCmd.AddCommand(liveCmd, todayCmd, upcomingCmd, matchesCmd, tournamentMatchesCmd)

	liveCmd.Flags().BoolVarP(&watch, "watch", "w", false, "refresh until interrupted")
	liveCmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "refresh interval for --watch")
	liveCmd.Flags().BoolVar(&streamsOnly, "streams-only", false, "only show matches with streams")
	addFilterFlags(liveCmd)

	todayCmd.Flags().BoolVar(&hideFinished, "hide-finished", false, "hide finished matches")
	todayCmd.Flags().StringVarP(&tournamentFilter, "tournament", "t", "", "filter by tournament name")
	todayCmd.Flags().BoolVarP(&grouped, "grouped", "g", false, "group matches by tournament")

	upcomingCmd.Flags().IntVarP(&upcomingLimit, "limit", "l", 20, "maximum number of matches")
	upcomingCmd.Flags().IntVar(&upcomingDays, "days", 7, "only show matches starting within this many days")
	addFilterFlags(upcomingCmd)

	matchesCmd.Flags().StringVar(&matchType, "type", "all", "all, past, running or upcoming")
	matchesCmd.Flags().IntVar(&opponentID, "opponent", 0, "opponent (player or team) ID")
	matchesCmd.Flags().IntVar(&tournamentID, "tournament", 0, "tournament ID")
	matchesCmd.Flags().IntVar(&serieID, "serie", 0, "series ID")
	matchesCmd.Flags().IntVar(&leagueID, "league", 0, "league ID")
	addPageFlags(matchesCmd)
	addFilterFlags(matchesCmd)

	tournamentMatchesCmd.Flags().StringVar(&matchType, "type", "all", "all, past, running or upcoming")
}

func runLive(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	f, err := resolveFilter(filterExpr, preset)
	if err != nil {
		return err
	}

	if !watch {
		return showLive(ctx, f, false)
	}

	if interval < 5*time.Second {
		return fmt.Errorf("--interval must be at least 5s")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		// Clear screen
		fmt.Print("\033[H\033[2J")
		if err := showLive(ctx, f, true); err != nil && !pandascore.IsCanceled(err) {
			logger.Error().Err(err).Msg("Failed to refresh live matches")
		}
		fmt.Printf("Refreshing every %s, press Ctrl+C to stop\n", interval)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func showLive(ctx context.Context, f filter.CompiledFilter, fresh bool) error {
	req := pandascore.RunningMatches().Request()
	if fresh {
		req.Cache = pandascore.NoCache()
	}

	var matches []pandascore.Match
	if err := client.Execute(ctx, req, &matches); err != nil {
		return fmt.Errorf("failed to get live matches: %w", err)
	}

	if streamsOnly {
		matches = slices.DeleteFunc(matches, func(m pandascore.Match) bool { return !m.HasStreams() })
	}

	matches, err := filter.Select(ctx, filters, f, matches, filter.MatchEnv)
	if err != nil {
		return err
	}

	if len(matches) == 0 {
		fmt.Println("No live matches right now.")
		return nil
	}

	fmt.Println(formatter.FormatMatchList("Live matches", matches, tournamentNames(ctx, matches)))
	return nil
}

func runToday(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	// Fetch all three scopes concurrently
	var past, running, upcoming []pandascore.Match
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		past, err = client.PastMatches(gctx, pandascore.MaxPageSize)
		return err
	})
	g.Go(func() (err error) {
		running, err = client.LiveMatches(gctx)
		return err
	})
	g.Go(func() (err error) {
		upcoming, err = client.UpcomingMatches(gctx, pandascore.MaxPageSize)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	loc, err := cfg.Display.Location()
	if err != nil {
		return err
	}
	matches := matchesOn(time.Now().In(loc), slices.Concat(past, running, upcoming))

	if hideFinished {
		matches = slices.DeleteFunc(matches, func(m pandascore.Match) bool { return m.HasEnded() })
	}

	tournaments := tournamentsByID(ctx, matches)
	if tournamentFilter != "" {
		needle := strings.ToLower(tournamentFilter)
		matches = slices.DeleteFunc(matches, func(m pandascore.Match) bool {
			t, ok := tournaments[m.TournamentID]
			return !ok || !strings.Contains(strings.ToLower(t.Name), needle)
		})
	}

	if len(matches) == 0 {
		fmt.Println("No matches scheduled for today.")
		return nil
	}

	if grouped {
		fmt.Println(formatter.FormatMatchesGrouped(matches, tournaments))
	} else {
		names := make(map[int]string, len(tournaments))
		for id, t := range tournaments {
			names[id] = t.Name
		}
		fmt.Println(formatter.FormatMatchList("Today's matches", matches, names))
	}
	fmt.Println(formatter.FormatMatchSummary(matches))
	return nil
}

// matchesOn keeps matches starting (or ending, when the start is unknown)
// on the calendar day of now, deduped and sorted by start time.
func matchesOn(now time.Time, matches []pandascore.Match) []pandascore.Match {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 1)

	today := make([]pandascore.Match, 0, len(matches))
	for _, m := range pandascore.DedupeByID(matches) {
		when := m.BeginAt
		if when == nil || when.IsZero() {
			when = m.EndAt
		}
		if when == nil || when.IsZero() {
			continue
		}
		if !when.Before(start) && when.Before(end) {
			today = append(today, m)
		}
	}

	slices.SortStableFunc(today, func(a, b pandascore.Match) int {
		return cmp.Compare(startUnix(a), startUnix(b))
	})
	return today
}

func startUnix(m pandascore.Match) int64 {
	if m.BeginAt == nil {
		return 0
	}
	return m.BeginAt.Unix()
}

func runUpcoming(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	f, err := resolveFilter(filterExpr, preset)
	if err != nil {
		return err
	}

	matches, err := client.UpcomingMatches(ctx, upcomingLimit)
	if err != nil {
		return err
	}

	if upcomingDays > 0 {
		horizon := time.Now().AddDate(0, 0, upcomingDays)
		matches = slices.DeleteFunc(matches, func(m pandascore.Match) bool {
			return m.BeginAt != nil && !m.BeginAt.IsZero() && m.BeginAt.After(horizon)
		})
	}

	matches, err = filter.Select(ctx, filters, f, matches, filter.MatchEnv)
	if err != nil {
		return err
	}

	title := fmt.Sprintf("Upcoming matches (next %d days)", upcomingDays)
	fmt.Println(formatter.FormatMatchList(title, matches, tournamentNames(ctx, matches)))
	return nil
}

func runMatches(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	scope, ok := pandascore.ParseScope(matchType)
	if !ok {
		return fmt.Errorf("invalid match type: %s (must be all, past, running or upcoming)", matchType)
	}

	f, err := resolveFilter(filterExpr, preset)
	if err != nil {
		return err
	}

	req := pandascore.MatchesRequest{
		Scope:        scope,
		Page:         page,
		PageSize:     perPage,
		OpponentID:   opponentID,
		TournamentID: tournamentID,
		SerieID:      serieID,
		LeagueID:     leagueID,
	}

	var (
		matches []pandascore.Match
		footer  string
	)
	if fetchAll {
		matches, err = client.AllMatches(ctx, req, maxPages)
		if err != nil {
			return err
		}
	} else {
		headers, err := client.ExecuteWithHeaders(ctx, req.Request(), &matches)
		if err != nil {
			return fmt.Errorf("failed to get matches: %w", err)
		}
		if info, ok := client.Pagination(headers); ok {
			footer = formatter.FormatPagination(info)
		}
	}

	matches, err = filter.Select(ctx, filters, f, matches, filter.MatchEnv)
	if err != nil {
		return err
	}

	fmt.Println(formatter.FormatMatchList("Matches", matches, tournamentNames(ctx, matches)))
	if footer != "" {
		fmt.Println(footer)
	}
	return nil
}

func runTournamentMatches(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	id, err := strconv.Atoi(args[0])
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid tournament ID: %s", args[0])
	}

	scope, ok := pandascore.ParseScope(matchType)
	if !ok {
		return fmt.Errorf("invalid match type: %s (must be all, past, running or upcoming)", matchType)
	}

	matches, err := client.AllMatches(ctx, pandascore.MatchesRequest{
		Scope:        scope,
		PageSize:     pandascore.MaxPageSize,
		TournamentID: id,
		Sort:         []pandascore.SortParameter{pandascore.SortBy("begin_at")},
	}, 0)
	if err != nil {
		return err
	}

	title := fmt.Sprintf("Tournament %d matches", id)
	if names := tournamentNames(ctx, matches); names[id] != "" {
		title = names[id]
	}
	fmt.Println(formatter.FormatMatchList(title, matches, nil))
	if len(matches) > 0 {
		fmt.Println(formatter.FormatMatchSummary(matches))
	}
	return nil
}
