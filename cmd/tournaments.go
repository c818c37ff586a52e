package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/s0up4200/sc2kit/filter"
	"github.com/s0up4200/sc2kit/pandascore"
)

var (
	tournamentType string
	tier           string
	withPrizepool  bool
	seriesType     string
	seriesYear     int
	allLeagues     bool
)

// tournamentsCmd represents the tournaments command
var tournamentsCmd = &cobra.Command{
	Use:   "tournaments",
	Short: "List tournaments",
	Long: `List tournaments, optionally narrowed by type and tier.

Examples:
  sc2kit tournaments --type running
  sc2kit tournaments --tier s --prizepool
  sc2kit tournaments --filter 'Prizepool >= 10000 and LiveSupported'`,
	RunE: runTournaments,
}

// seriesCmd represents the series command
var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "List series",
	RunE:  runSeries,
}

// leaguesCmd represents the leagues command
var leaguesCmd = &cobra.Command{
	Use:   "leagues",
	Short: "List leagues",
	RunE:  runLeagues,
}

// filtersCmd represents the filters command
var filtersCmd = &cobra.Command{
	Use:         "filters",
	Short:       "List filter presets and expression variables",
	Annotations: map[string]string{skipClient: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Presets:")
		for _, name := range filters.ListFilters() {
			f, _ := filters.GetFilter(name)
			fmt.Printf("  %-12s %s\n", name, f.Expression())
		}
		fmt.Println()
		fmt.Println(filter.Describe())
	},
}

func init() {
	rootCmd.AddCommand(tournamentsCmd, seriesCmd, leaguesCmd, filtersCmd)

	tournamentsCmd.Flags().StringVar(&tournamentType, "type", "running", "all, past, running or upcoming")
	tournamentsCmd.Flags().StringVar(&tier, "tier", "", "tier (s, a, b, c, d)")
	tournamentsCmd.Flags().BoolVar(&withPrizepool, "prizepool", false, "only tournaments with a prize pool")
	tournamentsCmd.Flags().IntVar(&perPage, "per-page", pandascore.DefaultPageSize, "results per page (max 100)")
	addFilterFlags(tournamentsCmd)

	seriesCmd.Flags().StringVar(&seriesType, "type", "running", "all, past, running or upcoming")
	seriesCmd.Flags().IntVar(&seriesYear, "year", 0, "season year")
	seriesCmd.Flags().IntVar(&leagueID, "league", 0, "league ID")

	leaguesCmd.Flags().BoolVar(&allLeagues, "all", false, "fetch every page")
}

func runTournaments(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	scope, ok := pandascore.ParseScope(tournamentType)
	if !ok {
		return fmt.Errorf("invalid tournament type: %s (must be all, past, running or upcoming)", tournamentType)
	}

	f, err := resolveFilter(filterExpr, preset)
	if err != nil {
		return err
	}

	req := pandascore.TournamentsRequest{
		Scope:        scope,
		PageSize:     perPage,
		Tier:         strings.ToLower(tier),
		HasPrizepool: withPrizepool,
	}
	switch scope {
	case pandascore.ScopePast:
		req.Sort = []pandascore.SortParameter{pandascore.SortByDesc("end_at")}
	case pandascore.ScopeUpcoming:
		req.Sort = []pandascore.SortParameter{pandascore.SortBy("begin_at")}
	}

	tournaments, err := client.Tournaments(ctx, req)
	if err != nil {
		return err
	}

	tournaments, err = filter.Select(ctx, filters, f, tournaments, filter.TournamentEnv(time.Now()))
	if err != nil {
		return err
	}

	fmt.Println(formatter.FormatTournamentList(tournaments))
	return nil
}

func runSeries(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	scope, ok := pandascore.ParseScope(seriesType)
	if !ok {
		return fmt.Errorf("invalid series type: %s (must be all, past, running or upcoming)", seriesType)
	}

	req := pandascore.SeriesRequest{
		Scope:    scope,
		LeagueID: leagueID,
		Year:     seriesYear,
	}
	series, err := client.Series(ctx, req)
	if err != nil {
		return err
	}

	fmt.Println(formatter.FormatSeriesList(series))
	return nil
}

func runLeagues(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	var (
		leagues []pandascore.League
		err     error
	)
	if allLeagues {
		leagues, err = client.AllLeagues(ctx)
	} else {
		leagues, err = client.Leagues(ctx, pandascore.LeaguesRequest{
			PageSize: pandascore.MaxPageSize,
			Sort:     []pandascore.SortParameter{pandascore.SortBy("name")},
		})
	}
	if err != nil {
		return err
	}

	fmt.Println(formatter.FormatLeagueList(leagues))
	return nil
}
