package cmd

import (
	"context"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/s0up4200/sc2kit/config"
	"github.com/s0up4200/sc2kit/display"
	"github.com/s0up4200/sc2kit/filter"
	"github.com/s0up4200/sc2kit/pandascore"
)

var (
	cfgFile   string
	cfg       *config.Config
	logger    zerolog.Logger
	client    *pandascore.Client
	filters   *filter.Manager
	formatter *display.ConsoleFormatter

	// Root flags
	showStats bool
	noColor   bool

	// Build information
	appVersion = "dev"
	buildTime  = "unknown"
)

// skipClient marks commands that run without an API token
const skipClient = "sc2kit/skip-client"

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sc2kit",
	Short: "StarCraft II esports data from PandaScore in your terminal",
	Long: `sc2kit is a CLI for the PandaScore StarCraft II API. It shows live and
upcoming matches, players, teams, tournaments and series, and exports data
to JSON or CSV.

Set PANDA_TOKEN (or pandascore.token in config.yaml) to your API token.`,
	SilenceUsage:      true,
	PersistentPreRunE: initializeApp,
	PersistentPostRun: printStats,
}

// SetVersion records build information for the version and update commands
func SetVersion(version, built string) {
	appVersion = version
	buildTime = built
	rootCmd.Version = version
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&showStats, "stats", false, "print cache statistics and rate-limit status after the command")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// initializeApp loads configuration and builds the API client
func initializeApp(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger = setupLogger(cfg.Logging)

	loc, err := cfg.Display.Location()
	if err != nil {
		return err
	}
	formatter = display.NewConsoleFormatter(
		display.WithColor(display.ColorEnabled(noColor, os.Stdout)),
		display.WithLocation(loc),
		display.WithDetails(cfg.Display.ShowDetails),
	)

	filters = filter.NewManager()
	if err := filters.RegisterFilters(cfg.Filter.Presets); err != nil {
		return fmt.Errorf("invalid filter preset: %w", err)
	}

	if cmd.Annotations[skipClient] == "true" {
		return nil
	}

	client, err = newClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create PandaScore client: %w", err)
	}

	return nil
}

// newClient builds a PandaScore client from configuration
func newClient(cfg *config.Config, logger zerolog.Logger) (*pandascore.Client, error) {
	retryCfg, err := cfg.Retry.Resolve()
	if err != nil {
		return nil, err
	}

	authMethod, err := pandascore.ParseAuthMethod(cfg.PandaScore.AuthMethod)
	if err != nil {
		return nil, err
	}

	opts := []pandascore.Option{
		pandascore.WithAuthMethod(authMethod),
		pandascore.WithBaseURL(cfg.PandaScore.BaseURL),
		pandascore.WithTimeout(cfg.PandaScore.Timeout),
		pandascore.WithRetryConfig(retryCfg),
		pandascore.WithRateLimit(cfg.PandaScore.RateLimit),
		pandascore.WithUserAgent(userAgent(cfg.PandaScore.UserAgent)),
	}
	if cfg.Cache.Enabled {
		opts = append(opts, pandascore.WithCacheConfig(pandascore.CacheConfig{
			MaxSize:    cfg.Cache.MaxSize,
			DefaultTTL: cfg.Cache.DefaultTTL,
		}))
	} else {
		opts = append(opts, pandascore.WithoutCache())
	}

	return pandascore.NewClient(cfg.PandaScore.Token, logger, opts...)
}

func userAgent(base string) string {
	if base == "" {
		base = "sc2kit"
	}
	return base + "/" + appVersion
}

// setupLogger configures the zerolog logger
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Configure output format
	if cfg.Format == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	// Console format
	colorize := cfg.Color && !noColor && isatty.IsTerminal(os.Stderr.Fd())
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !colorize,
	}

	return zerolog.New(output).With().Timestamp().Logger()
}

// printStats prints cache and rate-limit status when --stats is set
func printStats(cmd *cobra.Command, args []string) {
	if !showStats || client == nil {
		return
	}
	fmt.Println(formatter.FormatCacheStats(client.CacheStats(), client.CacheEnabled()))
	fmt.Println(formatter.FormatRateLimit(client.RateLimitStatus()))
}

// commandContext returns a context canceled on interrupt
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// resolveFilter picks the filter for a command. Priority: --filter > --preset.
func resolveFilter(expression, preset string) (filter.CompiledFilter, error) {
	f, err := filters.Resolve(expression, preset)
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}
	if f != nil {
		logger.Debug().Str("filter", f.Expression()).Msg("Applying filter")
	}
	return f, nil
}

// tournamentNames fetches tournament names for the given IDs. Failures
// only cost the labels.
func tournamentNames(ctx context.Context, matches []pandascore.Match) map[int]string {
	tournaments := tournamentsByID(ctx, matches)
	names := make(map[int]string, len(tournaments))
	for id, t := range tournaments {
		names[id] = t.Name
	}
	return names
}

func tournamentsByID(ctx context.Context, matches []pandascore.Match) map[int]pandascore.Tournament {
	ids := make(map[int]struct{})
	for _, m := range matches {
		if m.TournamentID != 0 {
			ids[m.TournamentID] = struct{}{}
		}
	}
	out := make(map[int]pandascore.Tournament, len(ids))
	if len(ids) == 0 {
		return out
	}

	idList := make([]string, 0, len(ids))
	for _, id := range slices.Sorted(maps.Keys(ids)) {
		idList = append(idList, strconv.Itoa(id))
	}

	// PandaScore takes comma-separated filter values
	req := pandascore.TournamentsRequest{
		PageSize: pandascore.MaxPageSize,
		Filters:  map[string]any{"id": strings.Join(idList, ",")},
	}
	tournaments, err := client.Tournaments(ctx, req)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to get tournament names")
		return out
	}
	for _, t := range tournaments {
		out[t.ID] = t
	}
	return out
}
