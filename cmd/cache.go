package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/s0up4200/sc2kit/pandascore"
)

var expiredOnly bool

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the response cache",
	Long: `Inspect or clear the in-memory response cache.

The cache lives for the duration of a single command, so stats here only
reflect the current process. Use --stats on any command to see how it used
the cache.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(formatter.FormatCacheStats(client.CacheStats(), client.CacheEnabled()))
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear cached responses",
	Run: func(cmd *cobra.Command, args []string) {
		if !client.CacheEnabled() {
			fmt.Println("Cache is disabled, nothing to clear.")
			return
		}
		if expiredOnly {
			n := client.ClearExpired()
			fmt.Printf("✓ Removed %d expired %s\n", n, pluralEntry(n))
			return
		}
		n := client.CacheStats().Size
		client.ClearCache()
		fmt.Printf("✓ Cleared %d cached %s\n", n, pluralEntry(n))
	},
}

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test the API connection and caching",
	RunE:  runTest,
}

func init() {
	rootCmd.AddCommand(cacheCmd, testCmd)
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)

	cacheClearCmd.Flags().BoolVar(&expiredOnly, "expired", false, "only remove expired entries")
}

func pluralEntry(n int) string {
	if n == 1 {
		return "entry"
	}
	return "entries"
}

func runTest(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	fmt.Print("→ Connecting to PandaScore... ")
	start := time.Now()
	if err := client.TestConnection(ctx); err != nil {
		fmt.Println("✗ Failed")
		if pandascore.IsUnauthorized(err) {
			return fmt.Errorf("token rejected, check PANDA_TOKEN: %w", err)
		}
		return err
	}
	fmt.Printf("✓ Connected (%s)\n", time.Since(start).Round(time.Millisecond))

	req := pandascore.LeaguesRequest{PageSize: 5}
	for i := range 2 {
		var cached []pandascore.League
		hit, err := client.Cached(req.Request(), &cached)
		if err != nil {
			logger.Warn().Err(err).Msg("Cache entry unreadable")
		}
		source := "network"
		if hit {
			source = "cache"
		}

		start := time.Now()
		leagues, err := client.Leagues(ctx, req)
		if err != nil {
			return err
		}
		fmt.Printf("→ Request %d: %d leagues in %s (%s)\n", i+1, len(leagues), time.Since(start).Round(time.Microsecond), source)
	}

	fmt.Println(formatter.FormatCacheStats(client.CacheStats(), client.CacheEnabled()))
	fmt.Println(formatter.FormatRateLimit(client.RateLimitStatus()))
	return nil
}
