// Package pandascore provides a client for the PandaScore StarCraft II API.
//
// PandaScore publishes esports data: players, teams, leagues, series,
// tournaments and matches. This package wraps the StarCraft II endpoints with
// typed requests and responses.
//
// # Architecture
//
// The package is organized into several components:
//
//   - Client: The orchestrator. Checks the response cache, injects auth and retries
//   - NetworkClient: Builds HTTP requests and maps response statuses to errors
//   - Requests: Typed listing requests that flatten into query parameters
//   - Types: Domain models (Match, Player, Team, Tournament, Series, League)
//   - Errors: A single APIError type classified by ErrorKind
//
// # Usage
//
//	logger := zerolog.New(os.Stderr)
//	client, err := pandascore.NewClient(
//		os.Getenv("PANDA_TOKEN"),
//		logger,
//		pandascore.WithRetryConfig(retry.Aggressive()),
//		pandascore.WithCacheConfig(pandascore.CacheConfig{MaxSize: 200, DefaultTTL: 10 * time.Minute}),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	live, err := client.LiveMatches(ctx)
//
// Listings page with ExecutePaginated:
//
//	players, err := pandascore.ExecutePaginated[pandascore.Player](ctx, client,
//		pandascore.PlayersByNationality("KR").Request(), 5)
//
// # Error Handling
//
// Every failure is an *APIError (or the context's error when the call was
// cancelled). Classify with KindOf or the helpers:
//
//	if pandascore.IsRateLimited(err) {
//		// back off
//	}
package pandascore
