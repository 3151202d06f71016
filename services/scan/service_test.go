package scan

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"momox-agent/lib/scrapers/momox"
	"momox-agent/lib/testutil"
	"momox-agent/lib/timezone"
	scandb "momox-agent/services/scan/db"

	"github.com/stretchr/testify/require"
)

func setup(t testing.TB, fetcher Fetcher) (Service, func()) {
	result, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/scan",
		DbSchema: scandb.Schema,
	})
	s := NewService(result.DB, fetcher, Options{
		Heuristics: momox.DefaultHeuristics(),
	})
	return s, cleanup
}

func TestRunBatch(t *testing.T) {
	fetcher := &fakeFetcher{
		responses: map[string]map[momox.Tier]momox.Response{
			"isbn-buyable": {
				momox.TierOffer: respond(momox.TierOffer, http.StatusOK, `{"price": "1,64", "title": "X"}`),
			},
			"isbn-refused": {
				momox.TierOffer: respond(momox.TierOffer, http.StatusNotFound, ""),
			},
			// isbn-dead has no responses at all, every tier errors
		},
		rendered: true,
	}
	service, cleanup := setup(t, fetcher)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	isbns := []string{"isbn-buyable", "isbn-refused", "isbn-dead"}
	outcomes, history, err := service.Run(ctx, isbns)
	require.NoError(t, err)
	require.Empty(t, history)
	require.Len(t, outcomes, 3)

	require.Equal(t, "isbn-buyable", outcomes[0].Isbn)
	require.Equal(t, AvailabilityBuyable, outcomes[0].Availability)
	require.Equal(t, "X", outcomes[0].Title)
	require.Equal(t, "https://www.momox.de/suche/?q=isbn-buyable", outcomes[0].Url)

	require.Equal(t, AvailabilityNotBuyable, outcomes[1].Availability)

	require.Equal(t, AvailabilityUnknown, outcomes[2].Availability)
	require.NotEmpty(t, outcomes[2].Err)

	// conclusive tiers were persisted, the exhausted isbn was not
	memory, err := LoadMethodMemory(ctx, scandb.New(service.db))
	require.NoError(t, err)
	require.Equal(t, 2, memory.Len())
	tier, ok := memory.Get("isbn-buyable")
	require.True(t, ok)
	require.Equal(t, momox.TierOffer, tier)
	_, ok = memory.Get("isbn-dead")
	require.False(t, ok)
}

func TestRunDefersRememberedRenderedTier(t *testing.T) {
	page := `<html><body>Du erhältst 2,00 €</body></html>`
	fetcher := &fakeFetcher{
		responses: map[string]map[momox.Tier]momox.Response{
			"isbn-hard": {
				momox.TierRendered: respond(momox.TierRendered, http.StatusOK, page),
			},
		},
		rendered: true,
	}
	service, cleanup := setup(t, fetcher)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	// seed memory with a rendered-tier success from a previous run
	qry := scandb.New(service.db)
	err := qry.UpsertMethodMemory(ctx, scandb.UpsertMethodMemoryParams{
		Isbn: "isbn-hard",
		Tier: momox.TierRendered.String(),
	})
	require.NoError(t, err)

	outcomes, _, err := service.Run(ctx, []string{"isbn-hard"})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.Equal(t, AvailabilityBuyable, outcomes[0].Availability)

	// pass 1 must not have touched the network for it: the first
	// call belongs to pass 2 and starts at the remembered tier
	require.NotEmpty(t, fetcher.calls)
	require.Equal(t, "isbn-hard/rendered", fetcher.calls[0])
}

func TestRunWithoutRenderedTierStillConcludes(t *testing.T) {
	fetcher := &fakeFetcher{
		responses: map[string]map[momox.Tier]momox.Response{
			"isbn-x": {
				momox.TierPage: respond(momox.TierPage, http.StatusOK,
					`<html><body>Du erhältst 2,00 €</body></html>`),
			},
		},
		rendered: false,
	}
	service, cleanup := setup(t, fetcher)
	defer cleanup()

	ctx := context.Background()
	outcomes, _, err := service.Run(ctx, []string{"isbn-x", "isbn-missing"})
	require.NoError(t, err)
	require.Equal(t, AvailabilityBuyable, outcomes[0].Availability)
	require.Equal(t, AvailabilityUnknown, outcomes[1].Availability)
	for _, call := range fetcher.calls {
		require.NotContains(t, call, "/rendered")
	}

	// pass 2 has nothing to escalate to here, so the isbn pass 1
	// exhausted must not be fetched a second time
	var missing []string
	for _, call := range fetcher.calls {
		if strings.HasPrefix(call, "isbn-missing/") {
			missing = append(missing, call)
		}
	}
	require.Equal(t, []string{"isbn-missing/offer-api", "isbn-missing/page"}, missing)
}

func TestThrottlePaysDelayOnlyAfterNetworkTouch(t *testing.T) {
	const delay = 50 * time.Millisecond
	th := newThrottle(delay)
	ctx := context.Background()

	start := time.Now()
	th.wait(ctx)
	require.Less(t, time.Since(start), delay, "nothing resolved yet, no wait")

	th.touched(true)
	start = time.Now()
	th.wait(ctx)
	require.GreaterOrEqual(t, time.Since(start), delay, "a network touch pays the delay")

	th.touched(false)
	start = time.Now()
	th.wait(ctx)
	require.Less(t, time.Since(start), delay, "a memory-only deferral does not")
}

func TestRunEnforcesPolitenessDelay(t *testing.T) {
	offer := respond(momox.TierOffer, http.StatusOK, `{"price": "1,64"}`)
	fetcher := &fakeFetcher{
		responses: map[string]map[momox.Tier]momox.Response{
			"isbn-a": {momox.TierOffer: offer},
			"isbn-b": {momox.TierOffer: offer},
			"isbn-c": {momox.TierOffer: offer},
		},
		rendered: true,
	}
	result, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/scan",
		DbSchema: scandb.Schema,
	})
	defer cleanup()

	const delay = 50 * time.Millisecond
	service := NewService(result.DB, fetcher, Options{
		Heuristics: momox.DefaultHeuristics(),
		Delay:      delay,
	})

	start := time.Now()
	outcomes, _, err := service.Run(context.Background(), []string{"isbn-a", "isbn-b", "isbn-c"})
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	// three resolutions touched the network, two gaps between them
	require.GreaterOrEqual(t, time.Since(start), 2*delay)
}

func TestBaselineRoundTrip(t *testing.T) {
	service, cleanup := setup(t, &fakeFetcher{})
	defer cleanup()

	ctx := context.Background()
	now := timezone.Now()

	outcomes := []Outcome{
		{
			Isbn:         "isbn-a",
			Availability: AvailabilityBuyable,
			Price:        mustDecimal(t, "1.64"),
			Title:        "A",
		},
		{
			Isbn:         "isbn-b",
			Availability: AvailabilityNotBuyable,
			Title:        "B",
		},
		{
			Isbn:         "isbn-c",
			Availability: AvailabilityUnknown,
			Title:        "C",
			Err:          "HTTP 503",
		},
	}

	baseline := HistoryFromOutcomes(outcomes, now)
	require.NoError(t, service.SaveBaseline(ctx, baseline))

	loaded, err := service.LoadBaseline(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	require.Equal(t, HistoryEntry{
		Date:      timezone.DayKey(now),
		Available: true,
		Price:     "1.64",
		Title:     "A",
	}, loaded["isbn-a"])
	require.False(t, loaded["isbn-b"].Available)
	require.False(t, loaded["isbn-c"].Available)

	// a second save replaces the baseline wholesale
	require.NoError(t, service.SaveBaseline(ctx, HistoryFromOutcomes(outcomes[:1], now)))
	loaded, err = service.LoadBaseline(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
}
