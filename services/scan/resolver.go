package scan

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"momox-agent/lib/scrapers/momox"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("momox-agent.services.scan")

// Fetcher is the slice of the momox client the resolver needs.
type Fetcher interface {
	Fetch(ctx context.Context, tier momox.Tier, isbn string) (momox.Response, error)
	SearchUrl(isbn string) string
	RenderedTierAvailable() bool
}

// Resolver walks one isbn through the tier ladder until something
// conclusive comes back.
//
// states per isbn: start -> trying(tier) -> conclusive | escalate ->
// exhausted. the starting tier comes from method memory (a cost
// optimization only, the terminal outcome does not depend on it),
// escalation walks the remaining tiers in fixed cost order, a tier is
// never tried twice within one resolution.
type Resolver struct {
	Fetcher    Fetcher
	Heuristics momox.Heuristics
	Memory     *MethodMemory
}

// Resolve runs the state machine for one isbn, trying no tier more
// expensive than maxTier. on a conclusive result the tier that produced
// it is recorded into method memory, otherwise memory is left alone
// and the returned outcome is the unknown outcome with the last
// failure reason. attempts counts network calls made.
func (r Resolver) Resolve(ctx context.Context, isbn string, maxTier momox.Tier) (outcome Outcome, conclusive bool, attempts int) {
	ctx, span := tracer.Start(ctx, "Resolve")
	defer span.End()
	span.SetAttributes(
		attribute.String("isbn", isbn),
		attribute.String("max_tier", maxTier.String()),
	)

	start, remembered := r.Memory.Get(isbn)
	if !remembered || start > maxTier {
		start = momox.Tiers()[0]
	}

	order := []momox.Tier{start}
	for _, tier := range momox.Tiers() {
		if tier == start || tier > maxTier {
			continue
		}
		order = append(order, tier)
	}

	lastReason := "no tiers attempted"
	lastTitle := isbn

	for _, tier := range order {
		attempts++
		res, err := r.Fetcher.Fetch(ctx, tier, isbn)
		if err != nil {
			// transient transport failure, same as an inconclusive
			// extraction: move on to the next tier
			slog.WarnContext(ctx, "tier fetch failed", "isbn", isbn, "tier", tier.String(), "err", err)
			lastReason = fmt.Sprintf("%v: %v", tier, err)
			continue
		}

		sig := r.Heuristics.Interpret(res, isbn)
		if sig.Title != "" {
			lastTitle = sig.Title
		}
		if !sig.Conclusive {
			if res.StatusCode != http.StatusOK {
				lastReason = fmt.Sprintf("%v: HTTP %d", tier, res.StatusCode)
			} else {
				lastReason = fmt.Sprintf("%v: no usable offer signal in response", tier)
			}
			continue
		}

		r.Memory.Set(isbn, tier)
		span.SetAttributes(attribute.String("conclusive_tier", tier.String()))

		outcome := Outcome{
			Isbn:  isbn,
			Title: sig.Title,
			Url:   r.Fetcher.SearchUrl(isbn),
		}
		if sig.Buyable {
			outcome.Availability = AvailabilityBuyable
			outcome.Price = sig.Price
		} else {
			outcome.Availability = AvailabilityNotBuyable
		}
		return outcome, true, attempts
	}

	return Outcome{
		Isbn:         isbn,
		Availability: AvailabilityUnknown,
		Title:        lastTitle,
		Url:          r.Fetcher.SearchUrl(isbn),
		Err:          lastReason,
	}, false, attempts
}
