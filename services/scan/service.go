package scan

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"momox-agent/lib/scrapers/momox"
	"momox-agent/services/scan/db"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	_ "modernc.org/sqlite"
)

type Options struct {
	Heuristics momox.Heuristics
	// politeness delay between network-touching resolutions
	Delay time.Duration
}

// Service resolves a batch of isbns against momox, consulting and
// updating the persisted method memory, and hands back outcomes plus
// yesterday's history baseline for change detection.
type Service struct {
	db      *sql.DB
	qry     *db.Queries
	fetcher Fetcher
	options Options
}

func NewService(database *sql.DB, fetcher Fetcher, options Options) Service {
	return Service{
		db:      database,
		qry:     db.New(database),
		fetcher: fetcher,
		options: options,
	}
}

// Run resolves every isbn in order. two passes bound the cost of the
// rendered tier: pass 1 caps everything at the plain page tier and
// defers whatever stays inconclusive, pass 2 lets the deferred ones
// escalate all the way. with the rendered tier disabled pass 2 only
// serves isbns that were deferred on memory alone, since nothing is
// left to escalate to. method memory is flushed once at the end,
// history is returned untouched (the caller persists the new baseline
// only after the report went out).
func (s Service) Run(ctx context.Context, isbns []string) ([]Outcome, History, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()
	span.SetAttributes(attribute.Int("isbns", len(isbns)))

	memory, err := LoadMethodMemory(ctx, s.qry)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load method memory")
		return nil, nil, err
	}
	history, err := LoadHistory(ctx, s.qry)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load history")
		return nil, nil, err
	}

	resolver := Resolver{
		Fetcher:    s.fetcher,
		Heuristics: s.options.Heuristics,
		Memory:     memory,
	}

	tiers := momox.Tiers()
	cheapCap := tiers[len(tiers)-2]
	fullCap := tiers[len(tiers)-1]
	if !s.fetcher.RenderedTierAvailable() {
		fullCap = cheapCap
	}

	outcomes := make(map[string]Outcome, len(isbns))
	var deferred []string

	slog.InfoContext(ctx, "pass 1: resolving up to the page tier", "isbns", len(isbns))
	throttle := newThrottle(s.options.Delay)
	for i, isbn := range isbns {
		if remembered, ok := memory.Get(isbn); ok && remembered > cheapCap {
			// only the rendered tier ever worked for this one,
			// pass 1 would be wasted requests
			deferred = append(deferred, isbn)
			continue
		}

		throttle.wait(ctx)
		slog.InfoContext(ctx, "resolving", "pass", 1, "n", i+1, "total", len(isbns), "isbn", isbn)
		outcome, conclusive, attempts := resolver.Resolve(ctx, isbn, cheapCap)
		throttle.touched(attempts > 0)

		if conclusive {
			outcomes[isbn] = outcome
		} else if fullCap == cheapCap {
			// pass 2 has no tier pass 1 didn't already try, repeating
			// the same fetches would only double the load on the site
			outcomes[isbn] = outcome
		} else {
			deferred = append(deferred, isbn)
		}
	}

	if len(deferred) > 0 {
		slog.InfoContext(ctx, "pass 2: resolving with all tiers", "deferred", len(deferred))
	}
	throttle = newThrottle(s.options.Delay)
	for i, isbn := range deferred {
		throttle.wait(ctx)
		slog.InfoContext(ctx, "resolving", "pass", 2, "n", i+1, "total", len(deferred), "isbn", isbn)
		outcome, _, attempts := resolver.Resolve(ctx, isbn, fullCap)
		throttle.touched(attempts > 0)

		// inconclusive here means exhausted, the outcome already
		// carries availability unknown and the failure reason
		outcomes[isbn] = outcome
	}

	err = memory.Save(ctx, s.db, s.qry)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save method memory")
		return nil, nil, err
	}

	ordered := make([]Outcome, 0, len(isbns))
	for _, isbn := range isbns {
		ordered = append(ordered, outcomes[isbn])
	}
	return ordered, history, nil
}

// SaveBaseline persists the new history snapshot, called by the
// operator-facing layer once the report has actually been delivered.
func (s Service) SaveBaseline(ctx context.Context, history History) error {
	return SaveHistory(ctx, s.db, s.qry, history)
}

// LoadBaseline exposes the current persisted history, used by the
// history inspection command.
func (s Service) LoadBaseline(ctx context.Context) (History, error) {
	return LoadHistory(ctx, s.qry)
}

// throttle enforces the politeness delay between successive
// resolutions that actually touched the network. a deferral decided
// purely from method memory does not pay the delay.
type throttle struct {
	delay       time.Duration
	lastTouched bool
}

func newThrottle(delay time.Duration) *throttle {
	return &throttle{delay: delay}
}

func (t *throttle) wait(ctx context.Context) {
	if !t.lastTouched || t.delay <= 0 {
		return
	}
	select {
	case <-time.After(t.delay):
	case <-ctx.Done():
	}
}

func (t *throttle) touched(did bool) {
	t.lastTouched = did
}
