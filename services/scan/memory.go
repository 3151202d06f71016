package scan

import (
	"context"
	"database/sql"
	"log/slog"

	"momox-agent/lib/scrapers/momox"
	"momox-agent/services/scan/db"
)

// MethodMemory remembers, per isbn, the last tier that produced a
// conclusive outcome. it is loaded whole at batch start and written
// back whole at batch end, never incrementally, so an interrupted
// batch can only lose this run's updates, not corrupt older state.
type MethodMemory struct {
	entries map[string]momox.Tier
}

func LoadMethodMemory(ctx context.Context, qry *db.Queries) (*MethodMemory, error) {
	rows, err := qry.ListMethodMemory(ctx)
	if err != nil {
		return nil, err
	}

	entries := make(map[string]momox.Tier, len(rows))
	for _, row := range rows {
		tier, ok := momox.TierFromString(row.Tier)
		if !ok {
			// a tier this build no longer knows, dropping it just
			// means the isbn starts from the cheapest tier again
			slog.Warn("dropping unknown tier from method memory", "isbn", row.Isbn, "tier", row.Tier)
			continue
		}
		entries[row.Isbn] = tier
	}
	return &MethodMemory{entries: entries}, nil
}

func (m *MethodMemory) Get(isbn string) (momox.Tier, bool) {
	tier, ok := m.entries[isbn]
	return tier, ok
}

// Set records the tier that just produced a conclusive outcome. a
// success at a cheaper tier overwrites a costlier remembered one.
func (m *MethodMemory) Set(isbn string, tier momox.Tier) {
	m.entries[isbn] = tier
}

func (m *MethodMemory) Len() int {
	return len(m.entries)
}

// Save writes the whole memory back in one transaction.
func (m *MethodMemory) Save(ctx context.Context, database *sql.DB, qry *db.Queries) error {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	txqry := qry.WithTx(tx)

	for isbn, tier := range m.entries {
		err := txqry.UpsertMethodMemory(ctx, db.UpsertMethodMemoryParams{
			Isbn: isbn,
			Tier: tier.String(),
		})
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}
