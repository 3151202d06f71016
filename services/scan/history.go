package scan

import (
	"context"
	"database/sql"
	"time"

	"momox-agent/lib/timezone"
	"momox-agent/services/scan/db"
)

// HistoryEntry is what the previous completed run knew about an isbn,
// kept only for day-over-day change detection.
type HistoryEntry struct {
	Date      string
	Available bool
	// decimal string, empty when the item was not buyable
	Price string
	Title string
}

// History maps isbn to the previous run's summary.
type History map[string]HistoryEntry

func LoadHistory(ctx context.Context, qry *db.Queries) (History, error) {
	rows, err := qry.ListHistory(ctx)
	if err != nil {
		return nil, err
	}

	history := make(History, len(rows))
	for _, row := range rows {
		history[row.Isbn] = HistoryEntry{
			Date:      row.Date,
			Available: row.Available != 0,
			Price:     row.Price.String,
			Title:     row.Title,
		}
	}
	return history, nil
}

// HistoryFromOutcomes builds the next baseline out of this run's
// outcomes. errored outcomes are recorded as not available, same as
// the previous revisions of this agent did.
func HistoryFromOutcomes(outcomes []Outcome, now time.Time) History {
	history := make(History, len(outcomes))
	for _, o := range outcomes {
		entry := HistoryEntry{
			Date:      timezone.DayKey(now),
			Available: o.Buyable(),
			Title:     o.Title,
		}
		if o.Buyable() {
			entry.Price = o.Price.String()
		}
		history[o.Isbn] = entry
	}
	return history
}

// SaveHistory overwrites the persisted baseline wholesale, in one
// transaction. callers only do this once the run's report actually
// went out, a failed send must keep yesterday's baseline.
func SaveHistory(ctx context.Context, database *sql.DB, qry *db.Queries, history History) error {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	txqry := qry.WithTx(tx)

	if err := txqry.ClearHistory(ctx); err != nil {
		return err
	}
	for isbn, entry := range history {
		price := sql.NullString{String: entry.Price, Valid: entry.Price != ""}
		err := txqry.CreateHistory(ctx, db.CreateHistoryParams{
			Isbn:      isbn,
			Date:      entry.Date,
			Available: boolToInt(entry.Available),
			Price:     price,
			Title:     entry.Title,
		})
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
