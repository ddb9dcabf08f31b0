package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"TxStream/internal/core"
	"TxStream/internal/ledger"
	"TxStream/internal/money"
)

// SnapshotStore persists the final client snapshots of a run to Postgres.
// Amounts are stored as BIGINT minor units so the conservation invariant
// stays exactly checkable in SQL.
type SnapshotStore struct {
	db *sql.DB
}

func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// SaveRun writes a run summary plus one row per client snapshot in a single
// transaction. Re-saving the same run ID replaces its snapshot rows, so the
// periodic persist in serve mode is idempotent per run.
func (s *SnapshotStore) SaveRun(ctx context.Context, runID uuid.UUID, summary core.Summary, snaps []ledger.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO txstream.runs (run_id, records_processed, records_skipped, clients, locked_accounts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id) DO UPDATE SET
			records_processed = EXCLUDED.records_processed,
			records_skipped   = EXCLUDED.records_skipped,
			clients           = EXCLUDED.clients,
			locked_accounts   = EXCLUDED.locked_accounts,
			created_at        = EXCLUDED.created_at`,
		runID, int64(summary.Processed), int64(summary.Skipped),
		summary.Clients, summary.Locked, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", runID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM txstream.client_snapshots WHERE run_id = $1`, runID,
	); err != nil {
		return fmt.Errorf("clear snapshots for run %s: %w", runID, err)
	}

	if len(snaps) > 0 {
		if err := insertSnapshots(ctx, tx, runID, snaps); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// insertSnapshots uses a multi-row INSERT; portable and fast enough for the
// snapshot set sizes here (one row per client).
func insertSnapshots(ctx context.Context, tx *sql.Tx, runID uuid.UUID, snaps []ledger.Snapshot) error {
	query := `INSERT INTO txstream.client_snapshots
		(run_id, client_id, available, held, total, locked)
		VALUES `

	values := make([]string, 0, len(snaps))
	args := make([]interface{}, 0, len(snaps)*6)

	for i, snap := range snaps {
		base := i * 6
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6,
		))
		args = append(args,
			runID, int64(snap.ClientID),
			snap.Available.MinorUnits(), snap.Held.MinorUnits(),
			snap.Total.MinorUnits(), snap.Locked,
		)
	}

	query += strings.Join(values, ", ")

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %d snapshots: %w", len(snaps), err)
	}
	return nil
}

// LoadRun reads back a run's snapshots ordered by client ID.
func (s *SnapshotStore) LoadRun(ctx context.Context, runID uuid.UUID) ([]ledger.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT client_id, available, held, total, locked
		FROM txstream.client_snapshots
		WHERE run_id = $1
		ORDER BY client_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots for run %s: %w", runID, err)
	}
	defer rows.Close()

	var snaps []ledger.Snapshot
	for rows.Next() {
		var clientID int64
		var available, held, total int64
		var locked bool
		if err := rows.Scan(&clientID, &available, &held, &total, &locked); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		snaps = append(snaps, ledger.Snapshot{
			ClientID:  uint16(clientID),
			Available: money.FromMinorUnits(available),
			Held:      money.FromMinorUnits(held),
			Total:     money.FromMinorUnits(total),
			Locked:    locked,
		})
	}
	return snaps, rows.Err()
}
