package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/freeeve/conquest/internal/model"
)

// StateRepo stores engine snapshots and the append-only action log.
type StateRepo struct {
	db *sql.DB
}

// NewStateRepo creates a StateRepo.
func NewStateRepo(db *sql.DB) *StateRepo {
	return &StateRepo{db: db}
}

// SaveSnapshot upserts the latest state of a game. A snapshot older than
// the stored one is ignored.
func (r *StateRepo) SaveSnapshot(ctx context.Context, snap model.Snapshot) error {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO game_states (game_id, version, status, state, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (game_id) DO UPDATE
		 SET version = EXCLUDED.version, status = EXCLUDED.status, state = EXCLUDED.state, updated_at = EXCLUDED.updated_at
		 WHERE game_states.version < EXCLUDED.version`,
		snap.GameID, snap.Version, snap.Status, []byte(snap.State), snap.UpdatedAt,
	); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the stored state of a game, or nil, nil if none exists.
func (r *StateRepo) LatestSnapshot(ctx context.Context, gameID string) (*model.Snapshot, error) {
	var s model.Snapshot
	var state []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT game_id, version, status, state, updated_at FROM game_states WHERE game_id = $1`, gameID,
	).Scan(&s.GameID, &s.Version, &s.Status, &state, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	s.State = state
	return &s, nil
}

// AppendActions inserts log records in one transaction. Records already
// stored under the same sequence number are skipped.
func (r *StateRepo) AppendActions(ctx context.Context, records []model.ActionRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO action_log (game_id, seq, id, type, player_id, data, hash_before, hash_after, at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (game_id, seq) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare append: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var data any
		if len(rec.Data) > 0 {
			data = []byte(rec.Data)
		}
		if _, err := stmt.ExecContext(ctx, rec.GameID, rec.Seq, rec.ID, rec.Type, rec.PlayerID,
			data, rec.HashBefore, rec.HashAfter, rec.At); err != nil {
			return fmt.Errorf("append action %d: %w", rec.Seq, err)
		}
	}
	return tx.Commit()
}

// ListActions returns up to limit records with seq greater than afterSeq, in order.
func (r *StateRepo) ListActions(ctx context.Context, gameID string, afterSeq int64, limit int) ([]model.ActionRecord, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT game_id, seq, id, type, player_id, data, hash_before, hash_after, at
		 FROM action_log WHERE game_id = $1 AND seq > $2 ORDER BY seq LIMIT $3`,
		gameID, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var records []model.ActionRecord
	for rows.Next() {
		var rec model.ActionRecord
		var data []byte
		if err := rows.Scan(&rec.GameID, &rec.Seq, &rec.ID, &rec.Type, &rec.PlayerID,
			&data, &rec.HashBefore, &rec.HashAfter, &rec.At); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		rec.Data = data
		records = append(records, rec)
	}
	return records, rows.Err()
}
