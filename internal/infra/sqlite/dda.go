package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/piucane/piucane/internal/domain"
)

// ─── DDA State Documents ────────────────────────────────────────────────────

// GetDDAState loads a user's difficulty record. Returns nil if absent.
func (d *DB) GetDDAState(ctx context.Context, userID string) (*domain.DDAState, error) {
	var doc string
	err := d.db.QueryRowContext(ctx,
		`SELECT document FROM dda_states WHERE user_id = ?`, userID).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var s domain.DDAState
	if err := json.Unmarshal([]byte(doc), &s); err != nil {
		return nil, fmt.Errorf("decode dda state %s: %w", userID, err)
	}
	return &s, nil
}

// SaveDDAState upserts a user's difficulty record.
func (d *DB) SaveDDAState(ctx context.Context, s domain.DDAState) error {
	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode dda state: %w", err)
	}
	updatedAt := s.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err = d.db.ExecContext(ctx,
		`INSERT INTO dda_states (user_id, document, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET document=excluded.document, updated_at=excluded.updated_at`,
		s.UserID, string(doc), updatedAt.Unix(),
	)
	return err
}
