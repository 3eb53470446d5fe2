package store

import (
	"context"
	"encoding/json"
	"fmt"

	"selfcare-backend/internal/models"

	"github.com/jmoiron/sqlx/types"
)

// LastPort retrieves the most recent porting record for a number.
// The ports table is fed by the billing synchronisation job; this
// backend only reads it for the re-port cool-off gate. Returns
// (nil, nil) when the number never ported.
func (s *Store) LastPort(ctx context.Context, number string) (*models.Port, error) {
	var port models.Port
	err := s.db.GetContext(ctx, &port,
		"SELECT * FROM ports WHERE number = $1 ORDER BY port_date DESC LIMIT 1", number)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &port, nil
}

// CreateCashback persists a new cashback tracking record
func (s *Store) CreateCashback(ctx context.Context, cashback *models.Cashback) error {
	data, err := json.Marshal(orEmpty(cashback.Data))
	if err != nil {
		return fmt.Errorf("failed to encode cashback payload: %w", err)
	}

	query := `
		INSERT INTO cashbacks (client_id, status_id, data)
		VALUES ($1, $2, $3)
		RETURNING id, created`

	if err := s.db.QueryRowxContext(ctx, query,
		cashback.ClientID, cashback.StatusID, data,
	).Scan(&cashback.ID, &cashback.Created); err != nil {
		return fmt.Errorf("failed to create cashback: %w", err)
	}
	return nil
}

// ListCashbacks retrieves a client's cashback records, newest first
func (s *Store) ListCashbacks(ctx context.Context, clientID string) ([]*models.Cashback, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, client_id, status_id, data, created
		FROM cashbacks
		WHERE client_id = $1 AND deleted IS NULL
		ORDER BY created DESC`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Cashback
	for rows.Next() {
		cashback := &models.Cashback{Data: map[string]any{}}
		var data types.JSONText
		if err := rows.Scan(&cashback.ID, &cashback.ClientID, &cashback.StatusID, &data, &cashback.Created); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &cashback.Data); err != nil {
				return nil, fmt.Errorf("failed to decode cashback %d payload: %w", cashback.ID, err)
			}
		}
		out = append(out, cashback)
	}
	return out, rows.Err()
}

// UpdateCashbackStatus moves a cashback record between open, approved
// and rejected
func (s *Store) UpdateCashbackStatus(ctx context.Context, id int64, statusID int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE cashbacks SET status_id = $1 WHERE id = $2", statusID, id)
	return err
}
