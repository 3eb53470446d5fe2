package store

import (
	"context"
	"fmt"

	"selfcare-backend/internal/models"
)

// CreateConfirmation persists a new confirmation and assigns id and
// created
func (s *Store) CreateConfirmation(ctx context.Context, confirm *models.Confirmation) error {
	data, sdata, err := s.encodeConfirmationPayload(confirm)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO confirmations (client_id, confirm_item, confirm_item_id, contact_phone, data, sdata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created`

	if err := s.db.QueryRowxContext(ctx, query,
		confirm.ClientID, confirm.ConfirmItem, confirm.ConfirmItemID,
		confirm.ContactPhone, data, sdata,
	).Scan(&confirm.ID, &confirm.Created); err != nil {
		return fmt.Errorf("failed to create confirmation: %w", err)
	}

	return nil
}

// LatestLiveConfirmation retrieves the most recent non-deleted
// confirmation for a binding. confirmID and itemID are optional
// narrowing filters; at least one must be set. Returns (nil, nil)
// when nothing matches.
func (s *Store) LatestLiveConfirmation(ctx context.Context, item string, itemID, confirmID int64) (*models.Confirmation, error) {
	if itemID == 0 && confirmID == 0 {
		return nil, nil
	}

	query := "SELECT * FROM confirmations WHERE confirm_item = $1 AND deleted IS NULL"
	args := []any{item}
	if confirmID != 0 {
		args = append(args, confirmID)
		query += fmt.Sprintf(" AND id = $%d", len(args))
	}
	if itemID != 0 {
		args = append(args, itemID)
		query += fmt.Sprintf(" AND confirm_item_id = $%d", len(args))
	}
	query += " ORDER BY created DESC LIMIT 1"

	var row confirmationRow
	err := s.db.GetContext(ctx, &row, query, args...)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.decodeConfirmation(&row)
}

// UpdateConfirmationPayload rewrites the payload columns (attempt
// counters, submitted value, delivery log) of a confirmation.
func (s *Store) UpdateConfirmationPayload(ctx context.Context, confirm *models.Confirmation) error {
	data, sdata, err := s.encodeConfirmationPayload(confirm)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE confirmations SET data = $1, sdata = $2 WHERE id = $3`,
		data, sdata, confirm.ID)
	if err != nil {
		return fmt.Errorf("failed to update confirmation %d: %w", confirm.ID, err)
	}
	return nil
}

// SoftDeleteConfirmation consumes a confirmation so its code cannot be
// replayed
func (s *Store) SoftDeleteConfirmation(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE confirmations SET deleted = NOW() WHERE id = $1 AND deleted IS NULL", id)
	return err
}

// SupersedeConfirmations invalidates all live confirmations for an
// order binding before a fresh code is issued
func (s *Store) SupersedeConfirmations(ctx context.Context, item string, itemID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE confirmations SET deleted = NOW()
		WHERE confirm_item = $1 AND confirm_item_id = $2 AND deleted IS NULL`,
		item, itemID)
	return err
}

// SupersedeClientConfirmations invalidates live confirmations bound to
// a bare contact channel rather than an order (the standalone phone
// confirmation flow).
func (s *Store) SupersedeClientConfirmations(ctx context.Context, item, clientID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE confirmations SET deleted = NOW()
		WHERE confirm_item = $1 AND client_id = $2 AND deleted IS NULL`,
		item, clientID)
	return err
}
