package store

import (
	"context"
	"fmt"
	"time"

	"selfcare-backend/internal/models"
)

// uidBase keeps order UIDs out of the plain id space; external systems
// (courier, contracts) reference orders by UID.
const uidBase = 100000000

// CreateOrder persists a new order and assigns id, uid and created
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	data, sdata, err := s.encodeOrderPayload(order)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO orders (kind, client_id, data, sdata)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created`

	if err := s.db.QueryRowxContext(ctx, query,
		order.Kind, order.ClientID, data, sdata,
	).Scan(&order.ID, &order.Created); err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	order.UID = uidBase + order.ID
	if _, err := s.db.ExecContext(ctx,
		"UPDATE orders SET uid = $1 WHERE id = $2", order.UID, order.ID); err != nil {
		return fmt.Errorf("failed to assign order uid: %w", err)
	}

	return nil
}

// GetOrderByID retrieves an order by id, soft-deleted rows included.
// Returns (nil, nil) when the row does not exist.
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var row orderRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM orders WHERE id = $1", id)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.decodeOrder(&row)
}

// GetLiveOrder retrieves a non-deleted order of the given kind.
// An empty clientID skips the owner filter (flows that bind the owner
// late look up by id alone). Returns (nil, nil) when absent.
func (s *Store) GetLiveOrder(ctx context.Context, kind string, id int64, clientID string) (*models.Order, error) {
	query := "SELECT * FROM orders WHERE id = $1 AND kind = $2 AND deleted IS NULL"
	args := []any{id, kind}
	if clientID != "" {
		query += " AND client_id = $3"
		args = append(args, clientID)
	}

	var row orderRow
	err := s.db.GetContext(ctx, &row, query, args...)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.decodeOrder(&row)
}

// UpdateOrderPayload rewrites the payload columns of an order that is
// still in progress. Returns false without touching anything when the
// order is already completed or deleted, so late client retries stay
// idempotent.
func (s *Store) UpdateOrderPayload(ctx context.Context, order *models.Order) (bool, error) {
	data, sdata, err := s.encodeOrderPayload(order)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET client_id = $1, data = $2, sdata = $3
		WHERE id = $4 AND completed IS NULL AND deleted IS NULL`,
		order.ClientID, data, sdata, order.ID)
	if err != nil {
		return false, fmt.Errorf("failed to update order %d: %w", order.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// FinalizeOrder marks an order completed in a single conditional
// update. Exactly one of two racing calls wins; the loser observes
// zero affected rows and can tell "already completed" apart from
// "missing" by re-reading.
func (s *Store) FinalizeOrder(ctx context.Context, order *models.Order) (bool, error) {
	data, sdata, err := s.encodeOrderPayload(order)
	if err != nil {
		return false, err
	}

	var completed time.Time
	err = s.db.QueryRowxContext(ctx, `
		UPDATE orders SET client_id = $1, data = $2, sdata = $3, completed = NOW()
		WHERE id = $4 AND completed IS NULL AND deleted IS NULL
		RETURNING completed`,
		order.ClientID, data, sdata, order.ID,
	).Scan(&completed)
	if isNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to finalize order %d: %w", order.ID, err)
	}

	order.Completed = &completed
	return true, nil
}

// SupersedeOrders soft-deletes all in-progress orders of a kind for an
// owner, clearing the way for a replacement. Completed orders are left
// untouched.
func (s *Store) SupersedeOrders(ctx context.Context, kind, clientID string) ([]int64, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids, `
		UPDATE orders SET deleted = NOW()
		WHERE kind = $1 AND client_id = $2 AND completed IS NULL AND deleted IS NULL
		RETURNING id`,
		kind, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to supersede %s orders: %w", kind, err)
	}
	return ids, nil
}

// MarkOrderNotified records the notification timestamp in the order
// payload without disturbing the rest of it.
func (s *Store) MarkOrderNotified(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET data = jsonb_set(COALESCE(data, '{}'), '{order_sent}', to_jsonb(NOW()::text))
		WHERE id = $1`, id)
	return err
}

// GetOrdersByClientID retrieves a client's orders of one kind, newest
// first
func (s *Store) GetOrdersByClientID(ctx context.Context, kind, clientID string) ([]*models.Order, error) {
	var rows []orderRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM orders
		WHERE kind = $1 AND client_id = $2 AND deleted IS NULL
		ORDER BY created DESC`, kind, clientID)
	if err != nil {
		return nil, err
	}

	orders := make([]*models.Order, 0, len(rows))
	for i := range rows {
		order, err := s.decodeOrder(&rows[i])
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}
