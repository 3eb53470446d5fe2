package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"selfcare-backend/internal/cryptox"
	"selfcare-backend/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	_ "github.com/lib/pq"
)

// Store owns the relational persistence for orders, confirmations and
// the supporting tables. Sensitive payload columns (sdata) are sealed
// with the codec on write and opened on read; nothing above this layer
// sees ciphertext.
type Store struct {
	db    *sqlx.DB
	codec *cryptox.Codec
}

// NewStore connects to the database and wires the payload codec
func NewStore(databaseURL string, codec *cryptox.Codec) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db, codec: codec}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity
func (s *Store) Ping() error {
	return s.db.Ping()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

type orderRow struct {
	ID        int64          `db:"id"`
	Kind      string         `db:"kind"`
	ClientID  string         `db:"client_id"`
	UID       int64          `db:"uid"`
	Data      types.JSONText `db:"data"`
	SData     string         `db:"sdata"`
	Created   time.Time      `db:"created"`
	Completed *time.Time     `db:"completed"`
	Deleted   *time.Time     `db:"deleted"`
}

func (s *Store) decodeOrder(row *orderRow) (*models.Order, error) {
	order := &models.Order{
		ID:        row.ID,
		Kind:      row.Kind,
		ClientID:  row.ClientID,
		UID:       row.UID,
		Data:      map[string]any{},
		SData:     map[string]any{},
		Created:   row.Created,
		Completed: row.Completed,
		Deleted:   row.Deleted,
	}

	if len(row.Data) > 0 {
		if err := json.Unmarshal(row.Data, &order.Data); err != nil {
			return nil, fmt.Errorf("failed to decode order %d payload: %w", row.ID, err)
		}
	}
	if err := s.codec.Open(row.SData, &order.SData); err != nil {
		return nil, fmt.Errorf("failed to open order %d payload: %w", row.ID, err)
	}

	return order, nil
}

func (s *Store) encodeOrderPayload(order *models.Order) (types.JSONText, string, error) {
	data, err := json.Marshal(orEmpty(order.Data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode order payload: %w", err)
	}

	sdata, err := s.codec.Seal(orEmpty(order.SData))
	if err != nil {
		return nil, "", fmt.Errorf("failed to seal order payload: %w", err)
	}

	return data, sdata, nil
}

type confirmationRow struct {
	ID            int64          `db:"id"`
	ClientID      string         `db:"client_id"`
	ConfirmItem   string         `db:"confirm_item"`
	ConfirmItemID int64          `db:"confirm_item_id"`
	ContactPhone  string         `db:"contact_phone"`
	Data          types.JSONText `db:"data"`
	SData         string         `db:"sdata"`
	Created       time.Time      `db:"created"`
	Deleted       *time.Time     `db:"deleted"`
}

func (s *Store) decodeConfirmation(row *confirmationRow) (*models.Confirmation, error) {
	confirm := &models.Confirmation{
		ID:            row.ID,
		ClientID:      row.ClientID,
		ConfirmItem:   row.ConfirmItem,
		ConfirmItemID: row.ConfirmItemID,
		ContactPhone:  row.ContactPhone,
		Data:          map[string]any{},
		SData:         map[string]any{},
		Created:       row.Created,
		Deleted:       row.Deleted,
	}

	if len(row.Data) > 0 {
		if err := json.Unmarshal(row.Data, &confirm.Data); err != nil {
			return nil, fmt.Errorf("failed to decode confirmation %d payload: %w", row.ID, err)
		}
	}
	if err := s.codec.Open(row.SData, &confirm.SData); err != nil {
		return nil, fmt.Errorf("failed to open confirmation %d payload: %w", row.ID, err)
	}

	return confirm, nil
}

func (s *Store) encodeConfirmationPayload(confirm *models.Confirmation) (types.JSONText, string, error) {
	data, err := json.Marshal(orEmpty(confirm.Data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode confirmation payload: %w", err)
	}

	sdata, err := s.codec.Seal(orEmpty(confirm.SData))
	if err != nil {
		return nil, "", fmt.Errorf("failed to seal confirmation payload: %w", err)
	}

	return data, sdata, nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func isNoRows(err error) bool {
	return err == sql.ErrNoRows
}
