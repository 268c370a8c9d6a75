package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"possync/internal/domain/sync"
)

// SessionStore открытая кассовая смена (одна строка)
type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(s *Storage) *SessionStore {
	return &SessionStore{db: s.db}
}

func (s *SessionStore) Open(ctx context.Context, sess sync.Session) error {
	if sess.OpenedAt.IsZero() {
		sess.OpenedAt = utcNow()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pos_session (id, instance_id, company_id, profile_id, warehouse_id, territory_id, price_list, user_id, opened_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET instance_id = excluded.instance_id, company_id = excluded.company_id, profile_id = excluded.profile_id,
		    warehouse_id = excluded.warehouse_id, territory_id = excluded.territory_id,
		    price_list = excluded.price_list, user_id = excluded.user_id, opened_at = excluded.opened_at
	`, sess.InstanceID, sess.CompanyID, sess.ProfileID, nullString(sess.WarehouseID), nullString(sess.TerritoryID),
		nullString(sess.PriceList), nullString(sess.UserID), sess.OpenedAt)
	if err != nil {
		return fmt.Errorf("ошибка открытия смены: %w", err)
	}
	return nil
}

func (s *SessionStore) Current(ctx context.Context) (*sync.Session, error) {
	var sess sync.Session
	var warehouse, territory, priceList, userID sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT instance_id, company_id, profile_id, warehouse_id, territory_id, price_list, user_id, opened_at
		FROM pos_session WHERE id = 1
	`).Scan(&sess.InstanceID, &sess.CompanyID, &sess.ProfileID, &warehouse, &territory, &priceList, &userID, &sess.OpenedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения смены: %w", err)
	}

	sess.WarehouseID = warehouse.String
	sess.TerritoryID = territory.String
	sess.PriceList = priceList.String
	sess.UserID = userID.String
	return &sess, nil
}

func (s *SessionStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pos_session`); err != nil {
		return fmt.Errorf("ошибка закрытия смены: %w", err)
	}
	return nil
}
