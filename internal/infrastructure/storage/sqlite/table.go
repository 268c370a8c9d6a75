package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"possync/internal/domain/sync"
)

const (
	selectColumns = `local_id, remote_name, remote_modified, sync_status, is_deleted, last_error, payload, created_at, updated_at, synced_at`
	lookupChunk   = 500
)

// Entity указатель на сущность со встроенной sync.Meta
type Entity[T any] interface {
	*T
	SyncMeta() *sync.Meta
}

// Table DAO одной таблицы синхронизируемых сущностей.
// Доменные поля хранятся в payload (JSON), служебные поля Meta в отдельных колонках.
type Table[T any, PT Entity[T]] struct {
	db       *sql.DB
	name     string
	doc      sync.DocType
	parentOf func(PT) string
	now      func() time.Time
}

func NewTable[T any, PT Entity[T]](s *Storage, name string, doc sync.DocType) *Table[T, PT] {
	return &Table[T, PT]{
		db:   s.db,
		name: name,
		doc:  doc,
		now:  utcNow,
	}
}

// WithParent задает извлечение родителя (для дочерних таблиц)
func (t *Table[T, PT]) WithParent(fn func(PT) string) *Table[T, PT] {
	t.parentOf = fn
	return t
}

func (t *Table[T, PT]) DocType() sync.DocType {
	return t.doc
}

// Insert сохраняет запись, созданную офлайн: статус PENDING, без remote_name
func (t *Table[T, PT]) Insert(ctx context.Context, scope sync.Scope, item PT) error {
	m := item.SyncMeta()
	if m.LocalID == "" {
		m.LocalID = uuid.NewString()
	}
	now := t.now()
	m.SyncStatus = sync.StatusPending
	m.CreatedAt = now
	m.UpdatedAt = now

	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("ошибка сериализации %s: %w", t.doc, err)
	}

	_, err = t.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (instance_id, company_id, local_id, remote_name, remote_modified, sync_status,
		                is_deleted, parent, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)
	`, t.name), scope.InstanceID, scope.CompanyID, m.LocalID, nullString(m.RemoteName), nullString(m.RemoteModified),
		m.SyncStatus, nullString(t.parent(item)), string(payload), now, now)
	if err != nil {
		return fmt.Errorf("ошибка сохранения %s: %w", t.doc, err)
	}
	return nil
}

// RemoteModified возвращает сохраненные remote_modified для переданных имен
func (t *Table[T, PT]) RemoteModified(ctx context.Context, scope sync.Scope, names []string) (map[string]string, error) {
	out := make(map[string]string, len(names))

	for start := 0; start < len(names); start += lookupChunk {
		part := names[start:min(start+lookupChunk, len(names))]

		args := make([]any, 0, len(part)+2)
		args = append(args, scope.InstanceID, scope.CompanyID)
		for _, n := range part {
			args = append(args, n)
		}

		rows, err := t.db.QueryContext(ctx, fmt.Sprintf(`
			SELECT remote_name, COALESCE(remote_modified, '')
			FROM %s
			WHERE instance_id = ? AND company_id = ? AND remote_name IN (%s)
		`, t.name, placeholders(len(part))), args...)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения %s: %w", t.doc, err)
		}

		for rows.Next() {
			var name, modified string
			if err := rows.Scan(&name, &modified); err != nil {
				rows.Close()
				return nil, fmt.Errorf("ошибка чтения %s: %w", t.doc, err)
			}
			out[name] = modified
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// UpsertBatch записывает серверные версии одной транзакцией.
// Запись ищется по remote_name, затем по local_id; иначе вставляется новая.
func (t *Table[T, PT]) UpsertBatch(ctx context.Context, scope sync.Scope, items []PT) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := t.now()
	for _, item := range items {
		if err := t.upsertOne(ctx, tx, scope, item, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

func (t *Table[T, PT]) upsertOne(ctx context.Context, tx *sql.Tx, scope sync.Scope, item PT, now time.Time) error {
	m := item.SyncMeta()

	localID, err := t.lookupLocalID(ctx, tx, scope, m)
	exists := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if exists {
		m.LocalID = localID
	} else if m.LocalID == "" {
		m.LocalID = uuid.NewString()
	}

	m.SyncStatus = sync.StatusSynced
	m.LastError = ""
	m.UpdatedAt = now
	m.SyncedAt = &now

	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("ошибка сериализации %s: %w", t.doc, err)
	}

	if exists {
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`
			UPDATE %s
			SET remote_name = ?, remote_modified = ?, sync_status = ?, is_deleted = ?, parent = ?,
			    last_error = NULL, payload = ?, updated_at = ?, synced_at = ?
			WHERE instance_id = ? AND company_id = ? AND local_id = ?
		`, t.name), nullString(m.RemoteName), nullString(m.RemoteModified), m.SyncStatus, m.IsDeleted,
			nullString(t.parent(item)), string(payload), now, now, scope.InstanceID, scope.CompanyID, m.LocalID)
	} else {
		m.CreatedAt = now
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`
			INSERT INTO %s (instance_id, company_id, local_id, remote_name, remote_modified, sync_status,
			                is_deleted, parent, payload, created_at, updated_at, synced_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, t.name), scope.InstanceID, scope.CompanyID, m.LocalID, nullString(m.RemoteName), nullString(m.RemoteModified),
			m.SyncStatus, m.IsDeleted, nullString(t.parent(item)), string(payload), now, now, now)
	}
	if err != nil {
		return fmt.Errorf("ошибка сохранения %s %s: %w", t.doc, m.RemoteName, err)
	}
	return nil
}

func (t *Table[T, PT]) lookupLocalID(ctx context.Context, tx *sql.Tx, scope sync.Scope, m *sync.Meta) (string, error) {
	var localID string

	if m.RemoteName != "" {
		err := tx.QueryRowContext(ctx, fmt.Sprintf(
			`SELECT local_id FROM %s WHERE instance_id = ? AND company_id = ? AND remote_name = ?`, t.name),
			scope.InstanceID, scope.CompanyID, m.RemoteName).Scan(&localID)
		if err == nil {
			return localID, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("ошибка поиска %s: %w", t.doc, err)
		}
	}

	if m.LocalID != "" {
		err := tx.QueryRowContext(ctx, fmt.Sprintf(
			`SELECT local_id FROM %s WHERE instance_id = ? AND company_id = ? AND local_id = ?`, t.name),
			scope.InstanceID, scope.CompanyID, m.LocalID).Scan(&localID)
		if err == nil {
			return localID, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("ошибка поиска %s: %w", t.doc, err)
		}
	}

	return "", ErrNotFound
}

// Pending записи к отправке: PENDING и FAILED, без удаленных, в порядке создания
func (t *Table[T, PT]) Pending(ctx context.Context, scope sync.Scope) ([]PT, error) {
	return t.query(ctx, `
		WHERE instance_id = ? AND company_id = ? AND is_deleted = 0 AND sync_status IN (?, ?)
		ORDER BY created_at, local_id
	`, scope.InstanceID, scope.CompanyID, sync.StatusPending, sync.StatusFailed)
}

func (t *Table[T, PT]) MarkSynced(ctx context.Context, scope sync.Scope, localID, remoteName, remoteModified string) error {
	now := t.now()
	return t.exec(ctx, `
		UPDATE %s
		SET remote_name = ?, remote_modified = ?, sync_status = ?, last_error = NULL, updated_at = ?, synced_at = ?
		WHERE instance_id = ? AND company_id = ? AND local_id = ?
	`, remoteName, nullString(remoteModified), sync.StatusSynced, now, now, scope.InstanceID, scope.CompanyID, localID)
}

func (t *Table[T, PT]) MarkFailed(ctx context.Context, scope sync.Scope, localID, message string) error {
	return t.exec(ctx, `
		UPDATE %s
		SET sync_status = ?, last_error = ?, updated_at = ?
		WHERE instance_id = ? AND company_id = ? AND local_id = ?
	`, sync.StatusFailed, message, t.now(), scope.InstanceID, scope.CompanyID, localID)
}

// Counts количество ожидающих и упавших записей
func (t *Table[T, PT]) Counts(ctx context.Context, scope sync.Scope) (pending, failed int, err error) {
	err = t.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COALESCE(SUM(CASE WHEN sync_status = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN sync_status = ? THEN 1 ELSE 0 END), 0)
		FROM %s
		WHERE instance_id = ? AND company_id = ? AND is_deleted = 0
	`, t.name), sync.StatusPending, sync.StatusFailed, scope.InstanceID, scope.CompanyID).Scan(&pending, &failed)
	if err != nil {
		return 0, 0, fmt.Errorf("ошибка подсчета %s: %w", t.doc, err)
	}
	return pending, failed, nil
}

func (t *Table[T, PT]) Get(ctx context.Context, scope sync.Scope, localID string) (PT, error) {
	return t.one(ctx, `WHERE instance_id = ? AND company_id = ? AND local_id = ?`,
		scope.InstanceID, scope.CompanyID, localID)
}

func (t *Table[T, PT]) GetByRemoteName(ctx context.Context, scope sync.Scope, name string) (PT, error) {
	return t.one(ctx, `WHERE instance_id = ? AND company_id = ? AND remote_name = ?`,
		scope.InstanceID, scope.CompanyID, name)
}

func (t *Table[T, PT]) List(ctx context.Context, scope sync.Scope) ([]PT, error) {
	return t.query(ctx, `
		WHERE instance_id = ? AND company_id = ? AND is_deleted = 0
		ORDER BY COALESCE(remote_name, local_id)
	`, scope.InstanceID, scope.CompanyID)
}

func (t *Table[T, PT]) ListByParent(ctx context.Context, scope sync.Scope, parent string) ([]PT, error) {
	return t.query(ctx, `
		WHERE instance_id = ? AND company_id = ? AND parent = ? AND is_deleted = 0
		ORDER BY COALESCE(remote_name, local_id)
	`, scope.InstanceID, scope.CompanyID, parent)
}

func (t *Table[T, PT]) Count(ctx context.Context, scope sync.Scope) (int, error) {
	return t.count(ctx, `WHERE instance_id = ? AND company_id = ? AND is_deleted = 0`, scope.InstanceID, scope.CompanyID)
}

func (t *Table[T, PT]) CountByParent(ctx context.Context, scope sync.Scope, parent string) (int, error) {
	return t.count(ctx, `WHERE instance_id = ? AND company_id = ? AND parent = ? AND is_deleted = 0`,
		scope.InstanceID, scope.CompanyID, parent)
}

// LastUpdated время последней записи в таблице для области
func (t *Table[T, PT]) LastUpdated(ctx context.Context, scope sync.Scope) (*time.Time, error) {
	var last sql.NullString
	err := t.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT MAX(synced_at) FROM %s WHERE instance_id = ? AND company_id = ?`, t.name),
		scope.InstanceID, scope.CompanyID).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения %s: %w", t.doc, err)
	}
	if !last.Valid || last.String == "" {
		return nil, nil
	}
	ts, err := parseTime(last.String)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

func (t *Table[T, PT]) count(ctx context.Context, where string, args ...any) (int, error) {
	var n int
	err := t.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s `, t.name)+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчета %s: %w", t.doc, err)
	}
	return n, nil
}

func (t *Table[T, PT]) exec(ctx context.Context, query string, args ...any) error {
	res, err := t.db.ExecContext(ctx, fmt.Sprintf(query, t.name), args...)
	if err != nil {
		return fmt.Errorf("ошибка обновления %s: %w", t.doc, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *Table[T, PT]) one(ctx context.Context, where string, args ...any) (PT, error) {
	row := t.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM %s `, selectColumns, t.name)+where, args...)
	item, err := t.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return item, err
}

func (t *Table[T, PT]) query(ctx context.Context, where string, args ...any) ([]PT, error) {
	rows, err := t.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM %s `, selectColumns, t.name)+where, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения %s: %w", t.doc, err)
	}
	defer rows.Close()

	var out []PT
	for rows.Next() {
		item, err := t.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (t *Table[T, PT]) scan(s scanner) (PT, error) {
	var (
		localID        string
		remoteName     sql.NullString
		remoteModified sql.NullString
		status         string
		deleted        bool
		lastError      sql.NullString
		payload        string
		createdAt      time.Time
		updatedAt      time.Time
		syncedAt       sql.NullTime
	)

	if err := s.Scan(&localID, &remoteName, &remoteModified, &status, &deleted, &lastError,
		&payload, &createdAt, &updatedAt, &syncedAt); err != nil {
		return nil, err
	}

	item := PT(new(T))
	if err := json.Unmarshal([]byte(payload), item); err != nil {
		return nil, fmt.Errorf("ошибка парсинга %s %s: %w", t.doc, localID, err)
	}

	m := item.SyncMeta()
	m.LocalID = localID
	m.RemoteName = remoteName.String
	m.RemoteModified = remoteModified.String
	m.SyncStatus = sync.Status(status)
	m.IsDeleted = deleted
	m.LastError = lastError.String
	m.CreatedAt = createdAt
	m.UpdatedAt = updatedAt
	m.SyncedAt = nil
	if syncedAt.Valid {
		ts := syncedAt.Time
		m.SyncedAt = &ts
	}
	return item, nil
}

func (t *Table[T, PT]) parent(item PT) string {
	if t.parentOf == nil {
		return ""
	}
	return t.parentOf(item)
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// parseTime разбирает строковое время в форматах, которые пишет go-sqlite3
func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05",
	} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("неизвестный формат времени: %q", s)
}
