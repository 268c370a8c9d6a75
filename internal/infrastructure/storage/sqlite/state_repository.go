package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"possync/internal/domain/sync"
)

// StateRepository состояние синхронизации по типам документов
type StateRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewStateRepository(s *Storage) *StateRepository {
	return &StateRepository{db: s.db, now: utcNow}
}

func (r *StateRepository) Get(ctx context.Context, scope sync.Scope, doc sync.DocType) (sync.State, error) {
	st := sync.State{InstanceID: scope.InstanceID, CompanyID: scope.CompanyID, DocType: doc}

	var (
		lastSync  sql.NullTime
		lastPull  sql.NullTime
		lastError sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT last_sync_at, last_pull_at, pending_count, failed_count, in_progress, last_error, updated_at
		FROM sync_state
		WHERE instance_id = ? AND company_id = ? AND doc_type = ?
	`, scope.InstanceID, scope.CompanyID, string(doc)).Scan(
		&lastSync, &lastPull, &st.PendingCount, &st.FailedCount, &st.InProgress, &lastError, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return sync.State{}, fmt.Errorf("ошибка чтения состояния %s: %w", doc, err)
	}

	st.LastSyncAt = timePtr(lastSync)
	st.LastPullAt = timePtr(lastPull)
	st.LastError = lastError.String
	return st, nil
}

func (r *StateRepository) SetInProgress(ctx context.Context, scope sync.Scope, doc sync.DocType, inProgress bool) error {
	return r.upsert(ctx, scope, doc, `in_progress = excluded.in_progress`,
		`in_progress`, inProgress)
}

func (r *StateRepository) MarkSuccess(ctx context.Context, scope sync.Scope, doc sync.DocType, at time.Time) error {
	return r.upsert(ctx, scope, doc, `last_sync_at = excluded.last_sync_at, last_error = NULL, in_progress = 0`,
		`last_sync_at`, at.UTC())
}

// MarkPulled фиксирует успешную загрузку с сервера: двигает часы pull,
// по которым считается TTL кэша, и общую отметку last_sync_at
func (r *StateRepository) MarkPulled(ctx context.Context, scope sync.Scope, doc sync.DocType, at time.Time) error {
	at = at.UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_state (instance_id, company_id, doc_type, last_sync_at, last_pull_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (instance_id, company_id, doc_type) DO UPDATE
		SET last_sync_at = excluded.last_sync_at, last_pull_at = excluded.last_pull_at,
			last_error = NULL, in_progress = 0, updated_at = excluded.updated_at
	`, scope.InstanceID, scope.CompanyID, string(doc), at, at, r.now())
	if err != nil {
		return fmt.Errorf("ошибка обновления состояния %s: %w", doc, err)
	}
	return nil
}

func (r *StateRepository) MarkFailure(ctx context.Context, scope sync.Scope, doc sync.DocType, message string) error {
	return r.upsert(ctx, scope, doc, `last_error = excluded.last_error, in_progress = 0`,
		`last_error`, message)
}

func (r *StateRepository) SetCounters(ctx context.Context, scope sync.Scope, doc sync.DocType, pending, failed int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_state (instance_id, company_id, doc_type, pending_count, failed_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (instance_id, company_id, doc_type) DO UPDATE
		SET pending_count = excluded.pending_count, failed_count = excluded.failed_count, updated_at = excluded.updated_at
	`, scope.InstanceID, scope.CompanyID, string(doc), pending, failed, r.now())
	if err != nil {
		return fmt.Errorf("ошибка обновления состояния %s: %w", doc, err)
	}
	return nil
}

func (r *StateRepository) List(ctx context.Context, scope sync.Scope) ([]sync.State, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT doc_type, last_sync_at, last_pull_at, pending_count, failed_count, in_progress, last_error, updated_at
		FROM sync_state
		WHERE instance_id = ? AND company_id = ?
		ORDER BY doc_type
	`, scope.InstanceID, scope.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения состояния: %w", err)
	}
	defer rows.Close()

	var out []sync.State
	for rows.Next() {
		st := sync.State{InstanceID: scope.InstanceID, CompanyID: scope.CompanyID}
		var (
			doc       string
			lastSync  sql.NullTime
			lastPull  sql.NullTime
			lastError sql.NullString
		)
		if err := rows.Scan(&doc, &lastSync, &lastPull, &st.PendingCount, &st.FailedCount, &st.InProgress, &lastError, &st.UpdatedAt); err != nil {
			return nil, err
		}
		st.DocType = sync.DocType(doc)
		st.LastError = lastError.String
		st.LastSyncAt = timePtr(lastSync)
		st.LastPullAt = timePtr(lastPull)
		out = append(out, st)
	}
	return out, rows.Err()
}

// upsert вставляет строку состояния с одной колонкой либо обновляет существующую
func (r *StateRepository) upsert(ctx context.Context, scope sync.Scope, doc sync.DocType, set, column string, value any) error {
	query := fmt.Sprintf(`
		INSERT INTO sync_state (instance_id, company_id, doc_type, %s, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (instance_id, company_id, doc_type) DO UPDATE
		SET %s, updated_at = excluded.updated_at
	`, column, set)

	if _, err := r.db.ExecContext(ctx, query, scope.InstanceID, scope.CompanyID, string(doc), value, r.now()); err != nil {
		return fmt.Errorf("ошибка обновления состояния %s: %w", doc, err)
	}
	return nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	ts := t.Time
	return &ts
}
