package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"

	"possync/internal/domain/document"
	"possync/internal/domain/sync"
)

// DocumentRepository хранит документы всех типов в одной jsonb таблице
type DocumentRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewDocumentRepository(pool *pgxpool.Pool, log *slog.Logger) *DocumentRepository {
	return &DocumentRepository{
		pool: pool,
		log:  log.With("component", "document_repository"),
	}
}

func (r *DocumentRepository) List(ctx context.Context, doc sync.DocType, q document.ListQuery) ([]json.RawMessage, error) {
	query, args, err := buildListQuery(doc, q)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("failed to list documents", "doctype", doc, "error", err)
		return nil, fmt.Errorf("list %s: %w", doc, err)
	}
	defer rows.Close()

	result := make([]json.RawMessage, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", doc, err)
		}
		result = append(result, json.RawMessage(data))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", doc, err)
	}
	return result, nil
}

func (r *DocumentRepository) Get(ctx context.Context, doc sync.DocType, name string) (json.RawMessage, error) {
	return r.one(ctx, `SELECT data FROM documents WHERE doctype = $1 AND name = $2`, string(doc), name)
}

func (r *DocumentRepository) FindByLocalID(ctx context.Context, doc sync.DocType, localID string) (json.RawMessage, error) {
	return r.one(ctx, `SELECT data FROM documents WHERE doctype = $1 AND local_id = $2`, string(doc), localID)
}

func (r *DocumentRepository) one(ctx context.Context, query string, args ...any) (json.RawMessage, error) {
	var data []byte
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, document.ErrNotFound
		}
		return nil, fmt.Errorf("select document: %w", err)
	}
	return json.RawMessage(data), nil
}

// NextSequence атомарно увеличивает счетчик серии имен
func (r *DocumentRepository) NextSequence(ctx context.Context, series string) (int64, error) {
	var seq int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO naming_series (prefix, current) VALUES ($1, 1)
         ON CONFLICT (prefix) DO UPDATE SET current = naming_series.current + 1
         RETURNING current`, series).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}

func (r *DocumentRepository) Insert(ctx context.Context, doc sync.DocType, name, localID string, modified time.Time, data json.RawMessage) error {
	var local any
	if localID != "" {
		local = localID
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO documents (doctype, name, local_id, modified, data) VALUES ($1, $2, $3, $4, $5)`,
		string(doc), name, local, modified, []byte(data))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s %s", document.ErrDuplicate, doc, name)
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// buildListQuery собирает SELECT по фильтрам; имена полей уже проверены сервисом по шаблону
func buildListQuery(doc sync.DocType, q document.ListQuery) (string, []any, error) {
	var sb strings.Builder
	args := []any{string(doc)}
	sb.WriteString(`SELECT data FROM documents WHERE doctype = $1`)

	for _, f := range q.Filters {
		if err := f.Validate(); err != nil {
			return "", nil, err
		}
		cond, arg, err := filterCondition(f, len(args)+1)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" AND ")
		sb.WriteString(cond)
		args = append(args, arg)
	}

	field, desc, err := q.OrderClause()
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(" ORDER BY ")
	if field == "modified" {
		sb.WriteString("modified")
	} else {
		sb.WriteString(jsonField(field))
	}
	if desc {
		sb.WriteString(" DESC")
	} else {
		sb.WriteString(" ASC")
	}
	sb.WriteString(", name ASC")

	if q.Limit > 0 {
		args = append(args, q.Limit)
		sb.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}
	if q.Start > 0 {
		args = append(args, q.Start)
		sb.WriteString(" OFFSET $" + strconv.Itoa(len(args)))
	}
	return sb.String(), args, nil
}

func filterCondition(f document.Filter, n int) (string, any, error) {
	placeholder := "$" + strconv.Itoa(n)
	op := strings.ToLower(f.Op)

	switch op {
	case "in":
		values, ok := f.Value.([]any)
		if !ok {
			return "", nil, fmt.Errorf("%w: %q expects a list", document.ErrInvalidFilter, f.Field)
		}
		list := make([]string, 0, len(values))
		for _, v := range values {
			list = append(list, fmt.Sprint(v))
		}
		return jsonField(f.Field) + " = ANY(" + placeholder + ")", list, nil
	case "like":
		return jsonField(f.Field) + " LIKE " + placeholder, fmt.Sprint(f.Value), nil
	}

	sqlOp := f.Op
	switch v := f.Value.(type) {
	case float64:
		return "(" + jsonField(f.Field) + ")::numeric " + sqlOp + " " + placeholder, v, nil
	case bool:
		return jsonField(f.Field) + " " + sqlOp + " " + placeholder, strconv.FormatBool(v), nil
	case string:
		return jsonField(f.Field) + " " + sqlOp + " " + placeholder, v, nil
	case nil:
		if sqlOp == "=" {
			return jsonField(f.Field) + " IS NOT DISTINCT FROM " + placeholder, nil, nil
		}
		return jsonField(f.Field) + " IS DISTINCT FROM " + placeholder, nil, nil
	default:
		return "", nil, fmt.Errorf("%w: unsupported value for %q", document.ErrInvalidFilter, f.Field)
	}
}

func jsonField(field string) string {
	return "data->>'" + field + "'"
}
