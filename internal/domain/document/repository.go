package document

import (
	"context"
	"encoding/json"
	"time"

	"possync/internal/domain/sync"
)

// Repository серверное хранилище документов
type Repository interface {
	List(ctx context.Context, doc sync.DocType, q ListQuery) ([]json.RawMessage, error)
	Get(ctx context.Context, doc sync.DocType, name string) (json.RawMessage, error)
	FindByLocalID(ctx context.Context, doc sync.DocType, localID string) (json.RawMessage, error)
	NextSequence(ctx context.Context, series string) (int64, error)
	Insert(ctx context.Context, doc sync.DocType, name, localID string, modified time.Time, data json.RawMessage) error
}
