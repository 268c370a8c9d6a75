package pull

import (
	"context"
	"fmt"

	"possync/internal/domain/sync"
)

// Entity указатель на сущность со встроенной sync.Meta
type Entity[T any] interface {
	*T
	sync.Syncable
}

// Store локальная таблица, в которую сливаются серверные версии
type Store[T any, PT Entity[T]] interface {
	RemoteModified(ctx context.Context, scope sync.Scope, names []string) (map[string]string, error)
	UpsertBatch(ctx context.Context, scope sync.Scope, items []PT) error
}

// UpsertFromServer записывает новые и изменившиеся записи одной транзакцией.
// Запись с тем же remote modified пропускается. При повторе имени в пачке побеждает последняя.
func UpsertFromServer[T any, PT Entity[T]](ctx context.Context, store Store[T, PT], scope sync.Scope, incoming []PT) (bool, error) {
	if len(incoming) == 0 {
		return false, nil
	}

	latest := make(map[string]int, len(incoming))
	names := make([]string, 0, len(incoming))
	for i, item := range incoming {
		name := item.SyncMeta().RemoteName
		if name == "" {
			continue
		}
		if _, seen := latest[name]; !seen {
			names = append(names, name)
		}
		latest[name] = i
	}
	if len(names) == 0 {
		return false, nil
	}

	stored, err := store.RemoteModified(ctx, scope, names)
	if err != nil {
		return false, fmt.Errorf("lookup stored versions: %w", err)
	}

	staged := make([]PT, 0, len(names))
	for _, name := range names {
		item := incoming[latest[name]]
		if modified, ok := stored[name]; ok && modified == item.SyncMeta().RemoteModified {
			continue
		}
		staged = append(staged, item)
	}
	if len(staged) == 0 {
		return false, nil
	}

	if err := store.UpsertBatch(ctx, scope, staged); err != nil {
		return false, fmt.Errorf("upsert batch: %w", err)
	}
	return true, nil
}
