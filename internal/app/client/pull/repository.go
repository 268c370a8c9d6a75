package pull

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"possync/internal/app/client/resource"
	"possync/internal/domain/document"
	"possync/internal/domain/sync"
)

const defaultPageSize = 500

// Table локальная таблица pull-репозитория
type Table[T any, PT Entity[T]] interface {
	Store[T, PT]
	List(ctx context.Context, scope sync.Scope) ([]PT, error)
}

// QueryFunc строит выборку для удаленного API из контекста синхронизации
type QueryFunc func(sc sync.Context) document.ListQuery

// Repository pull-репозиторий одного типа документа
type Repository[T any, PT Entity[T]] struct {
	doc      sync.DocType
	table    Table[T, PT]
	remote   document.Remote
	state    sync.StateRepository
	ttl      sync.TTL
	query    QueryFunc
	pageSize int
	log      *slog.Logger
	now      func() time.Time
}

func NewRepository[T any, PT Entity[T]](
	doc sync.DocType,
	table Table[T, PT],
	remote document.Remote,
	state sync.StateRepository,
	ttl sync.TTL,
	query QueryFunc,
	log *slog.Logger,
) *Repository[T, PT] {
	if query == nil {
		query = func(sync.Context) document.ListQuery { return document.ListQuery{} }
	}
	return &Repository[T, PT]{
		doc:      doc,
		table:    table,
		remote:   remote,
		state:    state,
		ttl:      ttl,
		query:    query,
		pageSize: defaultPageSize,
		log:      log.With(slog.String("doctype", string(doc))),
		now:      time.Now,
	}
}

func (r *Repository[T, PT]) DocType() sync.DocType {
	return r.doc
}

// Stream отдает Loading(local) и терминальное состояние. force отключает TTL.
func (r *Repository[T, PT]) Stream(ctx context.Context, sc sync.Context, force bool) <-chan resource.Resource[[]PT] {
	return r.resource(sc, force).Run(ctx)
}

// Refresh синхронизирует тип документа; без контекста ничего не делает
func (r *Repository[T, PT]) Refresh(ctx context.Context, sc sync.Context, force bool) error {
	if !sc.Available() {
		r.log.Debug("sync context unavailable, pull skipped")
		return nil
	}

	res := r.resource(sc, force).Load(ctx)
	if res.Kind == resource.KindError {
		return fmt.Errorf("pull %s: %w", r.doc, res.Err)
	}
	return nil
}

func (r *Repository[T, PT]) resource(sc sync.Context, force bool) *resource.NetworkBound[[]PT, []PT] {
	scope := sc.Scope()

	nb := &resource.NetworkBound[[]PT, []PT]{
		QueryLocal: func(ctx context.Context) ([]PT, bool, error) {
			local, err := r.table.List(ctx, scope)
			if err != nil {
				return nil, false, err
			}
			return local, len(local) > 0, nil
		},
		FetchRemote: func(ctx context.Context) ([]PT, error) {
			return r.fetchAll(ctx, sc)
		},
		SaveRemote: func(ctx context.Context, remote []PT) error {
			changed, err := UpsertFromServer[T, PT](ctx, r.table, scope, remote)
			if err != nil {
				return err
			}
			r.log.Debug("pull merged", slog.Int("received", len(remote)), slog.Bool("changed", changed))
			return r.state.MarkPulled(ctx, scope, r.doc, r.now())
		},
		OnFetchFailed: func(err error) {
			// контекст вызова мог уже истечь, состояние пишется в фоне
			if serr := r.state.MarkFailure(context.Background(), scope, r.doc, err.Error()); serr != nil {
				r.log.Warn("failed to persist pull failure", slog.String("error", serr.Error()))
			}
		},
		Log: r.log,
	}

	if !force {
		ttl := r.ttl
		nb.TTL = &ttl
		nb.ResolveLocalUpdatedAt = func(ctx context.Context, _ []PT) (*time.Time, error) {
			st, err := r.state.Get(ctx, scope, r.doc)
			if err != nil {
				return nil, err
			}
			return st.LastPullAt, nil
		}
	}

	return nb
}

// fetchAll выбирает все страницы списка
func (r *Repository[T, PT]) fetchAll(ctx context.Context, sc sync.Context) ([]PT, error) {
	q := r.query(sc)
	q.Limit = r.pageSize

	var out []PT
	for {
		page, err := r.remote.FetchList(ctx, r.doc, q)
		if err != nil {
			return nil, err
		}

		for _, raw := range page {
			item, err := decode[T, PT](raw)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", r.doc, err)
			}
			out = append(out, item)
		}

		if len(page) < q.Limit {
			return out, nil
		}
		q.Start += len(page)
	}
}

func decode[T any, PT Entity[T]](raw json.RawMessage) (PT, error) {
	item := PT(new(T))
	if err := json.Unmarshal(raw, item); err != nil {
		return nil, err
	}
	return item, nil
}
