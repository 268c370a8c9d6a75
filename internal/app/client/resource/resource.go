// Package resource реализует чтение "сначала кэш, затем сеть" для pull-репозиториев.
package resource

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"possync/internal/domain/sync"
)

type Kind int

const (
	KindLoading Kind = iota
	KindSuccess
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindLoading:
		return "loading"
	case KindSuccess:
		return "success"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Resource состояние потока: Loading(local) | Success(data) | Error(message, cached)
type Resource[R any] struct {
	Kind    Kind
	Data    R
	HasData bool
	Message string
	Err     error
}

func Loading[R any](data R, has bool) Resource[R] {
	return Resource[R]{Kind: KindLoading, Data: data, HasData: has}
}

func Success[R any](data R, has bool) Resource[R] {
	return Resource[R]{Kind: KindSuccess, Data: data, HasData: has}
}

func Error[R any](err error, cached R, has bool) Resource[R] {
	return Resource[R]{Kind: KindError, Data: cached, HasData: has, Message: err.Error(), Err: err}
}

// Terminal true для Success и Error
func (r Resource[R]) Terminal() bool {
	return r.Kind != KindLoading
}

// NetworkBound читает локальный снимок, решает, идти ли в сеть, и записывает ответ.
// R форма локальных данных, Q форма удаленного ответа.
type NetworkBound[R, Q any] struct {
	// QueryLocal возвращает снимок и признак его наличия
	QueryLocal  func(ctx context.Context) (R, bool, error)
	FetchRemote func(ctx context.Context) (Q, error)
	SaveRemote  func(ctx context.Context, remote Q) error

	// необязательные
	ShouldFetch           func(local R) bool
	ResolveLocalUpdatedAt func(ctx context.Context, local R) (*time.Time, error)
	TTL                   *sync.TTL
	OnFetchFailed         func(err error)
	Log                   *slog.Logger
}

// Run запускает поток. Канал закрывается после терминального состояния.
func (nb *NetworkBound[R, Q]) Run(ctx context.Context) <-chan Resource[R] {
	out := make(chan Resource[R], 2)

	go func() {
		defer close(out)

		var (
			local R
			has   bool
		)
		defer func() {
			if rec := recover(); rec != nil {
				err := fmt.Errorf("network-bound resource panic: %v", rec)
				nb.failed(err)
				out <- Error(err, local, has)
			}
		}()

		local, has = nb.queryLocal(ctx)
		out <- Loading(local, has)

		if !nb.needFetch(ctx, local, has) {
			out <- Success(local, has)
			return
		}

		if err := nb.fetchAndSave(ctx); err != nil {
			nb.failed(err)
			out <- Error(err, local, has)
			return
		}

		fresh, ok, err := nb.QueryLocal(ctx)
		if err != nil {
			nb.failed(err)
			out <- Error(fmt.Errorf("re-read local: %w", err), local, has)
			return
		}
		out <- Success(fresh, ok)
	}()

	return out
}

// Load дочитывает поток и возвращает терминальное состояние
func (nb *NetworkBound[R, Q]) Load(ctx context.Context) Resource[R] {
	var last Resource[R]
	for r := range nb.Run(ctx) {
		last = r
	}
	return last
}

func (nb *NetworkBound[R, Q]) queryLocal(ctx context.Context) (R, bool) {
	local, has, err := nb.QueryLocal(ctx)
	if err != nil {
		nb.logger().Warn("local snapshot unavailable", slog.String("error", err.Error()))
		var zero R
		return zero, false
	}
	return local, has
}

func (nb *NetworkBound[R, Q]) needFetch(ctx context.Context, local R, has bool) bool {
	if !has {
		return true
	}
	if nb.ShouldFetch != nil && !nb.ShouldFetch(local) {
		return false
	}
	if nb.TTL == nil {
		return true
	}

	var updatedAt *time.Time
	if nb.ResolveLocalUpdatedAt != nil {
		ts, err := nb.ResolveLocalUpdatedAt(ctx, local)
		if err != nil {
			nb.logger().Warn("local timestamp unavailable", slog.String("error", err.Error()))
			return true
		}
		updatedAt = ts
	}
	return nb.TTL.IsExpired(updatedAt)
}

func (nb *NetworkBound[R, Q]) fetchAndSave(ctx context.Context) error {
	remote, err := nb.FetchRemote(ctx)
	if err != nil {
		return err
	}
	if err := nb.SaveRemote(ctx, remote); err != nil {
		return fmt.Errorf("save remote: %w", err)
	}
	return nil
}

func (nb *NetworkBound[R, Q]) failed(err error) {
	if nb.OnFetchFailed != nil {
		nb.OnFetchFailed(err)
	}
	nb.logger().Debug("fetch failed, degrading to local data", slog.String("error", err.Error()))
}

func (nb *NetworkBound[R, Q]) logger() *slog.Logger {
	if nb.Log == nil {
		return slog.Default()
	}
	return nb.Log
}
