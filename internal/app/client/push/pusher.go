// Package push отправляет созданные офлайн документы на сервер.
package push

import (
	"context"
	"fmt"

	"golang.org/x/exp/slog"

	"possync/internal/domain/document"
	"possync/internal/domain/sync"
)

type Entity[T any] interface {
	*T
	sync.Syncable
}

// Queue локальная очередь отправки одного семейства
type Queue[T any, PT Entity[T]] interface {
	// Pending возвращает PENDING и FAILED записи, без SYNCED и удаленных
	Pending(ctx context.Context, scope sync.Scope) ([]PT, error)
	MarkSynced(ctx context.Context, scope sync.Scope, localID, remoteName, remoteModified string) error
	MarkFailed(ctx context.Context, scope sync.Scope, localID, message string) error
	Counts(ctx context.Context, scope sync.Scope) (pending, failed int, err error)
}

// ResolveFunc подставляет имена вышестоящих документов перед отправкой
type ResolveFunc[PT any] func(ctx context.Context, scope sync.Scope, item PT) error

// Pusher отправляет очередь одного типа документа
type Pusher[T any, PT Entity[T]] struct {
	doc     sync.DocType
	queue   Queue[T, PT]
	remote  document.Remote
	resolve ResolveFunc[PT]
	log     *slog.Logger
}

func NewPusher[T any, PT Entity[T]](doc sync.DocType, queue Queue[T, PT], remote document.Remote, log *slog.Logger) *Pusher[T, PT] {
	return &Pusher[T, PT]{
		doc:    doc,
		queue:  queue,
		remote: remote,
		log:    log.With(slog.String("doctype", string(doc))),
	}
}

func (p *Pusher[T, PT]) WithResolver(fn ResolveFunc[PT]) *Pusher[T, PT] {
	p.resolve = fn
	return p
}

func (p *Pusher[T, PT]) DocType() sync.DocType {
	return p.doc
}

func (p *Pusher[T, PT]) Counts(ctx context.Context, scope sync.Scope) (int, int, error) {
	return p.queue.Counts(ctx, scope)
}

// Push отправляет все ожидающие записи. Успешные помечаются SYNCED сразу,
// упавшие FAILED; при наличии упавших возвращается *sync.PushError.
func (p *Pusher[T, PT]) Push(ctx context.Context, sc sync.Context) (int, error) {
	scope := sc.Scope()

	items, err := p.queue.Pending(ctx, scope)
	if err != nil {
		return 0, fmt.Errorf("load pending %s: %w", p.doc, err)
	}
	if len(items) == 0 {
		return 0, nil
	}

	p.log.Debug("push started", slog.Int("pending", len(items)))

	pushed := 0
	var failure *sync.PushError
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return pushed, err
		}

		localID := item.SyncMeta().LocalID
		if err := p.pushOne(ctx, scope, item); err != nil {
			p.log.Warn("push item failed", slog.String("local_id", localID), slog.String("error", err.Error()))
			if merr := p.queue.MarkFailed(ctx, scope, localID, err.Error()); merr != nil {
				return pushed, fmt.Errorf("mark failed %s: %w", localID, merr)
			}
			if failure == nil {
				failure = &sync.PushError{DocType: p.doc}
			}
			failure.LocalIDs = append(failure.LocalIDs, localID)
			failure.Errs = append(failure.Errs, err)
			continue
		}
		pushed++
	}

	p.log.Info("push finished", slog.Int("pushed", pushed), slog.Int("failed", len(items)-pushed))

	if failure != nil {
		return pushed, failure
	}
	return pushed, nil
}

func (p *Pusher[T, PT]) pushOne(ctx context.Context, scope sync.Scope, item PT) error {
	if p.resolve != nil {
		if err := p.resolve(ctx, scope, item); err != nil {
			return err
		}
	}

	created, err := p.remote.CreateDoc(ctx, p.doc, item)
	if err != nil {
		return err
	}

	m := item.SyncMeta()
	if err := p.queue.MarkSynced(ctx, scope, m.LocalID, created.Name, created.Modified); err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	m.RemoteName = created.Name
	m.RemoteModified = created.Modified
	m.SyncStatus = sync.StatusSynced
	return nil
}
