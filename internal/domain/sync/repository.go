package sync

import (
	"context"
	"time"
)

// StateRepository хранилище состояний синхронизации по (instance, company, doc_type)
type StateRepository interface {
	// Get возвращает состояние; отсутствующая строка дает нулевое State без ошибки
	Get(ctx context.Context, scope Scope, doc DocType) (State, error)
	SetInProgress(ctx context.Context, scope Scope, doc DocType, inProgress bool) error
	// MarkSuccess отметка успешной отправки очереди
	MarkSuccess(ctx context.Context, scope Scope, doc DocType, at time.Time) error
	// MarkPulled отметка успешной загрузки; только она двигает LastPullAt,
	// от которого отсчитывается TTL кэша
	MarkPulled(ctx context.Context, scope Scope, doc DocType, at time.Time) error
	MarkFailure(ctx context.Context, scope Scope, doc DocType, message string) error
	SetCounters(ctx context.Context, scope Scope, doc DocType, pending, failed int) error
	List(ctx context.Context, scope Scope) ([]State, error)
}

// BusinessContext источник текущей POS-сессии
type BusinessContext interface {
	// Current возвращает nil без ошибки, если сессия не открыта
	Current(ctx context.Context) (*Session, error)
	Clear(ctx context.Context) error
}
