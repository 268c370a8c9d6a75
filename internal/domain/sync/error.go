package sync

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrContextUnavailable = errors.New("sync context unavailable")
	ErrStateNotFound      = errors.New("sync state not found")
	ErrUpstreamNotSynced  = errors.New("upstream document not synced yet")
)

// PushError агрегированная ошибка отправки семейства документов
type PushError struct {
	DocType  DocType
	LocalIDs []string
	Errs     []error
}

func (e *PushError) Error() string {
	return fmt.Sprintf("push %s: %d failed: %s", e.DocType, len(e.LocalIDs), strings.Join(e.LocalIDs, ", "))
}

func (e *PushError) Unwrap() []error {
	return e.Errs
}
