package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"possync/internal/domain/sync"
)

// Created имя и отметка изменения, присвоенные сервером
type Created struct {
	Name     string `json:"name"`
	Modified string `json:"modified"`
}

// Remote API документов удаленного сервера
type Remote interface {
	FetchList(ctx context.Context, doc sync.DocType, q ListQuery) ([]json.RawMessage, error)
	// FetchByName возвращает nil без ошибки, если документа нет
	FetchByName(ctx context.Context, doc sync.DocType, name string) (json.RawMessage, error)
	CreateDoc(ctx context.Context, doc sync.DocType, payload any) (Created, error)
}

type ErrorKind int

const (
	// KindTransport сеть или 5xx; можно повторить
	KindTransport ErrorKind = iota
	// KindRejected 4xx; сервер отклонил документ
	KindRejected
	// KindAuth 401/403
	KindAuth
)

func (k ErrorKind) String() string {
	switch k {
	case KindRejected:
		return "rejected"
	case KindAuth:
		return "auth"
	default:
		return "transport"
	}
}

type RemoteError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote %s (%d): %s", e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("remote %s: %s", e.Kind, msg)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func (e *RemoteError) Retryable() bool {
	return e.Kind == KindTransport
}

func kindOf(err error) (ErrorKind, bool) {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return 0, false
}

func IsRejected(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindRejected
}

func IsAuth(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindAuth
}

func IsTransport(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindTransport
}
