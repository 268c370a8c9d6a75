package resource

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	authMW "possync/internal/app/server/api/http/middleware/auth"
	"possync/internal/domain/document"
)

type Handler struct {
	service    document.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service document.Servicer, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log.With(slog.String("component", "resource_handler")),
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.listOp(), h.list)
	huma.Register(api, h.getOp(), h.get)
	huma.Register(api, h.createOp(), h.create)
}

func (h *Handler) list(ctx context.Context, input *listInput) (*listOutput, error) {
	q := document.ListQuery{
		OrderBy: input.OrderBy,
		Start:   input.LimitStart,
		Limit:   input.LimitPageLength,
	}
	if input.Filters != "" {
		if err := json.Unmarshal([]byte(input.Filters), &q.Filters); err != nil {
			return nil, huma.Error400BadRequest("filters must be a JSON array of [field, operator, value]")
		}
	}
	if input.Fields != "" {
		if err := json.Unmarshal([]byte(input.Fields), &q.Fields); err != nil {
			return nil, huma.Error400BadRequest("fields must be a JSON array of strings")
		}
	}

	rows, err := h.service.List(ctx, docType(input.DocType), q)
	if err != nil {
		return nil, h.mapError(ctx, err)
	}
	if rows == nil {
		rows = []json.RawMessage{}
	}

	out := &listOutput{}
	out.Body.Data = rows
	return out, nil
}

func (h *Handler) get(ctx context.Context, input *getInput) (*docOutput, error) {
	data, err := h.service.Get(ctx, docType(input.DocType), input.Name)
	if err != nil {
		return nil, h.mapError(ctx, err)
	}

	out := &docOutput{}
	out.Body.Data = data
	return out, nil
}

func (h *Handler) create(ctx context.Context, input *createInput) (*docOutput, error) {
	if input.Body == nil {
		return nil, huma.Error400BadRequest("document body is required")
	}
	if userID, ok := authMW.GetUserID(ctx); ok {
		input.Body["owner_id"] = userID
	}

	data, err := h.service.Create(ctx, docType(input.DocType), input.Body)
	if err != nil {
		return nil, h.mapError(ctx, err)
	}

	out := &docOutput{}
	out.Body.Data = data
	return out, nil
}

// mapError переводит доменные ошибки в HTTP статусы; 417 клиент считает отказом сервера
func (h *Handler) mapError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, document.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, document.ErrUnknownDocType), errors.Is(err, document.ErrInvalidFilter):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, document.ErrValidation):
		return huma.NewError(http.StatusExpectationFailed, err.Error())
	case errors.Is(err, document.ErrDuplicate):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, context.Canceled):
		return huma.NewError(499, "request canceled")
	default:
		userID, _ := authMW.GetUserID(ctx)
		h.log.Error("resource request failed", slog.Int("user_id", userID), slog.String("error", err.Error()))
		return huma.Error500InternalServerError("internal error")
	}
}

// docType снимает экранирование с имени типа ("Sales%20Invoice")
func docType(raw string) string {
	if s, err := url.PathUnescape(raw); err == nil {
		return s
	}
	return raw
}
