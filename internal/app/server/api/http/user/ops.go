package user

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) registerOp() huma.Operation {
	return huma.Operation{
		OperationID:   "user-register",
		Method:        http.MethodPost,
		Path:          "/api/method/register",
		Summary:       "Регистрация пользователя",
		Tags:          []string{"users"},
		DefaultStatus: http.StatusOK,
		Middlewares:   h.middleware,
	}
}

func (h *Handler) tokenOp() huma.Operation {
	return huma.Operation{
		OperationID: "oauth-token",
		Method:      http.MethodPost,
		Path:        "/api/method/oauth/token",
		Summary:     "Выдача токенов (password и refresh_token grant)",
		Tags:        []string{"users"},
		Middlewares: h.middleware,
	}
}
