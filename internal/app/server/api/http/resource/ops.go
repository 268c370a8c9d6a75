package resource

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) listOp() huma.Operation {
	return huma.Operation{
		OperationID: "resource-list",
		Method:      http.MethodGet,
		Path:        "/api/resource/{doctype}",
		Summary:     "Список документов",
		Tags:        []string{"resource"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) getOp() huma.Operation {
	return huma.Operation{
		OperationID: "resource-get",
		Method:      http.MethodGet,
		Path:        "/api/resource/{doctype}/{name}",
		Summary:     "Получить документ по имени",
		Tags:        []string{"resource"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) createOp() huma.Operation {
	return huma.Operation{
		OperationID:   "resource-create",
		Method:        http.MethodPost,
		Path:          "/api/resource/{doctype}",
		Summary:       "Создать документ",
		Description:   "Assigns name from the naming series and modified; repeated local_id returns the stored document",
		Tags:          []string{"resource"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusOK,
		Middlewares:   h.middleware,
	}
}
