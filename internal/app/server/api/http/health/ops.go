package health

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) pingOp() huma.Operation {
	return huma.Operation{
		OperationID: "ping",
		Method:      http.MethodGet,
		Path:        "/api/method/ping",
		Summary:     "Connectivity probe",
		Description: "Used by POS clients to detect whether the server is reachable",
		Tags:        []string{"health"},
		Middlewares: h.middleware,
	}
}
