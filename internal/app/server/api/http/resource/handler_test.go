package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"possync/internal/domain/document"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) List(ctx context.Context, doctype string, q document.ListQuery) ([]json.RawMessage, error) {
	args := m.Called(ctx, doctype, q)
	rows, _ := args.Get(0).([]json.RawMessage)
	return rows, args.Error(1)
}

func (m *MockService) Get(ctx context.Context, doctype, name string) (json.RawMessage, error) {
	args := m.Called(ctx, doctype, name)
	data, _ := args.Get(0).(json.RawMessage)
	return data, args.Error(1)
}

func (m *MockService) Create(ctx context.Context, doctype string, payload map[string]any) (json.RawMessage, error) {
	args := m.Called(ctx, doctype, payload)
	data, _ := args.Get(0).(json.RawMessage)
	return data, args.Error(1)
}

func setup(t *testing.T) (humatest.TestAPI, *MockService) {
	svc := new(MockService)
	_, api := humatest.New(t)
	NewHandler(svc, slog.Default(), huma.Middlewares{}).SetupRoutes(api)
	return api, svc
}

// dataOf достает поле data из ответа; huma добавляет к телу ссылку $schema
func dataOf(t *testing.T, body []byte) string {
	t.Helper()
	var out struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	return string(out.Data)
}

func TestHandler_List(t *testing.T) {
	api, svc := setup(t)

	expected := document.ListQuery{
		Filters: []document.Filter{document.Gte("modified", "2024-01-01 00:00:00.000000")},
		Fields:  []string{"*"},
		OrderBy: "modified asc",
		Start:   20,
		Limit:   10,
	}
	svc.On("List", mock.Anything, "Sales Invoice", expected).
		Return([]json.RawMessage{json.RawMessage(`{"name":"ACC-SINV-2024-00001"}`)}, nil)

	params := url.Values{
		"filters":           {`[["modified",">=","2024-01-01 00:00:00.000000"]]`},
		"fields":            {`["*"]`},
		"order_by":          {"modified asc"},
		"limit_start":       {"20"},
		"limit_page_length": {"10"},
	}
	resp := api.Get("/api/resource/" + url.PathEscape("Sales Invoice") + "?" + params.Encode())

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `[{"name":"ACC-SINV-2024-00001"}]`, dataOf(t, resp.Body.Bytes()))
	svc.AssertExpectations(t)
}

func TestHandler_List_EmptyIsArray(t *testing.T) {
	api, svc := setup(t)
	svc.On("List", mock.Anything, "Customer", document.ListQuery{}).Return(nil, nil)

	resp := api.Get("/api/resource/Customer")

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `[]`, dataOf(t, resp.Body.Bytes()))
}

func TestHandler_List_BadFilters(t *testing.T) {
	api, svc := setup(t)

	resp := api.Get("/api/resource/Customer?filters=" + url.QueryEscape("not-json"))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	svc.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_Get(t *testing.T) {
	api, svc := setup(t)
	svc.On("Get", mock.Anything, "POS Profile", "Main").Return(json.RawMessage(`{"name":"Main"}`), nil)
	svc.On("Get", mock.Anything, "POS Profile", "Gone").Return(nil, document.ErrNotFound)

	resp := api.Get("/api/resource/POS%20Profile/Main")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"name":"Main"}`, dataOf(t, resp.Body.Bytes()))

	resp = api.Get("/api/resource/POS%20Profile/Gone")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestHandler_Create_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "created", wantStatus: http.StatusOK},
		{name: "validation", err: fmt.Errorf("%w: items are required", document.ErrValidation), wantStatus: http.StatusExpectationFailed},
		{name: "unknown doctype", err: document.ErrUnknownDocType, wantStatus: http.StatusBadRequest},
		{name: "duplicate", err: document.ErrDuplicate, wantStatus: http.StatusConflict},
		{name: "storage failure", err: fmt.Errorf("insert: connection reset"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, svc := setup(t)
			var doc json.RawMessage
			if tt.err == nil {
				doc = json.RawMessage(`{"name":"CUST-2024-00001","modified":"2024-03-01 10:00:00.000000"}`)
			}
			svc.On("Create", mock.Anything, "Customer", mock.MatchedBy(func(p map[string]any) bool {
				return p["customer_name"] == "Ann"
			})).Return(doc, tt.err)

			resp := api.Post("/api/resource/Customer", map[string]any{"customer_name": "Ann", "local_id": "l-1"})

			assert.Equal(t, tt.wantStatus, resp.Code)
			if tt.err == nil {
				assert.Contains(t, resp.Body.String(), `"name":"CUST-2024-00001"`)
			}
		})
	}
}
