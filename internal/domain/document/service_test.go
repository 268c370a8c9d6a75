package document

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"possync/internal/domain/sync"
)

// MockRepository is a mock implementation of the Repository interface for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) List(ctx context.Context, doc sync.DocType, q ListQuery) ([]json.RawMessage, error) {
	args := m.Called(ctx, doc, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]json.RawMessage), args.Error(1)
}

func (m *MockRepository) Get(ctx context.Context, doc sync.DocType, name string) (json.RawMessage, error) {
	args := m.Called(ctx, doc, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockRepository) FindByLocalID(ctx context.Context, doc sync.DocType, localID string) (json.RawMessage, error) {
	args := m.Called(ctx, doc, localID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockRepository) NextSequence(ctx context.Context, series string) (int64, error) {
	args := m.Called(ctx, series)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) Insert(ctx context.Context, doc sync.DocType, name, localID string, modified time.Time, data json.RawMessage) error {
	args := m.Called(ctx, doc, name, localID, modified, data)
	return args.Error(0)
}

func newTestService(repo Repository) *Service {
	s := NewService(repo, slog.Default())
	s.now = func() time.Time { return time.Date(2025, 4, 2, 10, 30, 0, 0, time.UTC) }
	return s
}

func invoicePayload() map[string]any {
	return map[string]any{
		"local_id": "inv-1",
		"customer": "CUST-2025-00001",
		"company":  "ACME",
		"items": []any{
			map[string]any{"item_code": "COFFEE", "qty": "2", "rate": "3.50"},
		},
	}
}

func TestService_Create_AssignsSeriesName(t *testing.T) {
	repo := new(MockRepository)
	s := newTestService(repo)

	repo.On("FindByLocalID", mock.Anything, sync.DocSalesInvoice, "inv-1").Return(nil, ErrNotFound)
	repo.On("NextSequence", mock.Anything, "ACC-SINV-2025-").Return(int64(12), nil)
	repo.On("Insert", mock.Anything, sync.DocSalesInvoice, "ACC-SINV-2025-00012", "inv-1", mock.AnythingOfType("time.Time"), mock.Anything).Return(nil)

	data, err := s.Create(context.Background(), "Sales Invoice", invoicePayload())
	require.NoError(t, err)

	var created Created
	require.NoError(t, json.Unmarshal(data, &created))
	assert.Equal(t, "ACC-SINV-2025-00012", created.Name)
	assert.Equal(t, "2025-04-02 10:30:00.000000", created.Modified)
	repo.AssertExpectations(t)
}

func TestService_Create_IdempotentByLocalID(t *testing.T) {
	repo := new(MockRepository)
	s := newTestService(repo)

	existing := json.RawMessage(`{"name":"ACC-SINV-2025-00003","modified":"2025-04-01 09:00:00.000000"}`)
	repo.On("FindByLocalID", mock.Anything, sync.DocSalesInvoice, "inv-1").Return(existing, nil)

	data, err := s.Create(context.Background(), "Sales Invoice", invoicePayload())
	require.NoError(t, err)
	assert.JSONEq(t, string(existing), string(data))
	repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Create_Validation(t *testing.T) {
	tests := []struct {
		name    string
		doctype string
		payload map[string]any
		wantErr error
	}{
		{name: "unknown doctype", doctype: "Journal Entry", payload: map[string]any{}, wantErr: ErrUnknownDocType},
		{name: "customer without name", doctype: "Customer", payload: map[string]any{}, wantErr: ErrValidation},
		{name: "invoice without items", doctype: "Sales Invoice", payload: map[string]any{"customer": "c", "company": "ACME"}, wantErr: ErrValidation},
		{name: "invoice with zero qty", doctype: "Sales Invoice", payload: map[string]any{
			"customer": "c", "company": "ACME",
			"items": []any{map[string]any{"item_code": "X", "qty": 0.0}},
		}, wantErr: ErrValidation},
		{name: "payment without amount", doctype: "Payment Entry", payload: map[string]any{
			"party": "c", "company": "ACME", "mode_of_payment": "Cash",
		}, wantErr: ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			_, err := newTestService(repo).Create(context.Background(), tt.doctype, tt.payload)
			assert.ErrorIs(t, err, tt.wantErr)
			repo.AssertExpectations(t)
		})
	}
}

func TestService_Create_NameFromField(t *testing.T) {
	repo := new(MockRepository)
	s := newTestService(repo)

	repo.On("Insert", mock.Anything, sync.DocItem, "COFFEE", "", mock.AnythingOfType("time.Time"), mock.Anything).Return(nil)

	_, err := s.Create(context.Background(), "Item", map[string]any{"item_code": "COFFEE", "item_name": "Coffee"})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestService_List(t *testing.T) {
	repo := new(MockRepository)
	s := newTestService(repo)

	q := ListQuery{Filters: []Filter{Eq("company", "ACME")}}
	expected := ListQuery{Filters: q.Filters, Limit: maxPageLength}
	repo.On("List", mock.Anything, sync.DocCustomer, expected).Return([]json.RawMessage{json.RawMessage(`{}`)}, nil)

	rows, err := s.List(context.Background(), "Customer", q)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = s.List(context.Background(), "Customer", ListQuery{Filters: []Filter{{Field: "x; drop", Op: "="}}})
	assert.ErrorIs(t, err, ErrInvalidFilter)

	_, err = s.List(context.Background(), "Customer", ListQuery{OrderBy: "modified sideways"})
	assert.ErrorIs(t, err, ErrInvalidFilter)
	repo.AssertExpectations(t)
}

func TestService_Get_NotFound(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Get", mock.Anything, sync.DocCustomer, "missing").Return(nil, ErrNotFound)

	_, err := newTestService(repo).Get(context.Background(), "Customer", "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestService_List_ProjectsFields(t *testing.T) {
	repo := new(MockRepository)
	s := newTestService(repo)

	q := ListQuery{Fields: []string{"customer_name"}}
	repo.On("List", mock.Anything, sync.DocCustomer, mock.Anything).
		Return([]json.RawMessage{json.RawMessage(`{"name":"CUST-2024-00001","customer_name":"Ann","phone":"555"}`)}, nil)

	rows, err := s.List(context.Background(), "Customer", q)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.JSONEq(t, `{"name":"CUST-2024-00001","customer_name":"Ann"}`, string(rows[0]))

	_, err = s.List(context.Background(), "Customer", ListQuery{Fields: []string{"name)"}})
	assert.ErrorIs(t, err, ErrInvalidFilter)
}
