package pull

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"possync/internal/domain/document"
	"possync/internal/domain/sync"
)

var testContext = sync.Context{
	InstanceID: "https://erp.example.com",
	CompanyID:  "ACME",
	FromDate:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
}

// memoryTable таблица в памяти, считающая записи
type memoryTable[T any, PT Entity[T]] struct {
	mu     gosync.Mutex
	rows   map[string]PT
	writes int
}

func newMemoryTable[T any, PT Entity[T]]() *memoryTable[T, PT] {
	return &memoryTable[T, PT]{rows: make(map[string]PT)}
}

func (m *memoryTable[T, PT]) RemoteModified(_ context.Context, _ sync.Scope, names []string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]string)
	for _, n := range names {
		if row, ok := m.rows[n]; ok {
			out[n] = row.SyncMeta().RemoteModified
		}
	}
	return out, nil
}

func (m *memoryTable[T, PT]) UpsertBatch(_ context.Context, _ sync.Scope, items []PT) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, item := range items {
		m.rows[item.SyncMeta().RemoteName] = item
		m.writes++
	}
	return nil
}

func (m *memoryTable[T, PT]) List(context.Context, sync.Scope) ([]PT, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.rows))
	for n := range m.rows {
		names = append(names, n)
	}
	sort.Strings(names)

	out := make([]PT, 0, len(names))
	for _, n := range names {
		out = append(out, m.rows[n])
	}
	return out, nil
}

type MockRemote struct {
	mock.Mock
}

func (m *MockRemote) FetchList(ctx context.Context, doc sync.DocType, q document.ListQuery) ([]json.RawMessage, error) {
	args := m.Called(ctx, doc, q)
	if v := args.Get(0); v != nil {
		return v.([]json.RawMessage), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRemote) FetchByName(ctx context.Context, doc sync.DocType, name string) (json.RawMessage, error) {
	args := m.Called(ctx, doc, name)
	if v := args.Get(0); v != nil {
		return v.(json.RawMessage), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRemote) CreateDoc(ctx context.Context, doc sync.DocType, payload any) (document.Created, error) {
	args := m.Called(ctx, doc, payload)
	return args.Get(0).(document.Created), args.Error(1)
}

// memoryState состояние синхронизации в памяти
type memoryState struct {
	mu     gosync.Mutex
	states map[sync.DocType]sync.State
}

func newMemoryState() *memoryState {
	return &memoryState{states: make(map[sync.DocType]sync.State)}
}

func (m *memoryState) Get(_ context.Context, _ sync.Scope, doc sync.DocType) (sync.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.states[doc]
	st.DocType = doc
	return st, nil
}

func (m *memoryState) SetInProgress(_ context.Context, _ sync.Scope, doc sync.DocType, v bool) error {
	return m.update(doc, func(st *sync.State) { st.InProgress = v })
}

func (m *memoryState) MarkSuccess(_ context.Context, _ sync.Scope, doc sync.DocType, at time.Time) error {
	return m.update(doc, func(st *sync.State) { st.LastSyncAt = &at; st.LastError = "" })
}

func (m *memoryState) MarkPulled(_ context.Context, _ sync.Scope, doc sync.DocType, at time.Time) error {
	return m.update(doc, func(st *sync.State) { st.LastSyncAt = &at; st.LastPullAt = &at; st.LastError = "" })
}

func (m *memoryState) MarkFailure(_ context.Context, _ sync.Scope, doc sync.DocType, msg string) error {
	return m.update(doc, func(st *sync.State) { st.LastError = msg })
}

func (m *memoryState) SetCounters(_ context.Context, _ sync.Scope, doc sync.DocType, pending, failed int) error {
	return m.update(doc, func(st *sync.State) { st.PendingCount = pending; st.FailedCount = failed })
}

func (m *memoryState) List(context.Context, sync.Scope) ([]sync.State, error) {
	return nil, nil
}

func (m *memoryState) update(doc sync.DocType, fn func(*sync.State)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.states[doc]
	fn(&st)
	m.states[doc] = st
	return nil
}

func customer(name, modified string) *document.Customer {
	return &document.Customer{Meta: sync.Meta{RemoteName: name, RemoteModified: modified}, CustomerName: name}
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestUpsertFromServer_OneWritePerVersion(t *testing.T) {
	ctx := context.Background()
	table := newMemoryTable[document.Customer]()
	scope := testContext.Scope()

	changed, err := UpsertFromServer[document.Customer](ctx, table, scope, []*document.Customer{customer("CUST-1", "v1")})
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = UpsertFromServer[document.Customer](ctx, table, scope, []*document.Customer{customer("CUST-1", "v1")})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, table.writes)

	changed, err = UpsertFromServer[document.Customer](ctx, table, scope, []*document.Customer{customer("CUST-1", "v2")})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 2, table.writes)
	assert.Equal(t, "v2", table.rows["CUST-1"].RemoteModified)
}

func TestUpsertFromServer_DuplicateKeepsLast(t *testing.T) {
	table := newMemoryTable[document.Customer]()

	changed, err := UpsertFromServer[document.Customer](context.Background(), table, testContext.Scope(), []*document.Customer{
		customer("CUST-1", "v1"),
		customer("CUST-1", "v3"),
		{CustomerName: "no name"},
	})

	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, table.writes)
	assert.Equal(t, "v3", table.rows["CUST-1"].RemoteModified)
}

func TestRepository_RefreshPagesAndMarksState(t *testing.T) {
	ctx := context.Background()
	table := newMemoryTable[document.Customer]()
	state := newMemoryState()
	remote := new(MockRemote)

	repo := NewCustomers(Deps{Remote: remote, State: state, TTL: sync.NewTTL(time.Hour), Log: slog.Default()}, table)
	repo.pageSize = 2

	remote.On("FetchList", ctx, sync.DocCustomer, mock.MatchedBy(func(q document.ListQuery) bool { return q.Start == 0 })).
		Return([]json.RawMessage{raw(t, customer("CUST-1", "v1")), raw(t, customer("CUST-2", "v1"))}, nil).Once()
	remote.On("FetchList", ctx, sync.DocCustomer, mock.MatchedBy(func(q document.ListQuery) bool { return q.Start == 2 })).
		Return([]json.RawMessage{raw(t, customer("CUST-3", "v1"))}, nil).Once()

	require.NoError(t, repo.Refresh(ctx, testContext, false))

	assert.Len(t, table.rows, 3)
	st, _ := state.Get(ctx, testContext.Scope(), sync.DocCustomer)
	require.NotNil(t, st.LastPullAt)
	remote.AssertExpectations(t)

	// свежий кэш: повторный вызов в пределах TTL не идет в сеть
	require.NoError(t, repo.Refresh(ctx, testContext, false))
	remote.AssertNumberOfCalls(t, "FetchList", 2)
}

func TestRepository_PushDoesNotRefreshPullClock(t *testing.T) {
	ctx := context.Background()
	scope := testContext.Scope()
	table := newMemoryTable[document.Customer]()
	_ = table.UpsertBatch(ctx, scope, []*document.Customer{customer("CUST-1", "v1")})
	state := newMemoryState()
	remote := new(MockRemote)

	repo := NewCustomers(Deps{Remote: remote, State: state, TTL: sync.NewTTL(time.Hour), Log: slog.Default()}, table)

	// загрузка два часа назад, отправка очереди только что
	require.NoError(t, state.MarkPulled(ctx, scope, sync.DocCustomer, time.Now().Add(-2*time.Hour)))
	require.NoError(t, state.MarkSuccess(ctx, scope, sync.DocCustomer, time.Now()))

	remote.On("FetchList", ctx, sync.DocCustomer, mock.Anything).
		Return([]json.RawMessage{raw(t, customer("CUST-1", "v2"))}, nil).Once()

	require.NoError(t, repo.Refresh(ctx, testContext, false))

	remote.AssertExpectations(t)
	assert.Equal(t, "v2", table.rows["CUST-1"].RemoteModified)
	st, _ := state.Get(ctx, scope, sync.DocCustomer)
	require.NotNil(t, st.LastPullAt)
	assert.WithinDuration(t, time.Now(), *st.LastPullAt, time.Minute)
}

func TestRepository_RefreshFailureKeepsCache(t *testing.T) {
	ctx := context.Background()
	table := newMemoryTable[document.Customer]()
	_ = table.UpsertBatch(ctx, testContext.Scope(), []*document.Customer{customer("CUST-1", "v1")})
	state := newMemoryState()
	remote := new(MockRemote)

	repo := NewCustomers(Deps{Remote: remote, State: state, TTL: sync.NewTTL(time.Hour), Log: slog.Default()}, table)

	remote.On("FetchList", ctx, sync.DocCustomer, mock.Anything).
		Return(nil, &document.RemoteError{Kind: document.KindTransport, Err: errors.New("connection refused")})

	err := repo.Refresh(ctx, testContext, true)

	assert.True(t, document.IsTransport(err))
	st, _ := state.Get(ctx, testContext.Scope(), sync.DocCustomer)
	assert.Contains(t, st.LastError, "connection refused")

	var last []*document.Customer
	for r := range repo.Stream(ctx, testContext, true) {
		last = r.Data
	}
	assert.Len(t, last, 1)
}

func TestRepository_UnavailableContextIsNoop(t *testing.T) {
	remote := new(MockRemote)
	repo := NewItems(Deps{Remote: remote, State: newMemoryState(), TTL: sync.NewTTL(0), Log: slog.Default()}, newMemoryTable[document.Item]())

	require.NoError(t, repo.Refresh(context.Background(), sync.Context{CompanyID: "ACME"}, true))
	remote.AssertNotCalled(t, "FetchList", mock.Anything, mock.Anything, mock.Anything)
}

func TestInvoicesQuery(t *testing.T) {
	repo := NewInvoices(Deps{Remote: new(MockRemote), State: newMemoryState(), Log: slog.Default()}, newMemoryTable[document.SalesDocument]())

	q := repo.query(testContext)

	assert.Equal(t, []document.Filter{
		document.Eq("company", "ACME"),
		document.Gte("posting_date", "2025-01-01"),
	}, q.Filters)
}

func TestPaymentMethods_Refresh(t *testing.T) {
	ctx := context.Background()
	remote := new(MockRemote)
	profiles := newMemoryTable[document.POSProfile]()
	methods := newMemoryTable[document.PaymentMethod]()
	state := newMemoryState()

	pm := NewPaymentMethods(Deps{Remote: remote, State: state, Log: slog.Default()}, profiles, methods)

	remote.On("FetchByName", ctx, sync.DocPOSProfile, "PROFILE-1").Return(json.RawMessage(`{
		"name": "PROFILE-1",
		"modified": "2025-04-02 10:00:00.000000",
		"company": "ACME",
		"payments": [
			{"mode_of_payment": "Cash", "default": 1},
			{"mode_of_payment": "Card"}
		]
	}`), nil)

	n, err := pm.Refresh(ctx, testContext, "PROFILE-1")

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, profiles.rows, "PROFILE-1")
	require.Contains(t, methods.rows, "PROFILE-1/Cash")
	assert.Equal(t, "PROFILE-1", methods.rows["PROFILE-1/Cash"].Parent)
}

func TestPaymentMethods_ProfileMissing(t *testing.T) {
	ctx := context.Background()
	remote := new(MockRemote)
	remote.On("FetchByName", ctx, sync.DocPOSProfile, "GHOST").Return(nil, nil)

	pm := NewPaymentMethods(Deps{Remote: remote, State: newMemoryState(), Log: slog.Default()},
		newMemoryTable[document.POSProfile](), newMemoryTable[document.PaymentMethod]())

	_, err := pm.Refresh(ctx, testContext, "GHOST")
	assert.ErrorIs(t, err, document.ErrNotFound)

	_, err = pm.Refresh(ctx, sync.Context{}, "GHOST")
	assert.ErrorIs(t, err, sync.ErrContextUnavailable)
}
