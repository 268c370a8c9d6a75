package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"possync/internal/domain/document"
	"possync/internal/domain/sync"
)

var testScope = sync.Scope{InstanceID: "https://erp.example.com", CompanyID: "ACME"}

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "data", "pos.db"), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNew_ReopenRunsMigrationsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pos.db")

	s, err := New(path, slog.Default())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = New(path, slog.Default())
	require.NoError(t, err)
	defer s.Close()

	var n int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM customers`).Scan(&n))
	assert.Zero(t, n)
}

func TestTable_InsertPendingAndMark(t *testing.T) {
	ctx := context.Background()
	customers := newTestStorage(t).Tables().Customers

	first := &document.Customer{CustomerName: "Walk-in"}
	require.NoError(t, customers.Insert(ctx, testScope, first))
	require.NotEmpty(t, first.LocalID)
	assert.Equal(t, sync.StatusPending, first.SyncStatus)

	second := &document.Customer{Meta: sync.Meta{LocalID: "c-2"}, CustomerName: "Ana"}
	require.NoError(t, customers.Insert(ctx, testScope, second))

	pending, err := customers.Pending(ctx, testScope)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "Walk-in", pending[0].CustomerName)

	require.NoError(t, customers.MarkSynced(ctx, testScope, first.LocalID, "CUST-2025-00001", "2025-04-02 10:30:00.000000"))
	require.NoError(t, customers.MarkFailed(ctx, testScope, "c-2", "customer_name is required"))

	got, err := customers.GetByRemoteName(ctx, testScope, "CUST-2025-00001")
	require.NoError(t, err)
	assert.Equal(t, first.LocalID, got.LocalID)
	assert.Equal(t, sync.StatusSynced, got.SyncStatus)
	assert.NotNil(t, got.SyncedAt)

	failed, err := customers.Get(ctx, testScope, "c-2")
	require.NoError(t, err)
	assert.Equal(t, sync.StatusFailed, failed.SyncStatus)
	assert.Equal(t, "customer_name is required", failed.LastError)

	pendingCount, failedCount, err := customers.Counts(ctx, testScope)
	require.NoError(t, err)
	assert.Equal(t, 0, pendingCount)
	assert.Equal(t, 1, failedCount)

	// FAILED остается в очереди отправки
	pending, err = customers.Pending(ctx, testScope)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "c-2", pending[0].LocalID)

	assert.ErrorIs(t, customers.MarkFailed(ctx, testScope, "missing", "x"), ErrNotFound)
}

func TestTable_UpsertBatch(t *testing.T) {
	ctx := context.Background()
	items := newTestStorage(t).Tables().Items

	batch := []*document.Item{
		{Meta: sync.Meta{RemoteName: "COFFEE", RemoteModified: "2025-04-01 08:00:00.000000"}, ItemCode: "COFFEE", StandardRate: decimal.RequireFromString("3.5")},
		{Meta: sync.Meta{RemoteName: "BAGEL", RemoteModified: "2025-04-01 08:00:00.000000"}, ItemCode: "BAGEL"},
	}
	require.NoError(t, items.UpsertBatch(ctx, testScope, batch))

	coffee, err := items.GetByRemoteName(ctx, testScope, "COFFEE")
	require.NoError(t, err)
	localID := coffee.LocalID
	assert.NotEmpty(t, localID)
	assert.True(t, decimal.RequireFromString("3.5").Equal(coffee.StandardRate))

	// повторная запись той же версии не плодит строк и сохраняет local_id
	update := []*document.Item{
		{Meta: sync.Meta{RemoteName: "COFFEE", RemoteModified: "2025-04-02 09:00:00.000000"}, ItemCode: "COFFEE", StandardRate: decimal.RequireFromString("4")},
	}
	require.NoError(t, items.UpsertBatch(ctx, testScope, update))

	n, err := items.Count(ctx, testScope)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	coffee, err = items.GetByRemoteName(ctx, testScope, "COFFEE")
	require.NoError(t, err)
	assert.Equal(t, localID, coffee.LocalID)
	assert.Equal(t, "2025-04-02 09:00:00.000000", coffee.RemoteModified)

	mods, err := items.RemoteModified(ctx, testScope, []string{"COFFEE", "BAGEL", "TEA"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"COFFEE": "2025-04-02 09:00:00.000000",
		"BAGEL":  "2025-04-01 08:00:00.000000",
	}, mods)

	last, err := items.LastUpdated(ctx, testScope)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.WithinDuration(t, time.Now(), *last, time.Minute)
}

func TestTable_UpsertMatchesLocalID(t *testing.T) {
	ctx := context.Background()
	customers := newTestStorage(t).Tables().Customers

	local := &document.Customer{Meta: sync.Meta{LocalID: "c-1"}, CustomerName: "Ana"}
	require.NoError(t, customers.Insert(ctx, testScope, local))

	// сервер вернул документ, созданный этим устройством, до того как отметка ушла в базу
	echoed := &document.Customer{
		Meta:         sync.Meta{LocalID: "c-1", RemoteName: "CUST-2025-00007", RemoteModified: "2025-04-02 10:30:00.000000"},
		CustomerName: "Ana",
	}
	require.NoError(t, customers.UpsertBatch(ctx, testScope, []*document.Customer{echoed}))

	n, err := customers.Count(ctx, testScope)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := customers.Get(ctx, testScope, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "CUST-2025-00007", got.RemoteName)
	assert.Equal(t, sync.StatusSynced, got.SyncStatus)
}

func TestTable_ScopeIsolationAndParent(t *testing.T) {
	ctx := context.Background()
	methods := newTestStorage(t).Tables().PaymentMethods
	other := sync.Scope{InstanceID: testScope.InstanceID, CompanyID: "OTHER"}

	require.NoError(t, methods.UpsertBatch(ctx, testScope, []*document.PaymentMethod{
		{Meta: sync.Meta{RemoteName: "pm-1"}, Parent: "Main POS", ModeOfPayment: "Cash", Default: 1},
		{Meta: sync.Meta{RemoteName: "pm-2"}, Parent: "Main POS", ModeOfPayment: "Card"},
		{Meta: sync.Meta{RemoteName: "pm-3"}, Parent: "Bar POS", ModeOfPayment: "Cash"},
	}))

	n, err := methods.CountByParent(ctx, testScope, "Main POS")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := methods.ListByParent(ctx, testScope, "Bar POS")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Cash", list[0].ModeOfPayment)

	n, err = methods.Count(ctx, other)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = methods.Get(ctx, other, list[0].LocalID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStateRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewStateRepository(newTestStorage(t))

	st, err := repo.Get(ctx, testScope, sync.DocItem)
	require.NoError(t, err)
	assert.Nil(t, st.LastSyncAt)
	assert.Equal(t, sync.DocItem, st.DocType)

	require.NoError(t, repo.SetInProgress(ctx, testScope, sync.DocItem, true))
	st, err = repo.Get(ctx, testScope, sync.DocItem)
	require.NoError(t, err)
	assert.True(t, st.InProgress)

	at := time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.MarkSuccess(ctx, testScope, sync.DocItem, at))
	require.NoError(t, repo.SetCounters(ctx, testScope, sync.DocItem, 3, 1))

	st, err = repo.Get(ctx, testScope, sync.DocItem)
	require.NoError(t, err)
	require.NotNil(t, st.LastSyncAt)
	assert.True(t, at.Equal(*st.LastSyncAt))
	assert.False(t, st.InProgress)
	assert.Equal(t, 3, st.PendingCount)
	assert.Equal(t, 1, st.FailedCount)

	require.NoError(t, repo.MarkFailure(ctx, testScope, sync.DocCustomer, "timeout"))

	all, err := repo.List(ctx, testScope)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, sync.DocCustomer, all[0].DocType)
	assert.Equal(t, "timeout", all[0].LastError)
	assert.Nil(t, all[0].LastSyncAt)
}

func TestStateRepository_PullClockSeparateFromPush(t *testing.T) {
	ctx := context.Background()
	repo := NewStateRepository(newTestStorage(t))

	pulled := time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC)
	pushed := pulled.Add(2 * time.Hour)

	require.NoError(t, repo.MarkFailure(ctx, testScope, sync.DocCustomer, "timeout"))
	require.NoError(t, repo.MarkPulled(ctx, testScope, sync.DocCustomer, pulled))

	st, err := repo.Get(ctx, testScope, sync.DocCustomer)
	require.NoError(t, err)
	require.NotNil(t, st.LastPullAt)
	assert.True(t, pulled.Equal(*st.LastPullAt))
	assert.Empty(t, st.LastError)

	require.NoError(t, repo.MarkSuccess(ctx, testScope, sync.DocCustomer, pushed))

	all, err := repo.List(ctx, testScope)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].LastSyncAt)
	require.NotNil(t, all[0].LastPullAt)
	assert.True(t, pushed.Equal(*all[0].LastSyncAt))
	assert.True(t, pulled.Equal(*all[0].LastPullAt))
}

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(newTestStorage(t))

	sess, err := store.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess)

	require.NoError(t, store.Open(ctx, sync.Session{
		InstanceID:  testScope.InstanceID,
		CompanyID:   testScope.CompanyID,
		ProfileID:   "Main POS",
		WarehouseID: "Stores - ACME",
	}))
	require.NoError(t, store.Open(ctx, sync.Session{
		InstanceID: testScope.InstanceID,
		CompanyID:  testScope.CompanyID,
		ProfileID:  "Bar POS",
	}))

	sess, err = store.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "Bar POS", sess.ProfileID)
	assert.Empty(t, sess.WarehouseID)
	assert.False(t, sess.OpenedAt.IsZero())

	require.NoError(t, store.Clear(ctx))
	sess, err = store.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess)
}
