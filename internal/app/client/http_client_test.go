package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"possync/internal/app/client/config"
	"possync/internal/domain/document"
	"possync/internal/domain/session"
	"possync/internal/domain/sync"
)

type memoryTokens struct {
	mu     gosync.Mutex
	tokens *session.Tokens
}

func (m *memoryTokens) Save(_ context.Context, t session.Tokens) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	merged := t.Merge(m.tokens)
	m.tokens = &merged
	return nil
}

func (m *memoryTokens) Load(context.Context) (*session.Tokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		return nil, nil
	}
	t := *m.tokens
	return &t, nil
}

func (m *memoryTokens) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = nil
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, srv *httptest.Server, tokens session.TokenStore, retries int) *httpClient {
	t.Helper()
	cfg := &config.Config{
		ServerAddress:  strings.TrimPrefix(srv.URL, "http://"),
		OAuthClientID:  "possync-cli",
		HTTPMaxRetries: retries,
		HTTPTimeout:    5 * time.Second,
		BackoffBase:    time.Millisecond,
		BackoffMax:     5 * time.Millisecond,
	}
	h, err := NewHTTPClient(cfg, tokens, discardLogger())
	require.NoError(t, err)
	return h
}

func TestHTTPClient_FetchList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/resource/Sales Invoice", r.URL.Path)
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))

		q := r.URL.Query()
		assert.Equal(t, `[["company","=","ACME"],["posting_date",">=","2024-01-01"]]`, q.Get("filters"))
		assert.Equal(t, "500", q.Get("limit_start"))
		assert.Equal(t, "500", q.Get("limit_page_length"))
		assert.Equal(t, "modified desc", q.Get("order_by"))

		_, _ = io.WriteString(w, `{"data":[{"name":"SINV-0001"},{"name":"SINV-0002"}]}`)
	}))
	defer srv.Close()

	tokens := &memoryTokens{tokens: &session.Tokens{AccessToken: "access-1"}}
	h := newTestClient(t, srv, tokens, 0)

	rows, err := h.FetchList(context.Background(), sync.DocSalesInvoice, document.ListQuery{
		Filters: []document.Filter{document.Eq("company", "ACME"), document.Gte("posting_date", "2024-01-01")},
		OrderBy: "modified desc",
		Start:   500,
		Limit:   500,
	})

	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.JSONEq(t, `{"name":"SINV-0001"}`, string(rows[0]))
}

func TestHTTPClient_FetchByName_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/resource/POS Profile/Main Store", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"not found"}`)
	}))
	defer srv.Close()

	h := newTestClient(t, srv, nil, 2)

	raw, err := h.FetchByName(context.Background(), sync.DocPOSProfile, "Main Store")

	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestHTTPClient_CreateDoc(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Jane", body["customer_name"])

		_, _ = io.WriteString(w, `{"data":{"name":"CUST-0007","modified":"2024-05-01 10:00:00.000000","customer_name":"Jane"}}`)
	}))
	defer srv.Close()

	h := newTestClient(t, srv, nil, 0)

	created, err := h.CreateDoc(context.Background(), sync.DocCustomer, map[string]string{"customer_name": "Jane"})

	require.NoError(t, err)
	assert.Equal(t, "CUST-0007", created.Name)
	assert.Equal(t, "2024-05-01 10:00:00.000000", created.Modified)
}

func TestHTTPClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retries   int
		wantHits  int32
		wantKind  document.ErrorKind
		wantInMsg string
	}{
		{name: "validation is rejected without retry", status: http.StatusExpectationFailed, body: `{"message":"Customer is mandatory"}`, retries: 2, wantHits: 1, wantKind: document.KindRejected, wantInMsg: "Customer is mandatory"},
		{name: "bad request is rejected", status: http.StatusBadRequest, body: `{"detail":"unknown doctype"}`, retries: 2, wantHits: 1, wantKind: document.KindRejected, wantInMsg: "unknown doctype"},
		{name: "unauthorized is auth", status: http.StatusUnauthorized, body: `{"title":"Unauthorized"}`, retries: 2, wantHits: 1, wantKind: document.KindAuth},
		{name: "server error is retried", status: http.StatusServiceUnavailable, body: `busy`, retries: 2, wantHits: 3, wantKind: document.KindTransport, wantInMsg: "busy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			h := newTestClient(t, srv, nil, tt.retries)

			_, err := h.CreateDoc(context.Background(), sync.DocCustomer, map[string]string{})

			require.Error(t, err)
			var re *document.RemoteError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tt.wantKind, re.Kind)
			assert.Equal(t, tt.status, re.StatusCode)
			assert.Equal(t, tt.wantHits, hits.Load())
			if tt.wantInMsg != "" {
				assert.Contains(t, err.Error(), tt.wantInMsg)
			}
		})
	}
}

func TestHTTPClient_RetryRecovers(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"data":[]}`)
	}))
	defer srv.Close()

	h := newTestClient(t, srv, nil, 2)

	rows, err := h.FetchList(context.Background(), sync.DocItem, document.ListQuery{})

	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, int32(3), hits.Load())
}

func TestHTTPClient_RetryStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	h := newTestClient(t, srv, nil, 5)
	h.backoff = sync.Backoff{Base: time.Hour, Max: time.Hour}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := h.FetchList(ctx, sync.DocItem, document.ListQuery{})

	require.Error(t, err)
	assert.True(t, document.IsTransport(err))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestHTTPClient_CircuitBreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	h := newTestClient(t, srv, nil, 0)

	for i := 0; i < 6; i++ {
		_, err := h.FetchList(context.Background(), sync.DocItem, document.ListQuery{})
		require.Error(t, err)
	}
	require.Equal(t, int32(6), hits.Load())

	_, err := h.FetchList(context.Background(), sync.DocItem, document.ListQuery{})

	require.Error(t, err)
	assert.True(t, document.IsTransport(err))
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.Equal(t, int32(6), hits.Load())
}

func TestHTTPClient_RejectionsDoNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	h := newTestClient(t, srv, nil, 0)

	for i := 0; i < 12; i++ {
		_, err := h.CreateDoc(context.Background(), sync.DocCustomer, map[string]string{})
		require.True(t, document.IsRejected(err))
	}
	assert.Equal(t, int32(12), hits.Load())
}

func tokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, tokenPath, r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "possync-cli", r.PostForm.Get("client_id"))

		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("grant_type") {
		case "password":
			if r.PostForm.Get("username") != "cashier" || r.PostForm.Get("password") != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"invalid credentials"}`)
				return
			}
			_, _ = io.WriteString(w, `{"access_token":"access-1","token_type":"Bearer","refresh_token":"refresh-1","expires_in":3600,"id_token":"id-1","user_id":"cashier"}`)
		case "refresh_token":
			if r.PostForm.Get("refresh_token") != "refresh-1" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
				return
			}
			_, _ = io.WriteString(w, `{"access_token":"access-2","token_type":"Bearer","expires_in":1800}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
}

func TestHTTPClient_Login(t *testing.T) {
	srv := tokenServer(t)
	defer srv.Close()

	h := newTestClient(t, srv, nil, 0)

	tokens, err := h.Login(context.Background(), "cashier", "secret")

	require.NoError(t, err)
	assert.Equal(t, "access-1", tokens.AccessToken)
	assert.Equal(t, "refresh-1", tokens.RefreshToken)
	assert.Equal(t, "id-1", tokens.IDToken)
	assert.Equal(t, "cashier", tokens.UserID)
	assert.InDelta(t, 3600, tokens.ExpiresIn, 2)
	assert.False(t, tokens.IssuedAt.IsZero())

	_, err = h.Login(context.Background(), "cashier", "wrong")
	require.Error(t, err)
	assert.True(t, document.IsAuth(err))
}

func TestHTTPClient_Refresh(t *testing.T) {
	srv := tokenServer(t)
	defer srv.Close()

	h := newTestClient(t, srv, nil, 0)

	tokens, err := h.Refresh(context.Background(), "refresh-1")

	require.NoError(t, err)
	assert.Equal(t, "access-2", tokens.AccessToken)
	assert.InDelta(t, 1800, tokens.ExpiresIn, 2)

	_, err = h.Refresh(context.Background(), "stale")
	require.Error(t, err)
	assert.True(t, document.IsAuth(err))
}

func TestHTTPClient_IsConnected(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pingPath, r.URL.Path)
		hits.Add(1)
		_, _ = io.WriteString(w, `{"message":"pong"}`)
	}))
	defer srv.Close()

	h := newTestClient(t, srv, nil, 0)

	assert.True(t, h.IsConnected(context.Background()))
	assert.True(t, h.IsConnected(context.Background()))
	assert.Equal(t, int32(1), hits.Load())
}

func TestHTTPClient_IsConnected_Down(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	h := newTestClient(t, srv, nil, 0)
	srv.Close()

	assert.False(t, h.IsConnected(context.Background()))
}
