package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	gosync "sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/exp/slog"
	"golang.org/x/oauth2"

	"possync/internal/app/client/config"
	"possync/internal/domain/document"
	"possync/internal/domain/session"
	"possync/internal/domain/sync"
)

const (
	pingPath      = "/api/method/ping"
	tokenPath     = "/api/method/oauth/token"
	registerPath  = "/api/method/register"
	resourcePath  = "/api/resource/"
	pingTimeout   = 3 * time.Second
	pingCacheTTL  = 3 * time.Second
	maxErrorBytes = 4096
)

// httpClient клиент REST API сервера документов.
// Реализует document.Remote, session.TokenRefresher и session.Connectivity.
type httpClient struct {
	client     *http.Client
	log        *slog.Logger
	baseURL    string
	userAgent  string
	tokens     session.TokenStore
	oauth      oauth2.Config
	breaker    *gobreaker.CircuitBreaker
	backoff    sync.Backoff
	maxRetries int
	random     func() float64

	pingMu gosync.Mutex
	pingAt time.Time
	pingOK bool
}

func NewHTTPClient(cfg *config.Config, tokens session.TokenStore, log *slog.Logger) (*httpClient, error) {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			DisableCompression:  false,
			DisableKeepAlives:   false,
			MaxIdleConnsPerHost: 10,
		},
	}

	baseURL := cfg.BaseURL()
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("некорректный адрес сервера: %w", err)
	}

	log = log.With(slog.String("component", "remote_client"))

	backoff := sync.DefaultBackoff()
	if cfg.BackoffBase > 0 {
		backoff.Base = cfg.BackoffBase
	}
	if cfg.BackoffMax > 0 {
		backoff.Max = cfg.BackoffMax
	}
	backoff.Jitter = cfg.BackoffJitter

	h := &httpClient{
		client:    client,
		log:       log,
		baseURL:   baseURL,
		userAgent: "PosSync-Client/1.0",
		tokens:    tokens,
		oauth: oauth2.Config{
			ClientID: cfg.OAuthClientID,
			Endpoint: oauth2.Endpoint{
				TokenURL:  baseURL + tokenPath,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		backoff:    backoff,
		maxRetries: cfg.HTTPMaxRetries,
		random:     rand.Float64,
	}

	h.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "remote-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 || (counts.Requests >= 10 && failureRatio >= 0.6)
		},
		// Отказы сервера по существу запроса не говорят о его недоступности
		IsSuccessful: func(err error) bool {
			return err == nil || !document.IsTransport(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return h, nil
}

// IsConnected проверяет доступность сервера; результат кэшируется на несколько секунд
func (h *httpClient) IsConnected(ctx context.Context) bool {
	h.pingMu.Lock()
	defer h.pingMu.Unlock()

	if !h.pingAt.IsZero() && time.Since(h.pingAt) < pingCacheTTL {
		return h.pingOK
	}

	h.pingOK = h.HealthCheck(ctx) == nil
	h.pingAt = time.Now()
	return h.pingOK
}

// HealthCheck проверяет доступность сервера
func (h *httpClient) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+pingPath, nil)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}

	req.Header.Set("User-Agent", h.userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("сервер недоступен: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("сервер вернул статус: %d", resp.StatusCode)
	}

	return nil
}

// FetchList получает список документов
func (h *httpClient) FetchList(ctx context.Context, doc sync.DocType, q document.ListQuery) ([]json.RawMessage, error) {
	params := url.Values{}
	if len(q.Filters) > 0 {
		filters, err := json.Marshal(q.Filters)
		if err != nil {
			return nil, fmt.Errorf("ошибка маршалинга фильтров: %w", err)
		}
		params.Set("filters", string(filters))
	}
	if len(q.Fields) > 0 {
		fields, err := json.Marshal(q.Fields)
		if err != nil {
			return nil, fmt.Errorf("ошибка маршалинга полей: %w", err)
		}
		params.Set("fields", string(fields))
	}
	if q.OrderBy != "" {
		params.Set("order_by", q.OrderBy)
	}
	if q.Start > 0 {
		params.Set("limit_start", strconv.Itoa(q.Start))
	}
	if q.Limit > 0 {
		params.Set("limit_page_length", strconv.Itoa(q.Limit))
	}

	path := resourcePath + url.PathEscape(string(doc))
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var out struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := h.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch %s list: %w", doc, err)
	}
	return out.Data, nil
}

// FetchByName получает документ по имени; nil, если документа нет
func (h *httpClient) FetchByName(ctx context.Context, doc sync.DocType, name string) (json.RawMessage, error) {
	path := resourcePath + url.PathEscape(string(doc)) + "/" + url.PathEscape(name)

	var out struct {
		Data json.RawMessage `json:"data"`
	}
	if err := h.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch %s %q: %w", doc, name, err)
	}
	return out.Data, nil
}

// CreateDoc создает документ на сервере
func (h *httpClient) CreateDoc(ctx context.Context, doc sync.DocType, payload any) (document.Created, error) {
	var out struct {
		Data document.Created `json:"data"`
	}
	if err := h.do(ctx, http.MethodPost, resourcePath+url.PathEscape(string(doc)), payload, &out); err != nil {
		return document.Created{}, fmt.Errorf("create %s: %w", doc, err)
	}
	if out.Data.Name == "" {
		return document.Created{}, &document.RemoteError{
			Kind:    document.KindRejected,
			Message: "server response has no document name",
		}
	}
	return out.Data, nil
}

// Register регистрирует пользователя на сервере
func (h *httpClient) Register(ctx context.Context, username, password string) error {
	body := map[string]string{"username": username, "password": password}
	return h.do(ctx, http.MethodPost, registerPath, body, nil)
}

// Login получает токены по логину и паролю (password grant)
func (h *httpClient) Login(ctx context.Context, username, password string) (session.Tokens, error) {
	token, err := h.oauth.PasswordCredentialsToken(h.oauthContext(ctx), username, password)
	if err != nil {
		return session.Tokens{}, oauthError(err)
	}
	return toTokens(token), nil
}

// Refresh обменивает refresh-токен на новую пару
func (h *httpClient) Refresh(ctx context.Context, refreshToken string) (session.Tokens, error) {
	src := h.oauth.TokenSource(h.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return session.Tokens{}, oauthError(err)
	}
	return toTokens(token), nil
}

func (h *httpClient) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, h.client)
}

func toTokens(token *oauth2.Token) session.Tokens {
	now := time.Now()
	tokens := session.Tokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		IssuedAt:     now,
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		tokens.IDToken = idToken
	}
	if userID, ok := token.Extra("user_id").(string); ok {
		tokens.UserID = userID
	}
	if !token.Expiry.IsZero() {
		tokens.ExpiresIn = int64(token.Expiry.Sub(now).Round(time.Second).Seconds())
	}
	return tokens
}

func oauthError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		if status >= http.StatusInternalServerError {
			return &document.RemoteError{Kind: document.KindTransport, StatusCode: status, Message: "token endpoint unavailable", Err: err}
		}
		return &document.RemoteError{Kind: document.KindAuth, StatusCode: status, Message: errorMessage(re.Body), Err: err}
	}
	return &document.RemoteError{Kind: document.KindTransport, Err: err}
}

// do выполняет запрос с повторами транспортных ошибок
func (h *httpClient) do(ctx context.Context, method, path string, payload any, result any) error {
	var body []byte
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("ошибка маршалинга тела запроса: %w", err)
		}
		body = data
	}

	for attempt := 0; ; attempt++ {
		data, err := h.attempt(ctx, method, path, body)
		if err == nil {
			return parseResponse(data, result)
		}
		if !document.IsTransport(err) || attempt >= h.maxRetries {
			return err
		}

		delay := h.backoff.Delay(attempt, h.random())
		h.log.Debug("retrying request",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.Any("error", err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &document.RemoteError{Kind: document.KindTransport, Message: "request cancelled", Err: errors.Join(ctx.Err(), err)}
		case <-timer.C:
		}
	}
}

func (h *httpClient) attempt(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	out, err := h.breaker.Execute(func() (interface{}, error) {
		return h.roundTrip(ctx, method, path, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &document.RemoteError{Kind: document.KindTransport, Message: "circuit breaker open", Err: err}
	}
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

func (h *httpClient) roundTrip(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", h.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := h.accessToken(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &document.RemoteError{Kind: document.KindTransport, Message: "ошибка выполнения запроса", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &document.RemoteError{Kind: document.KindTransport, StatusCode: resp.StatusCode, Message: "ошибка чтения ответа", Err: err}
	}

	switch status := resp.StatusCode; {
	case status >= 200 && status < 300:
		return data, nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, &document.RemoteError{Kind: document.KindAuth, StatusCode: status, Message: errorMessage(data)}
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500:
		return nil, &document.RemoteError{Kind: document.KindTransport, StatusCode: status, Message: errorMessage(data)}
	default:
		return nil, &document.RemoteError{Kind: document.KindRejected, StatusCode: status, Message: errorMessage(data)}
	}
}

func (h *httpClient) accessToken(ctx context.Context) string {
	if h.tokens == nil {
		return ""
	}
	tokens, err := h.tokens.Load(ctx)
	if err != nil {
		h.log.Debug("token store unavailable", slog.Any("error", err))
		return ""
	}
	if tokens == nil {
		return ""
	}
	return tokens.AccessToken
}

func parseResponse(data []byte, result any) error {
	if result == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return &document.RemoteError{Kind: document.KindRejected, Message: "ошибка парсинга ответа", Err: err}
	}
	return nil
}

// errorMessage достает текст ошибки из тела ответа сервера
func errorMessage(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	var body struct {
		Message          string `json:"message"`
		Exception        string `json:"exception"`
		Detail           string `json:"detail"`
		Title            string `json:"title"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		for _, msg := range []string{body.Message, body.Exception, body.Detail, body.ErrorDescription, body.Error, body.Title} {
			if msg != "" {
				return msg
			}
		}
	}
	if len(data) > maxErrorBytes {
		data = data[:maxErrorBytes]
	}
	return string(bytes.TrimSpace(data))
}

func isNotFound(err error) bool {
	var re *document.RemoteError
	return errors.As(err, &re) && re.StatusCode == http.StatusNotFound
}
