package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/exp/slog"
)

const (
	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 30 * 24 * time.Hour
	issuer            = "possync"
)

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrInvalidAccessToken  = errors.New("invalid access token")
)

// TokenPair ответ token endpoint в формате OAuth2
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	Scope        string `json:"scope,omitempty"`
}

type Servicer interface {
	Issue(ctx context.Context, userID int, login string) (TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
	Validate(ctx context.Context, accessToken string) (int, error)
}

type Service struct {
	repo       Repository
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	log        *slog.Logger
}

func NewService(repo Repository, secret string, accessTTL, refreshTTL time.Duration, log *slog.Logger) *Service {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &Service{
		repo:       repo,
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
		log:        log,
	}
}

// Issue выпускает access, id и refresh токены
func (s *Service) Issue(ctx context.Context, userID int, login string) (TokenPair, error) {
	now := s.now()
	exp := now.Add(s.accessTTL)
	sub := strconv.Itoa(userID)

	access, err := s.sign(jwt.MapClaims{
		"iss": issuer,
		"sub": sub,
		"iat": now.Unix(),
		"exp": exp.Unix(),
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	idClaims := jwt.MapClaims{
		"iss": issuer,
		"sub": sub,
		"iat": now.Unix(),
		"exp": exp.Unix(),
	}
	if login != "" {
		idClaims["email"] = login
	}
	idToken, err := s.sign(idClaims)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign id token: %w", err)
	}

	// Генерация refresh токена
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return TokenPair{}, fmt.Errorf("generate token: %w", err)
	}
	refresh := base64.URLEncoding.EncodeToString(tokenBytes)

	if err := s.repo.Create(ctx, userID, hashToken(refresh), now.Add(s.refreshTTL)); err != nil {
		return TokenPair{}, fmt.Errorf("save refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:  access,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		RefreshToken: refresh,
		IDToken:      idToken,
		Scope:        "all openid",
	}, nil
}

// Refresh меняет refresh токен на новую пару; старый токен одноразовый
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if refreshToken == "" {
		return TokenPair{}, ErrInvalidRefreshToken
	}

	userID, err := s.repo.Consume(ctx, hashToken(refreshToken))
	if err != nil {
		s.log.Debug("refresh token rejected", "error", err)
		return TokenPair{}, ErrInvalidRefreshToken
	}

	return s.Issue(ctx, userID, "")
}

// Validate проверяет подпись и срок access токена, возвращает ID пользователя
func (s *Service) Validate(_ context.Context, accessToken string) (int, error) {
	token, err := jwt.Parse(accessToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return 0, ErrInvalidAccessToken
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return 0, ErrInvalidAccessToken
	}
	userID, err := strconv.Atoi(sub)
	if err != nil {
		return 0, ErrInvalidAccessToken
	}
	return userID, nil
}

func (s *Service) sign(claims jwt.MapClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
