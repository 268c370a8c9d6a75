package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Tokens OAuth-токены одного сайта
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	ExpiresIn    int64     `json:"expires_in,omitempty"`
	UserID       string    `json:"user_id,omitempty"`
	IssuedAt     time.Time `json:"issued_at"`
}

// Merge дополняет пустые поля значениями из prev.
// Присутствующие refresh и id токены никогда не затираются пустыми.
func (t Tokens) Merge(prev *Tokens) Tokens {
	if prev == nil {
		return t
	}
	if t.AccessToken == "" {
		t.AccessToken = prev.AccessToken
		if t.ExpiresIn == 0 {
			t.ExpiresIn = prev.ExpiresIn
		}
		if t.IssuedAt.IsZero() {
			t.IssuedAt = prev.IssuedAt
		}
	}
	if t.RefreshToken == "" {
		t.RefreshToken = prev.RefreshToken
	}
	if t.IDToken == "" {
		t.IDToken = prev.IDToken
	}
	if t.UserID == "" {
		t.UserID = prev.UserID
	}
	return t
}

// ExpiresAt берет exp из id_token, затем из access_token (если это JWT),
// затем issued_at + expires_in. exp из JWT, который раньше issued_at + expires_in,
// остался от прошлой выдачи (Merge сохраняет старый id_token) и пропускается.
// ok=false, если срок неизвестен.
func (t Tokens) ExpiresAt() (time.Time, bool) {
	var granted time.Time
	if t.ExpiresIn > 0 && !t.IssuedAt.IsZero() {
		granted = t.IssuedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
	}

	for _, raw := range []string{t.IDToken, t.AccessToken} {
		exp, ok := expClaim(raw)
		if !ok || exp.Before(granted) {
			continue
		}
		return exp, true
	}
	if !granted.IsZero() {
		return granted, true
	}
	return time.Time{}, false
}

func expClaim(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	token, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Validity производное состояние сессии
type Validity string

const (
	Valid      Validity = "VALID"
	NearExpiry Validity = "NEAR_EXPIRY"
	Expired    Validity = "EXPIRED"
	Invalid    Validity = "INVALID"
)
