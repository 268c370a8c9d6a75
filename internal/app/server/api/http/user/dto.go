package user

import "possync/internal/domain/auth"

type registerInput struct {
	Body RegisterRequest
}

type RegisterRequest struct {
	Username string `json:"username" minLength:"1" doc:"Login, usually an email"`
	Password string `json:"password" minLength:"1"`
}

type registerOutput struct {
	Body RegisterResponse
}

type RegisterResponse struct {
	ID     int    `json:"user_id"`
	Status string `json:"status"`
}

// tokenInput form-urlencoded тело запроса OAuth2 token endpoint
type tokenInput struct {
	RawBody []byte `contentType:"application/x-www-form-urlencoded"`
}

type tokenOutput struct {
	CacheControl string `header:"Cache-Control"`
	Body         TokenResponse
}

// TokenResponse ответ в формате OAuth2 с user_id
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	Scope        string `json:"scope,omitempty"`
	UserID       string `json:"user_id"`
}

func newTokenResponse(pair auth.TokenPair, userID string) TokenResponse {
	return TokenResponse{
		AccessToken:  pair.AccessToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
		RefreshToken: pair.RefreshToken,
		IDToken:      pair.IDToken,
		Scope:        pair.Scope,
		UserID:       userID,
	}
}
