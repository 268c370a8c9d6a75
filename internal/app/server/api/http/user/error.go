package user

import "net/http"

// oauthError ошибка token endpoint в формате RFC 6749 5.2
type oauthError struct {
	Status      int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *oauthError) Error() string {
	if e.Description != "" {
		return e.Code + ": " + e.Description
	}
	return e.Code
}

func (e *oauthError) GetStatus() int {
	return e.Status
}

func invalidRequest(description string) *oauthError {
	return &oauthError{Status: http.StatusBadRequest, Code: "invalid_request", Description: description}
}

func invalidGrant(description string) *oauthError {
	return &oauthError{Status: http.StatusBadRequest, Code: "invalid_grant", Description: description}
}

func invalidClient() *oauthError {
	return &oauthError{Status: http.StatusUnauthorized, Code: "invalid_client", Description: "client_id is required"}
}

func unsupportedGrant(grant string) *oauthError {
	return &oauthError{Status: http.StatusBadRequest, Code: "unsupported_grant_type", Description: grant}
}
