package user

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Ограничения логина кассира. Логин либо e-mail, либо короткое имя пользователя.
const (
	MinUsernameLen  = 3
	MaxUsernameLen  = 64
	MaxEmailLen     = 254
	MaxEmailLocal   = 64
	MinPasswordLen  = 8
	MaxPasswordSize = 72 // байт, предел bcrypt
)

// Validator проверяет учетные данные при регистрации и входе
type Validator interface {
	ValidateRegister(login, password string) error
	ValidateLogin(login string) error
	ValidatePassword(password string) error
}

// CredentialsValidator правила для логинов кассиров
type CredentialsValidator struct{}

func NewCredentialsValidator() *CredentialsValidator {
	return &CredentialsValidator{}
}

// ValidateRegister проверяет логин, пароль и их совпадение
func (v *CredentialsValidator) ValidateRegister(login, password string) error {
	if err := v.ValidateLogin(login); err != nil {
		return fmt.Errorf("login validation failed: %w", err)
	}
	if err := v.ValidatePassword(password); err != nil {
		return fmt.Errorf("password validation failed: %w", err)
	}
	if strings.EqualFold(login, password) {
		return errors.New("password validation failed: password must differ from login")
	}
	return nil
}

// ValidateLogin логин с '@' проверяется как e-mail, иначе как имя пользователя
func (v *CredentialsValidator) ValidateLogin(login string) error {
	if login == "" {
		return errors.New("login is required")
	}
	if strings.ContainsRune(login, '@') {
		return validateEmail(login)
	}
	return validateUsername(login)
}

// ValidatePassword проверяет только длину
func (v *CredentialsValidator) ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLen {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLen)
	}
	if len(password) > MaxPasswordSize {
		return fmt.Errorf("password must be at most %d bytes", MaxPasswordSize)
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password must not be blank")
	}
	return nil
}

func validateEmail(login string) error {
	if len(login) > MaxEmailLen {
		return fmt.Errorf("email must be at most %d characters", MaxEmailLen)
	}

	addr, err := mail.ParseAddress(login)
	// отображаемое имя и угловые скобки не допускаются
	if err != nil || addr.Name != "" || addr.Address != login {
		return fmt.Errorf("invalid email %q", login)
	}

	local, domain, _ := strings.Cut(login, "@")
	if len(local) > MaxEmailLocal {
		return fmt.Errorf("email local part must be at most %d characters", MaxEmailLocal)
	}
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return fmt.Errorf("invalid email domain %q", domain)
	}
	return nil
}

func validateUsername(login string) error {
	n := utf8.RuneCountInString(login)
	if n < MinUsernameLen {
		return fmt.Errorf("username must be at least %d characters", MinUsernameLen)
	}
	if n > MaxUsernameLen {
		return fmt.Errorf("username must be at most %d characters", MaxUsernameLen)
	}

	for i, r := range login {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
		case i > 0 && (r == '_' || r == '-' || r == '.'):
		default:
			return errors.New("username must start with a letter or digit and contain only letters, digits, '_', '-', '.'")
		}
	}
	return nil
}
