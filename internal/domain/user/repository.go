package user

import (
	"context"
	"strings"
)

// Repository учетные записи кассиров сервера документов.
// Логины приходят в хранилище уже нормализованными через NormalizeLogin.
type Repository interface {
	// Create возвращает ErrExists, если логин занят
	Create(ctx context.Context, login, passwordHash string) (int, error)
	// FindByLogin возвращает ErrNotFound для неизвестного логина
	FindByLogin(ctx context.Context, login string) (User, error)
}

// NormalizeLogin обрезает пробелы; e-mail сравнивается без учета регистра,
// имя пользователя хранится как введено
func NormalizeLogin(login string) string {
	login = strings.TrimSpace(login)
	if strings.ContainsRune(login, '@') {
		return strings.ToLower(login)
	}
	return login
}
