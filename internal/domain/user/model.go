package user

import "time"

// User кассир или администратор сервера документов
type User struct {
	ID        int
	Login     string
	Password  string // хэш
	CreatedAt time.Time
}
