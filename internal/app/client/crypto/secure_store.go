package crypto

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"possync/internal/domain/session"
)

const (
	storeVersion     = 1
	storePermissions = 0600
	deviceKeyFile    = "device.key"
)

// storeFile формат файла токенов на диске
type storeFile struct {
	Version   int       `json:"version"`
	Site      string    `json:"site"`
	Salt      string    `json:"salt"` // hex
	Data      string    `json:"data"` // hex, AES-GCM
	UpdatedAt time.Time `json:"updated_at"`
}

// SecureStore зашифрованное хранилище OAuth-токенов одного сайта.
// Чтение, слияние и запись выполняются под одним мьютексом.
type SecureStore struct {
	mu        sync.Mutex
	path      string
	site      string
	deviceKey []byte
	now       func() time.Time
}

func NewSecureStore(dir, site string) (*SecureStore, error) {
	if site == "" {
		return nil, fmt.Errorf("site не может быть пустым")
	}

	key, err := loadOrCreateDeviceKey(filepath.Join(dir, deviceKeyFile))
	if err != nil {
		return nil, err
	}

	return &SecureStore{
		path:      filepath.Join(dir, "tokens-"+SiteHash(site)+".enc"),
		site:      site,
		deviceKey: key,
		now:       time.Now,
	}, nil
}

// Save сохраняет токены, дополняя их ранее сохраненными значениями
func (s *SecureStore) Save(_ context.Context, tokens session.Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// нечитаемый файл перезаписывается новыми токенами
	prev, _ := s.load()

	merged := tokens.Merge(prev)
	if merged.IssuedAt.IsZero() {
		merged.IssuedAt = s.now()
	}

	return s.write(merged)
}

func (s *SecureStore) Load(_ context.Context) (*session.Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load()
}

func (s *SecureStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("ошибка удаления токенов: %w", err)
	}
	return nil
}

func (s *SecureStore) load() (*session.Tokens, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения токенов: %w", err)
	}

	var file storeFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("ошибка декодирования файла токенов: %w", err)
	}
	if file.Site != s.site {
		return nil, fmt.Errorf("файл токенов принадлежит другому сайту")
	}

	salt, err := hex.DecodeString(file.Salt)
	if err != nil {
		return nil, fmt.Errorf("ошибка декодирования соли: %w", err)
	}
	ciphertext, err := hex.DecodeString(file.Data)
	if err != nil {
		return nil, fmt.Errorf("ошибка декодирования данных: %w", err)
	}

	key := deriveKey(s.deviceKey, salt)
	defer clearMemory(key)

	plaintext, err := decryptWithKey(key, ciphertext)
	if err != nil {
		return nil, err
	}
	defer clearMemory(plaintext)

	var tokens session.Tokens
	if err := json.Unmarshal(plaintext, &tokens); err != nil {
		return nil, fmt.Errorf("ошибка декодирования токенов: %w", err)
	}
	return &tokens, nil
}

func (s *SecureStore) write(tokens session.Tokens) error {
	plaintext, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("ошибка сериализации токенов: %w", err)
	}
	defer clearMemory(plaintext)

	salt, err := GenerateRandomBytes(saltLength)
	if err != nil {
		return err
	}

	key := deriveKey(s.deviceKey, salt)
	defer clearMemory(key)

	ciphertext, err := encryptWithKey(key, plaintext)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(storeFile{
		Version:   storeVersion,
		Site:      s.site,
		Salt:      hex.EncodeToString(salt),
		Data:      hex.EncodeToString(ciphertext),
		UpdatedAt: s.now(),
	}, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, storePermissions); err != nil {
		return fmt.Errorf("ошибка записи токенов: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("ошибка записи токенов: %w", err)
	}
	return nil
}
