package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
)

const (
	// Параметры Argon2id
	argon2Time    = 1
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4
	argon2KeyLen  = 32 // AES-256

	deviceKeyLength      = 32
	saltLength           = 16
	deviceKeyPermissions = 0600
)

var ErrInvalidDeviceKey = errors.New("invalid device key")

// loadOrCreateDeviceKey читает случайный ключ устройства, создавая его при первом запуске
func loadOrCreateDeviceKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != deviceKeyLength {
			return nil, fmt.Errorf("%w: %s", ErrInvalidDeviceKey, path)
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("ошибка чтения ключа устройства: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("ошибка создания директории ключа: %w", err)
	}

	key, err = GenerateRandomBytes(deviceKeyLength)
	if err != nil {
		return nil, err
	}

	// O_EXCL: при гонке двух процессов побеждает первый записавший
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, deviceKeyPermissions)
	if errors.Is(err, os.ErrExist) {
		return loadOrCreateDeviceKey(path)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка создания ключа устройства: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(key); err != nil {
		return nil, fmt.Errorf("ошибка записи ключа устройства: %w", err)
	}
	return key, nil
}

// deriveKey получает ключ шифрования файла из ключа устройства
func deriveKey(deviceKey, salt []byte) []byte {
	return argon2.IDKey(deviceKey, salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
}

// encryptWithKey шифрует данные AES-GCM; nonce в начале шифротекста
func encryptWithKey(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("ошибка генерации nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// decryptWithKey расшифровывает данные с использованием AES-GCM
func decryptWithKey(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("шифротекст слишком короткий")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка расшифровки: %w", err)
	}

	return plaintext, nil
}
