package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// GenerateRandomBytes генерирует криптографически безопасные случайные байты
func GenerateRandomBytes(size int) ([]byte, error) {
	bytes := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, bytes); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return bytes, nil
}

// SiteHash имя файла, привязанное к сайту
func SiteHash(site string) string {
	sum := sha256.Sum256([]byte(site))
	return hex.EncodeToString(sum[:])
}

// clearMemory затирает чувствительные данные из памяти
func clearMemory(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
