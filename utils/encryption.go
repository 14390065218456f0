package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"outreach/config"
	"outreach/models"
)

const encryptedPrefix = "enc:"

func newGCM() (cipher.AEAD, error) {
	block, err := aes.NewCipher([]byte(config.AppConfig.EncryptionKey))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	gcm, err := newGCM()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

func Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	gcm, err := newGCM()
	if err != nil {
		return "", err
	}

	decoded, err := base64.URLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	if len(decoded) < gcm.NonceSize() {
		return "", errors.New("ciphertext too short")
	}

	nonce, sealed := decoded[:gcm.NonceSize()], decoded[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// EncryptConfigSecrets returns a copy of cfg with credential values
// encrypted. Without ENCRYPTION_KEY the map is returned unchanged.
func EncryptConfigSecrets(cfg models.JSONMap) (models.JSONMap, error) {
	if cfg == nil || config.AppConfig.EncryptionKey == "" {
		return cfg, nil
	}
	out := make(models.JSONMap, len(cfg))
	for k, v := range cfg {
		s, ok := v.(string)
		if !ok || !models.IsSecretConfigKey(k) || strings.HasPrefix(s, encryptedPrefix) {
			out[k] = v
			continue
		}
		enc, err := Encrypt(s)
		if err != nil {
			return nil, err
		}
		out[k] = encryptedPrefix + enc
	}
	return out, nil
}

// DecryptConfigSecrets reverses EncryptConfigSecrets for the delivery worker
func DecryptConfigSecrets(cfg models.JSONMap) (models.JSONMap, error) {
	if cfg == nil {
		return nil, nil
	}
	out := make(models.JSONMap, len(cfg))
	for k, v := range cfg {
		s, ok := v.(string)
		if !ok || !strings.HasPrefix(s, encryptedPrefix) {
			out[k] = v
			continue
		}
		plain, err := Decrypt(strings.TrimPrefix(s, encryptedPrefix))
		if err != nil {
			return nil, err
		}
		out[k] = plain
	}
	return out, nil
}
