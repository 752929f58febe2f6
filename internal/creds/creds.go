// Package creds stores the Mirra API key sealed at rest. The key file is
// encrypted with a per-machine secret so a copied credentials file is useless
// on another host.
package creds

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/nacl/secretbox"
)

// ErrNoCredentials is returned when no API key has been stored yet.
var ErrNoCredentials = errors.New("no credentials stored (run `mirra-bridge login`)")

// GenerateSecretKey generates a new 32-byte machine secret.
func GenerateSecretKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// SaveSecretKey writes the machine secret to path, base64-encoded with
// restrictive permissions.
func SaveSecretKey(path string, key []byte) error {
	encoded := base64.StdEncoding.EncodeToString(key)
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}
	return nil
}

// LoadSecretKey reads the machine secret from path.
func LoadSecretKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid key length: %d (expected 32)", len(key))
	}
	return key, nil
}

// GetOrCreateSecretKey loads the machine secret, generating one on first use.
func GetOrCreateSecretKey(path string) ([]byte, error) {
	if key, err := LoadSecretKey(path); err == nil {
		return key, nil
	}
	key, err := GenerateSecretKey()
	if err != nil {
		return nil, err
	}
	if err := SaveSecretKey(path, key); err != nil {
		return nil, err
	}
	return key, nil
}

// GetOrCreateMachineID loads or generates the stable machine identifier.
func GetOrCreateMachineID(path string) (string, error) {
	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	}
	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id), 0o600); err != nil {
		return "", fmt.Errorf("failed to save machine ID: %w", err)
	}
	return id, nil
}

// SaveAPIKey seals the API key with the machine secret and writes it to path.
// Format: [nonce (24 bytes)][secretbox ciphertext], base64-encoded.
func SaveAPIKey(path string, apiKey string, secret []byte) error {
	boxKey, err := toBoxKey(secret)
	if err != nil {
		return err
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(apiKey), &nonce, boxKey)
	encoded := base64.StdEncoding.EncodeToString(sealed)
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

// LoadAPIKey unseals the API key from path.
func LoadAPIKey(path string, secret []byte) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoCredentials
		}
		return "", fmt.Errorf("failed to read credentials: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return "", fmt.Errorf("failed to decode credentials: %w", err)
	}
	if len(sealed) < 24 {
		return "", fmt.Errorf("credentials file too short")
	}
	boxKey, err := toBoxKey(secret)
	if err != nil {
		return "", err
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	plain, ok := secretbox.Open(nil, sealed[24:], &nonce, boxKey)
	if !ok {
		return "", fmt.Errorf("failed to unseal credentials (machine key changed?)")
	}
	return string(plain), nil
}

func toBoxKey(secret []byte) (*[32]byte, error) {
	if len(secret) != 32 {
		return nil, fmt.Errorf("invalid secret length: %d (expected 32)", len(secret))
	}
	var key [32]byte
	copy(key[:], secret)
	return &key, nil
}
