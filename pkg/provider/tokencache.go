package provider

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fint-dev/fint/pkg/crypto"
	"github.com/fint-dev/fint/pkg/domain"
)

// TokenCache persists provider tokens between runs so every sync doesn't
// burn a fresh token. The file holds the token encrypted and signed;
// tokens grant read access to bank data and don't belong on disk in
// plaintext.
type TokenCache struct {
	path string
	key  string
	sig  string
}

// NewTokenCache caches tokens at path, encrypted with key and signed
// with sig (both at least 32 chars).
func NewTokenCache(path, key, sig string) *TokenCache {
	return &TokenCache{path: path, key: key, sig: sig}
}

// Load returns the cached token, or an error if there is none or it
// fails decryption / signature checks.
func (c *TokenCache) Load() (*domain.Token, error) {
	blob, err := os.ReadFile(c.path)
	if err != nil {
		return nil, err
	}

	plain, err := crypto.Decrypt(string(blob), c.key, c.sig)
	if err != nil {
		return nil, fmt.Errorf("decrypting token cache: %w", err)
	}

	tkn := &domain.Token{}
	return tkn, json.Unmarshal(plain, tkn)
}

// Save encrypts and writes the token.
func (c *TokenCache) Save(tkn *domain.Token) error {
	plain, err := json.Marshal(tkn)
	if err != nil {
		return err
	}

	blob, err := crypto.Encrypt(plain, c.key, c.sig)
	if err != nil {
		return fmt.Errorf("encrypting token cache: %w", err)
	}

	return os.WriteFile(c.path, []byte(blob), 0600)
}
