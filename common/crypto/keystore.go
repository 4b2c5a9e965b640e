package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// ParseMasterKey decodes a 64-character hex string (32 bytes / 256 bits) into
// a raw vault key. VAULT_KEY is distributed in this form, and vault.key files
// written by the encryptvault tool contain the same encoding.
//
// Generate a suitable key with:
//
//	openssl rand -hex 32
func ParseMasterKey(rawHex string) ([]byte, error) {
	raw := strings.TrimSpace(rawHex)
	if raw == "" {
		return nil, fmt.Errorf("vault key is empty")
	}

	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid hex in vault key: %w", err)
	}

	if len(key) != KeySize {
		return nil, fmt.Errorf("vault key must be %d bytes (%d hex chars), got %d bytes",
			KeySize, KeySize*2, len(key))
	}

	return key, nil
}

// LoadOrCreateKeyFile returns the vault key stored at path, generating and
// persisting a fresh one when the file does not exist. The file holds the key
// hex-encoded so its contents can be copied straight into VAULT_KEY.
//
// The second return value reports whether a new key was generated, so callers
// can tell the operator to record it.
func LoadOrCreateKeyFile(path string) ([]byte, bool, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		key, perr := ParseMasterKey(string(raw))
		if perr != nil {
			return nil, false, fmt.Errorf("key file %s: %w", path, perr)
		}
		return key, false, nil
	}
	if !os.IsNotExist(err) {
		return nil, false, fmt.Errorf("read key file %s: %w", path, err)
	}

	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("generate vault key: %w", err)
	}

	encoded := hex.EncodeToString(key)
	if err := os.WriteFile(path, []byte(encoded+"\n"), 0o600); err != nil {
		return nil, false, fmt.Errorf("write key file %s: %w", path, err)
	}

	return key, true, nil
}
