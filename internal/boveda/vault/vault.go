// Package vault serves the contents of the encrypted archive.
//
// Every read follows one resolution rule: when a ".enc" sibling of the
// requested path exists and the master key is configured, the sealed
// copy is decrypted and the plaintext file is ignored. A sealed copy
// that fails to decrypt makes the asset absent; there is no falling
// back to a plaintext sibling. Without a sealed copy the plaintext file
// is served as-is, which keeps development trees working before
// anything has been sealed.
//
// The master key comes from the VAULT_KEY secret, resolved lazily on
// first use. A missing or malformed key is not fatal: the store keeps
// serving plaintext assets and reports sealed ones as missing.
package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/realarmaansidhu/NuestraBoveda/common/crypto"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/secrets"
)

// VaultKeyName is the secret holding the hex-encoded master key.
const VaultKeyName = "VAULT_KEY"

const (
	// DefaultMemoriesPath locates the memories index inside the archive.
	DefaultMemoriesPath = "assets/memories.json"
	// DefaultTranscriptPath locates the exported chat transcript.
	DefaultTranscriptPath = "whatsapp_chat.txt"

	// transcriptTailRunes bounds how much transcript is kept. Only the
	// tail fits a model prompt anyway.
	transcriptTailRunes = 15000
)

// ErrMissing marks an asset the store cannot serve, whether the file is
// absent, escapes the archive, or fails to decrypt. Callers present all
// of these identically.
var ErrMissing = errors.New("asset missing")

// Config wires a Store. Zero values fall back to the defaults above;
// BaseDir defaults to the working directory.
type Config struct {
	BaseDir        string
	MemoriesPath   string
	TranscriptPath string
	Secrets        *secrets.Resolver
	Logger         *slog.Logger
}

// Store resolves archive paths to their contents.
//
// The master key, the memories index and the chat transcript are each
// loaded once and memoized for the process lifetime. A Store is safe
// for concurrent use.
type Store struct {
	baseDir        string
	memoriesPath   string
	transcriptPath string
	secrets        *secrets.Resolver
	logger         *slog.Logger

	keyOnce sync.Once
	key     []byte

	memOnce  sync.Once
	memories []Memory

	chatOnce sync.Once
	chat     string
}

// New returns a Store over the archive rooted at cfg.BaseDir.
func New(cfg Config) *Store {
	if cfg.BaseDir == "" {
		cfg.BaseDir = "."
	}
	if cfg.MemoriesPath == "" {
		cfg.MemoriesPath = DefaultMemoriesPath
	}
	if cfg.TranscriptPath == "" {
		cfg.TranscriptPath = DefaultTranscriptPath
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Store{
		baseDir:        cfg.BaseDir,
		memoriesPath:   cfg.MemoriesPath,
		transcriptPath: cfg.TranscriptPath,
		secrets:        cfg.Secrets,
		logger:         cfg.Logger,
	}
}

// Bytes returns the asset's raw contents. Wraps ErrMissing when the
// asset cannot be served.
func (s *Store) Bytes(rel string) ([]byte, error) {
	return s.resolve(rel)
}

// Text returns the asset decoded as text.
func (s *Store) Text(rel string) (string, error) {
	data, err := s.resolve(rel)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// JSON decodes the asset into v.
func (s *Store) JSON(rel string, v any) error {
	data, err := s.resolve(rel)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("vault: decode %s: %w", rel, err)
	}
	return nil
}

func (s *Store) resolve(rel string) ([]byte, error) {
	path, ok := s.confine(rel)
	if !ok {
		return nil, fmt.Errorf("vault: %s: %w", rel, ErrMissing)
	}

	sealedPath := path + crypto.SealedExt
	if _, err := os.Stat(sealedPath); err == nil {
		if key := s.masterKey(); key != nil {
			sealed, err := os.ReadFile(sealedPath)
			if err != nil {
				s.logger.Warn("vault: read sealed asset", "path", rel, "error", err)
				return nil, fmt.Errorf("vault: %s: %w", rel, ErrMissing)
			}
			plain, err := crypto.Decrypt(key, sealed)
			if err != nil {
				// Wrong key or tampered file. Never serve the plaintext
				// sibling in this case.
				s.logger.Warn("vault: decrypt failed", "path", rel, "error", err)
				return nil, fmt.Errorf("vault: %s: %w", rel, ErrMissing)
			}
			return plain, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vault: %s: %w", rel, ErrMissing)
	}
	return data, nil
}

// confine maps rel onto the archive, refusing absolute paths and any
// traversal outside the base directory.
func (s *Store) confine(rel string) (string, bool) {
	rel = strings.TrimSpace(rel)
	if rel == "" || filepath.IsAbs(rel) {
		return "", false
	}
	rel = filepath.Clean(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.Join(s.baseDir, rel), true
}

func (s *Store) masterKey() []byte {
	s.keyOnce.Do(func() {
		if s.secrets == nil {
			return
		}
		raw, err := s.secrets.Resolve(VaultKeyName)
		if err != nil {
			s.logger.Info("vault: no master key configured, sealed assets unavailable")
			return
		}
		key, err := crypto.ParseMasterKey(raw)
		if err != nil {
			s.logger.Warn("vault: master key rejected", "error", err)
			return
		}
		s.key = key
	})
	return s.key
}

// MediaKind classifies an asset path by extension for presentation.
func MediaKind(rel string) string {
	switch strings.ToLower(filepath.Ext(rel)) {
	case ".png", ".jpg", ".jpeg":
		return "image"
	case ".mp4", ".mov":
		return "video"
	default:
		return "file"
	}
}
