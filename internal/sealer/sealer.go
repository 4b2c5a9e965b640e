// Package sealer encrypts an archive in place, writing a .enc sibling
// next to each asset so the server can prefer sealed content over the
// plaintext it shadows.
package sealer

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/realarmaansidhu/NuestraBoveda/common/crypto"
)

// sealableExts are the asset types the tool seals. Anything else in
// the archive is left untouched.
var sealableExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".mp4":  true,
	".mov":  true,
	".json": true,
	".txt":  true,
}

// Result counts one sealing run.
type Result struct {
	Sealed  int
	Skipped int
	Failed  int
}

// Config wires a Sealer.
type Config struct {
	Key    []byte
	Logger *slog.Logger
}

// Sealer writes encrypted siblings for archive assets.
type Sealer struct {
	key    []byte
	logger *slog.Logger
}

// New returns a Sealer for the given master key.
func New(cfg Config) (*Sealer, error) {
	if len(cfg.Key) != crypto.KeySize {
		return nil, crypto.ErrInvalidKeySize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Sealer{key: cfg.Key, logger: cfg.Logger}, nil
}

// Seal encrypts one file, writing the .enc sibling. An existing
// sibling is overwritten, which is how the archive is re-keyed.
func (s *Sealer) Seal(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("sealer: read %s: %w", path, err)
	}
	sealed, err := crypto.Encrypt(s.key, data)
	if err != nil {
		return fmt.Errorf("sealer: encrypt %s: %w", path, err)
	}
	sealedPath := path + crypto.SealedExt
	if err := os.WriteFile(sealedPath, sealed, 0o600); err != nil {
		return fmt.Errorf("sealer: write %s: %w", sealedPath, err)
	}
	return nil
}

// SealDir walks dir and seals every sealable asset. Per-file failures
// are logged and counted, the walk continues.
func (s *Sealer) SealDir(dir string) (Result, error) {
	var res Result
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !shouldSeal(d.Name()) {
			res.Skipped++
			return nil
		}
		if err := s.Seal(path); err != nil {
			s.logger.Warn("sealer: asset failed", "path", path, "error", err)
			res.Failed++
			return nil
		}
		s.logger.Info("sealer: sealed", "path", path)
		res.Sealed++
		return nil
	})
	if walkErr != nil {
		return res, fmt.Errorf("sealer: walk %s: %w", dir, walkErr)
	}
	return res, nil
}

// shouldSeal filters sealed artifacts, sample files shipped for
// development, and extensions the server never resolves.
func shouldSeal(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, crypto.SealedExt) {
		return false
	}
	if strings.Contains(lower, "example") {
		return false
	}
	return sealableExts[filepath.Ext(lower)]
}
