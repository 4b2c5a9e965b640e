// Encryptvault seals the archive so only the server can read it.
//
// It walks the assets directory and the chat transcript, writing a
// .enc sibling next to every supported file. The server prefers the
// sealed sibling whenever its master key is configured; the plaintext
// originals can then be removed from the deployment.
//
// Configuration is loaded from environment variables:
//
//	VAULT_KEY               - hex-encoded 32-byte master key. When unset,
//	                          the key file below is used (and created on
//	                          first run).
//	BOVEDA_KEY_FILE         - path to the master key file (default: "vault.key")
//	BOVEDA_VAULT_DIR        - archive root (default: ".")
//	BOVEDA_ASSETS_DIR       - assets directory inside the archive
//	                          (default: "assets")
//	BOVEDA_CHAT_TRANSCRIPT  - chat transcript inside the archive
//	                          (default: "whatsapp_chat.txt")
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/realarmaansidhu/NuestraBoveda/common/crypto"
	"github.com/realarmaansidhu/NuestraBoveda/common/environment"
	"github.com/realarmaansidhu/NuestraBoveda/internal/sealer"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	key, err := resolveKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\nGenerate a key with: openssl rand -hex 32\n", err)
		os.Exit(1)
	}

	s, err := sealer.New(sealer.Config{Key: key})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	vaultDir := environment.StringOr("BOVEDA_VAULT_DIR", ".")
	assetsDir := filepath.Join(vaultDir, environment.StringOr("BOVEDA_ASSETS_DIR", "assets"))
	transcript := filepath.Join(vaultDir, environment.StringOr("BOVEDA_CHAT_TRANSCRIPT", "whatsapp_chat.txt"))

	var total sealer.Result

	if _, err := os.Stat(assetsDir); err != nil {
		slog.Warn("assets directory not found, skipping", "dir", assetsDir)
	} else {
		res, err := s.SealDir(assetsDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		total = res
	}

	if _, err := os.Stat(transcript); err != nil {
		slog.Warn("chat transcript not found, skipping", "path", transcript)
	} else if err := s.Seal(transcript); err != nil {
		slog.Warn("transcript failed", "path", transcript, "error", err)
		total.Failed++
	} else {
		slog.Info("sealer: sealed", "path", transcript)
		total.Sealed++
	}

	slog.Info("sealing complete",
		"sealed", total.Sealed,
		"skipped", total.Skipped,
		"failed", total.Failed)

	if total.Failed > 0 {
		os.Exit(1)
	}
}

// resolveKey prefers VAULT_KEY from the environment and falls back to
// the key file, creating it on first use.
func resolveKey() ([]byte, error) {
	if v := environment.String("VAULT_KEY"); v != "" {
		return crypto.ParseMasterKey(v)
	}

	keyFile := environment.StringOr("BOVEDA_KEY_FILE", "vault.key")
	key, generated, err := crypto.LoadOrCreateKeyFile(keyFile)
	if err != nil {
		return nil, err
	}
	if generated {
		slog.Info("generated a new master key",
			"path", keyFile,
			"hint", "set the VAULT_KEY secret to this file's contents so the server can unseal the archive")
	}
	return key, nil
}
