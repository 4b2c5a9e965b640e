package vault_test

import (
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/realarmaansidhu/NuestraBoveda/common/crypto"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/secrets"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/vault"
)

func testKey(t *testing.T) (string, []byte) {
	t.Helper()
	key := make([]byte, crypto.KeySize)
	for i := range key {
		key[i] = byte(i + 1)
	}
	return hex.EncodeToString(key), key
}

func newTestStore(t *testing.T, dir string, sec map[string]string) *vault.Store {
	t.Helper()
	return vault.New(vault.Config{
		BaseDir: dir,
		Secrets: secrets.NewResolver(secrets.Static(sec)),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func sealFile(t *testing.T, key []byte, path string, plaintext []byte) {
	t.Helper()
	sealed, err := crypto.Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("seal %s: %v", path, err)
	}
	writeFile(t, path+crypto.SealedExt, sealed)
}

func TestStore_ServesPlaintextWhenUnsealed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "assets", "note.txt"), []byte("unsealed"))

	s := newTestStore(t, dir, nil)

	got, err := s.Bytes("assets/note.txt")
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if string(got) != "unsealed" {
		t.Errorf("Bytes = %q, want unsealed", got)
	}
}

func TestStore_PrefersSealedSibling(t *testing.T) {
	keyHex, key := testKey(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "assets", "note.txt")
	writeFile(t, path, []byte("stale plaintext"))
	sealFile(t, key, path, []byte("sealed truth"))

	s := newTestStore(t, dir, map[string]string{vault.VaultKeyName: keyHex})

	got, err := s.Bytes("assets/note.txt")
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if string(got) != "sealed truth" {
		t.Errorf("Bytes = %q, want the sealed contents", got)
	}
}

func TestStore_DecryptFailureIsMissingNotPlaintext(t *testing.T) {
	keyHex, key := testKey(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "assets", "note.txt")
	writeFile(t, path, []byte("plaintext sibling"))
	sealFile(t, key, path, []byte("sealed"))

	// Corrupt the sealed copy.
	sealedPath := path + crypto.SealedExt
	data, err := os.ReadFile(sealedPath)
	if err != nil {
		t.Fatalf("read sealed: %v", err)
	}
	data[len(data)-1] ^= 0x01
	writeFile(t, sealedPath, data)

	s := newTestStore(t, dir, map[string]string{vault.VaultKeyName: keyHex})

	if _, err := s.Bytes("assets/note.txt"); !errors.Is(err, vault.ErrMissing) {
		t.Errorf("Bytes after tamper = %v, want ErrMissing (no plaintext fallback)", err)
	}
}

func TestStore_SealedWithoutKey(t *testing.T) {
	_, key := testKey(t)
	dir := t.TempDir()

	withSibling := filepath.Join(dir, "assets", "both.txt")
	writeFile(t, withSibling, []byte("plaintext"))
	sealFile(t, key, withSibling, []byte("sealed"))

	sealedOnly := filepath.Join(dir, "assets", "only.txt")
	sealFile(t, key, sealedOnly, []byte("sealed"))

	s := newTestStore(t, dir, nil) // no VAULT_KEY

	got, err := s.Bytes("assets/both.txt")
	if err != nil {
		t.Fatalf("Bytes(both): %v", err)
	}
	if string(got) != "plaintext" {
		t.Errorf("Bytes(both) = %q, want the plaintext file", got)
	}

	if _, err := s.Bytes("assets/only.txt"); !errors.Is(err, vault.ErrMissing) {
		t.Errorf("Bytes(only) = %v, want ErrMissing", err)
	}
}

func TestStore_MalformedKeyBehavesAsNoKey(t *testing.T) {
	_, key := testKey(t)
	dir := t.TempDir()
	sealFile(t, key, filepath.Join(dir, "assets", "only.txt"), []byte("sealed"))
	writeFile(t, filepath.Join(dir, "assets", "open.txt"), []byte("open"))

	s := newTestStore(t, dir, map[string]string{vault.VaultKeyName: "not-hex-at-all"})

	if _, err := s.Bytes("assets/only.txt"); !errors.Is(err, vault.ErrMissing) {
		t.Errorf("sealed-only asset with bad key = %v, want ErrMissing", err)
	}

	got, err := s.Bytes("assets/open.txt")
	if err != nil || string(got) != "open" {
		t.Errorf("plaintext asset with bad key = (%q, %v), want (open, nil)", got, err)
	}
}

func TestStore_AbsentAsset(t *testing.T) {
	s := newTestStore(t, t.TempDir(), nil)
	if _, err := s.Bytes("assets/nothing-here.jpg"); !errors.Is(err, vault.ErrMissing) {
		t.Errorf("Bytes = %v, want ErrMissing", err)
	}
}

func TestStore_RefusesEscapingPaths(t *testing.T) {
	root := t.TempDir()
	base := filepath.Join(root, "archive")
	writeFile(t, filepath.Join(root, "outside.txt"), []byte("should stay hidden"))
	writeFile(t, filepath.Join(base, "inside.txt"), []byte("ok"))

	s := newTestStore(t, base, nil)

	cases := []struct {
		name string
		path string
	}{
		{"parent-traversal", "../outside.txt"},
		{"nested-traversal", "assets/../../outside.txt"},
		{"absolute", filepath.Join(root, "outside.txt")},
		{"empty", ""},
		{"dot", "."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Bytes(tc.path); !errors.Is(err, vault.ErrMissing) {
				t.Errorf("Bytes(%q) = %v, want ErrMissing", tc.path, err)
			}
		})
	}
}

func TestStore_TextAndJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "note.txt"), []byte("hola"))
	writeFile(t, filepath.Join(dir, "meta.json"), []byte(`{"name":"boveda"}`))

	s := newTestStore(t, dir, nil)

	text, err := s.Text("note.txt")
	if err != nil || text != "hola" {
		t.Errorf("Text = (%q, %v), want (hola, nil)", text, err)
	}

	var meta struct {
		Name string `json:"name"`
	}
	if err := s.JSON("meta.json", &meta); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if meta.Name != "boveda" {
		t.Errorf("decoded name = %q, want boveda", meta.Name)
	}

	if err := s.JSON("note.txt", &meta); err == nil {
		t.Error("JSON on non-JSON asset should error")
	}
}

func TestStore_MemoriesFromSealedIndex(t *testing.T) {
	keyHex, key := testKey(t)
	dir := t.TempDir()

	index := `[
		{"file_path": "assets/first_date.jpg", "title": "First date", "date": "2025-02-14"},
		{"file_path": "assets/roadtrip.mp4", "description": "The long way home"}
	]`
	sealFile(t, key, filepath.Join(dir, "assets", "memories.json"), []byte(index))

	s := newTestStore(t, dir, map[string]string{vault.VaultKeyName: keyHex})

	memories := s.Memories()
	if len(memories) != 2 {
		t.Fatalf("len(Memories) = %d, want 2", len(memories))
	}
	if memories[0].FilePath != "assets/first_date.jpg" {
		t.Errorf("first file_path = %q", memories[0].FilePath)
	}
	if memories[1].Description != "The long way home" {
		t.Errorf("second description = %q", memories[1].Description)
	}
}

func TestStore_MemoriesDefaultEmpty(t *testing.T) {
	cases := []struct {
		name  string
		index string // "" means no index file at all
	}{
		{"absent", ""},
		{"malformed", `{"file_path": not json`},
		{"wrong-shape", `{"file_path": "a.jpg"}`},
		{"missing-file-path", `[{"title": "no path here"}]`},
		{"empty-file-path", `[{"file_path": ""}]`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			if tc.index != "" {
				writeFile(t, filepath.Join(dir, "assets", "memories.json"), []byte(tc.index))
			}

			s := newTestStore(t, dir, nil)

			memories := s.Memories()
			if memories == nil {
				t.Fatal("Memories returned nil, want empty slice")
			}
			if len(memories) != 0 {
				t.Errorf("len(Memories) = %d, want 0", len(memories))
			}
		})
	}
}

func TestStore_MemoriesLoadedOnce(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "assets", "memories.json")
	writeFile(t, indexPath, []byte(`[{"file_path": "assets/a.jpg"}]`))

	s := newTestStore(t, dir, nil)

	if got := len(s.Memories()); got != 1 {
		t.Fatalf("first load = %d entries, want 1", got)
	}

	// Rewriting the file must not change the memoized result.
	writeFile(t, indexPath, []byte(`[{"file_path": "assets/a.jpg"}, {"file_path": "assets/b.jpg"}]`))

	if got := len(s.Memories()); got != 1 {
		t.Errorf("second load = %d entries, want memoized 1", got)
	}
}

func TestStore_ChatHistoryTail(t *testing.T) {
	dir := t.TempDir()
	transcript := strings.Repeat("a", 16000) + "END"
	writeFile(t, filepath.Join(dir, "whatsapp_chat.txt"), []byte(transcript))

	s := newTestStore(t, dir, nil)

	got := s.ChatHistory()
	if len(got) != 15000 {
		t.Errorf("len(ChatHistory) = %d, want 15000", len(got))
	}
	if !strings.HasSuffix(got, "END") {
		t.Error("ChatHistory should keep the end of the transcript")
	}
}

func TestStore_ChatHistoryShortAndAbsent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "whatsapp_chat.txt"), []byte("just us"))

	s := newTestStore(t, dir, nil)
	if got := s.ChatHistory(); got != "just us" {
		t.Errorf("short transcript = %q, want unchanged", got)
	}

	empty := newTestStore(t, t.TempDir(), nil)
	if got := empty.ChatHistory(); got != "" {
		t.Errorf("absent transcript = %q, want empty", got)
	}
}

func TestMediaKind(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"assets/photo.jpg", "image"},
		{"assets/PHOTO.JPEG", "image"},
		{"assets/icon.png", "image"},
		{"assets/clip.mp4", "video"},
		{"assets/clip.MOV", "video"},
		{"assets/letter.pdf", "file"},
		{"assets/noext", "file"},
	}

	for _, tc := range cases {
		if got := vault.MediaKind(tc.path); got != tc.want {
			t.Errorf("MediaKind(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}
