package command

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yndnr/worldsave/internal/core/domain"
	"github.com/yndnr/worldsave/pkg/crypto/adaptive"
)

func newKey(t *testing.T, dir string) string {
	t.Helper()
	key := strings.TrimSpace(mustRun(t, dir, "keygen"))
	if _, err := adaptive.ParseKey(key); err != nil {
		t.Fatalf("ParseKey(%q) error = %v", key, err)
	}
	return key
}

func TestKeygen(t *testing.T) {
	dir := t.TempDir()
	a, b := newKey(t, dir), newKey(t, dir)
	if a == b {
		t.Error("two generated keys are equal")
	}
}

func TestDemo_SealedSaveLoad(t *testing.T) {
	dir := t.TempDir()
	key := newKey(t, dir)

	mustRun(t, dir, "--encryption-key", key, "demo", "save", "--entities", "10", "vault")
	raw, err := os.ReadFile(filepath.Join(dir, "vault.wsav"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(raw), "WSSEAL") {
		t.Errorf("slot file does not start with the seal header")
	}

	out := mustRun(t, dir, "--encryption-key", key, "demo", "load", "--entities", "10", "vault")
	if !strings.Contains(out, "11 entities, 1 spawned") {
		t.Errorf("load output = %q", out)
	}

	if _, err := runApp(t, dir, "demo", "load", "--entities", "10", "vault"); err == nil {
		t.Error("sealed slot loaded without a key")
	}
	other := newKey(t, dir)
	if _, err := runApp(t, dir, "--encryption-key", other, "demo", "load", "vault"); !errors.Is(err, domain.ErrSlotCorrupted) {
		t.Errorf("load(wrong key) error = %v, want ErrSlotCorrupted", err)
	}
}

func TestApp_BadEncryptionKey(t *testing.T) {
	if _, err := runApp(t, t.TempDir(), "--encryption-key", "short", "slots", "list"); err == nil {
		t.Error("malformed key accepted")
	}
}

func TestConfigShow_MasksKey(t *testing.T) {
	dir := t.TempDir()
	key := newKey(t, dir)
	out := mustRun(t, dir, "--encryption-key", key, "config", "show")
	if strings.Contains(out, key) {
		t.Errorf("config show printed the key: %q", out)
	}
	if !strings.Contains(out, redacted) {
		t.Errorf("config show output = %q, want %s", out, redacted)
	}
}
