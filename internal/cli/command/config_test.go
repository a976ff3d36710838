package command

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yndnr/worldsave/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worldsave.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfigShow(t *testing.T) {
	dir := t.TempDir()
	out := mustRun(t, dir, "config", "show")
	if !strings.Contains(out, "engine: file") {
		t.Errorf("yaml output = %q", out)
	}

	var cfg config.Config
	out = mustRun(t, dir, "-o", "json", "config", "show")
	if err := json.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("json output: %v\n%s", err, out)
	}
	if cfg.Storage.Dir != dir {
		t.Errorf("storage.dir = %q, want %q", cfg.Storage.Dir, dir)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("log.level = %q, want error", cfg.Log.Level)
	}
}

func TestConfigShow_FromFile(t *testing.T) {
	path := writeConfig(t, "save:\n  workers: 7\n")
	var cfg config.Config
	out := mustRun(t, t.TempDir(), "--config", path, "-o", "json", "config", "show")
	if err := json.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("json output: %v\n%s", err, out)
	}
	if cfg.Save.Workers != 7 {
		t.Errorf("save.workers = %d, want 7", cfg.Save.Workers)
	}
}

func TestConfigValidate(t *testing.T) {
	good := writeConfig(t, "storage:\n  engine: badger\n")
	out := mustRun(t, t.TempDir(), "config", "validate", good)
	if !strings.Contains(out, "valid") {
		t.Errorf("output = %q", out)
	}

	bad := writeConfig(t, "save:\n  workers: 0\n")
	if _, err := runApp(t, t.TempDir(), "config", "validate", bad); err == nil {
		t.Error("invalid config accepted")
	}

	if _, err := runApp(t, t.TempDir(), "config", "validate"); err == nil {
		t.Error("validate without a file succeeded")
	}
}
