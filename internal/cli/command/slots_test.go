package command

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/worldsave/internal/core/domain"
)

func TestSlots_ListEmpty(t *testing.T) {
	out := mustRun(t, t.TempDir(), "slots", "list")
	if !strings.Contains(out, "No slots found") {
		t.Errorf("output = %q", out)
	}

	out = mustRun(t, t.TempDir(), "-o", "json", "slots", "list")
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("json output = %q, want []", out)
	}
}

func TestSlots_ListAndInfo(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "demo", "save", "--entities", "20", "--subname", "before the gate", "beta")
	mustRun(t, dir, "demo", "save", "--entities", "5", "alpha")

	var rows []slotRow
	out := mustRun(t, dir, "-o", "json", "slots", "list", "--sort=false")
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("list output is not JSON: %v\n%s", err, out)
	}
	var names []string
	for _, r := range rows {
		names = append(names, r.Name)
		if r.Level != "sample" || r.ID == "" || r.Size == "" {
			t.Errorf("row = %+v", r)
		}
	}
	if !slices.Equal(names, []string{"alpha", "beta"}) {
		t.Errorf("slots = %v, want [alpha beta]", names)
	}

	out = mustRun(t, dir, "slots", "list")
	if !strings.HasPrefix(out, "NAME") || strings.Contains(out, "SIZE") {
		t.Errorf("table output = %q", out)
	}
	out = mustRun(t, dir, "--wide", "slots", "list")
	if !strings.Contains(out, "SIZE") {
		t.Errorf("wide output has no SIZE column: %q", out)
	}

	var info infoView
	out = mustRun(t, dir, "-o", "json", "slots", "info", "beta")
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("info output is not JSON: %v\n%s", err, out)
	}
	if info.Name != "beta" || info.Subname != "before the gate" || info.Custom["generator"] != "demo" {
		t.Errorf("info = %+v", info)
	}
}

func TestSlots_Inspect(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "demo", "save", "--entities", "20", "quick")

	var view inspectView
	out := mustRun(t, dir, "-o", "json", "slots", "inspect", "quick")
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("inspect output is not JSON: %v\n%s", err, out)
	}
	if view.Session != "Session" {
		t.Errorf("session = %q, want Session", view.Session)
	}
	// 20 crates plus 2 projectiles.
	if len(view.Entities) != 22 {
		t.Fatalf("entities = %d, want 22", len(view.Entities))
	}
	procedural := 0
	for _, e := range view.Entities {
		if e.Procedural {
			procedural++
		}
	}
	if procedural != 2 {
		t.Errorf("procedural entities = %d, want 2", procedural)
	}
	if c := view.Entities[0]; c.Name != "crate-000" || c.Components != 2 || c.PayloadBytes == 0 {
		t.Errorf("first entity = %+v", c)
	}

	out = mustRun(t, dir, "slots", "inspect", "quick")
	if !strings.Contains(out, "Entities: 22") || !strings.Contains(out, "crate-019") {
		t.Errorf("table output = %q", out)
	}
}

func TestSlots_MissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	if _, err := runApp(t, dir, "slots", "info", "ghost"); !errors.Is(err, domain.ErrSlotNotFound) {
		t.Errorf("info(missing) error = %v, want ErrSlotNotFound", err)
	}
	if _, err := runApp(t, dir, "slots", "inspect"); err == nil {
		t.Error("inspect without a name succeeded")
	}
}

func TestSlots_DeleteAndPrune(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a", "b", "c"} {
		mustRun(t, dir, "demo", "save", "--entities", "1", name)
	}

	out := mustRun(t, dir, "slots", "delete", "a")
	if !strings.Contains(out, `"a" deleted`) {
		t.Errorf("delete output = %q", out)
	}
	if _, err := runApp(t, dir, "slots", "info", "a"); !errors.Is(err, domain.ErrSlotNotFound) {
		t.Errorf("info(deleted) error = %v", err)
	}

	out = mustRun(t, dir, "slots", "prune", "--keep", "1", "--autosave-only")
	if !strings.Contains(out, "Nothing to prune") {
		t.Errorf("autosave-only prune output = %q", out)
	}

	out = mustRun(t, dir, "slots", "prune", "--keep", "1")
	if strings.Count(out, "Deleted") != 1 {
		t.Errorf("prune output = %q, want one deletion", out)
	}

	if _, err := runApp(t, dir, "slots", "prune"); err == nil {
		t.Error("prune without --keep succeeded")
	}
}

func TestSlots_WatchRequiresFileEngine(t *testing.T) {
	if _, err := runApp(t, t.TempDir(), "--engine", "badger", "slots", "watch"); err == nil {
		t.Error("watch on badger succeeded")
	}
}

func TestSlots_WatchStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	dir := t.TempDir()
	done := make(chan error, 1)
	go func() {
		_, err := runAppContext(t, ctx, dir, "slots", "watch")
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watch error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after its context ended")
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestSlots_WatchServesHTTP(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "demo", "save", "--entities", "3", "first")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	addr := freeAddr(t)
	done := make(chan error, 1)
	go func() {
		_, err := runAppContext(t, ctx, dir, "slots", "watch", "--http-addr", addr)
		done <- err
	}()

	var body []byte
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/slots")
		if err == nil {
			body, _ = io.ReadAll(resp.Body)
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("watch http server did not start: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !strings.Contains(string(body), `"name":"first"`) {
		t.Errorf("GET /slots body = %s", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watch error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
