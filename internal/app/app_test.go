package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"moodmap/internal/config"
	"moodmap/internal/mood"
)

func testConfig() config.Config {
	return config.Config{
		Backend:       config.BackendMemory,
		MoodTTL:       time.Hour,
		CanvasSize:    500,
		ShowLabels:    false,
		EnableNotes:   true,
		HighlightSelf: true,
	}
}

func TestNew_Memory(t *testing.T) {
	a, err := New(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()
	if a.Renderer.Options().ShowLabels {
		t.Error("ShowLabels not carried into the renderer")
	}
	if a.Renderer.Options().Layout.Width != 500 {
		t.Errorf("canvas width %g, want 500", a.Renderer.Options().Layout.Width)
	}
	if a.Rooms.Catalog().Len() != mood.DefaultCatalog().Len() {
		t.Error("default catalog not used")
	}
}

func TestNew_RedisRestoresRooms(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Backend = config.BackendRedis
	cfg.RedisURL = "redis://" + mr.Addr() + "/0"

	ctx := context.Background()
	first, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	created, err := first.Rooms.CreateRoom(ctx, "Friday Standup", "", "anon-1")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New again: %v", err)
	}
	defer second.Close()
	got, err := second.Rooms.ResolveRoom(created.Slug)
	if err != nil {
		t.Fatalf("ResolveRoom after restart: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("restored id %q, want %q", got.ID, created.ID)
	}
}

func TestNew_CustomCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	yaml := "emotions:\n  - key: calm\n    valence: 0.5\n    arousal: -0.5\n    color: \"#00ff00\"\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	cfg.CatalogPath = path
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()
	if _, ok := a.Rooms.Catalog().Lookup("calm"); !ok {
		t.Error("custom catalog not loaded")
	}
}

func TestNew_Errors(t *testing.T) {
	cfg := testConfig()
	cfg.Backend = "sqlite"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Error("unknown backend should fail")
	}
	cfg = testConfig()
	cfg.CatalogPath = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := New(context.Background(), cfg); err == nil {
		t.Error("missing catalog should fail")
	}
}
