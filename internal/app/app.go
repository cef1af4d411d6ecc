// Package app assembles the configured backend, catalog, renderer and room
// service.
package app

import (
	"context"
	"fmt"

	"moodmap/internal/config"
	"moodmap/internal/logutil"
	"moodmap/internal/mood"
	"moodmap/internal/persist"
	"moodmap/internal/render"
	"moodmap/internal/room"
)

type App struct {
	Config   config.Config
	Backend  room.Backend
	Rooms    *room.Service
	Renderer *render.Renderer
}

// New opens the backend and restores persisted rooms.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	catalog, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return Assemble(ctx, cfg, catalog, backend)
}

// Assemble builds an App around an already opened backend.
func Assemble(ctx context.Context, cfg config.Config, catalog *mood.Catalog, backend room.Backend) (*App, error) {
	opts := render.DefaultOptions(float64(cfg.CanvasSize))
	opts.ShowLabels = cfg.ShowLabels
	opts.EnableNotes = cfg.EnableNotes
	opts.HighlightSelf = cfg.HighlightSelf

	rooms := room.NewService(catalog, backend, room.Options{Retention: cfg.MoodTTL})
	if err := rooms.Load(ctx); err != nil {
		rooms.Close()
		_ = backend.Close()
		return nil, err
	}
	return &App{
		Config:   cfg,
		Backend:  backend,
		Rooms:    rooms,
		Renderer: render.NewRenderer(catalog, opts),
	}, nil
}

// Close stops the room loops, then the backend.
func (a *App) Close() error {
	a.Rooms.Close()
	return a.Backend.Close()
}

func loadCatalog(path string) (*mood.Catalog, error) {
	if path == "" {
		return mood.DefaultCatalog(), nil
	}
	c, err := mood.LoadCatalog(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	logutil.Infof("loaded %d emotions from %s", c.Len(), path)
	return c, nil
}

func openBackend(ctx context.Context, cfg config.Config) (room.Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return persist.NewMemory(), nil
	case config.BackendRedis:
		return persist.NewRedis(cfg.RedisURL, cfg.MoodTTL)
	case config.BackendPostgres:
		db, err := persist.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := persist.ApplyMigrations(ctx, db, persist.Migrations()); err != nil {
			_ = db.Close()
			return nil, err
		}
		return persist.NewPostgres(db), nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.Backend)
	}
}
