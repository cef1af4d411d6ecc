package main

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"log"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Showmax/go-fqdn"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"moodmap/internal/app"
	"moodmap/internal/config"
	"moodmap/internal/handlers"
	"moodmap/internal/logutil"
)

func main() {
	_ = mime.AddExtensionType(".js", "application/javascript")
	_ = mime.AddExtensionType(".css", "text/css")

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("start: %v", err)
	}

	staticFS, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		log.Fatal(err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	homeHandler := handlers.NewHomeHandler(a.Rooms)
	roomHandler := handlers.NewRoomHandler(a.Rooms, a.Renderer, cfg.BaseURL)
	healthHandler := handlers.NewHealthHandler(a.Rooms)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))
		r.Mount("/static", http.StripPrefix("/static", http.FileServer(http.FS(staticFS))))
		homeHandler.RegisterRoutes(r)
		roomHandler.RegisterRoutes(r)
		healthHandler.RegisterRoutes(r)
	})
	roomHandler.RegisterStreamRoutes(r)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// streams stay open; handlers bound their own work
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		host, _ := fqdn.FqdnHostname()
		logutil.Infof("listening on http://localhost:%s (FQDN: %s, backend: %s)", cfg.Port, host, cfg.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logutil.Infof("shutting down")
		// end open streams first so Shutdown does not wait on them
		a.Rooms.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if cerr := a.Close(); cerr != nil {
		logutil.Warnf("close backend: %v", cerr)
	}
	if err != nil {
		log.Fatal(err)
	}
}

//go:embed static/*
var embeddedStatic embed.FS
