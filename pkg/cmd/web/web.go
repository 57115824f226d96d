package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/igolaizola/tunepoll/pkg/cmd/service"
)

type Config struct {
	service.Config

	Addr        string
	Credentials map[string]string
}

// Serve starts the submission and status API.
func Serve(ctx context.Context, cfg *Config) error {
	log.Println("web: server started")
	defer log.Println("web: server ended")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	svc, err := service.Open(ctx, &cfg.Config)
	if err != nil {
		return fmt.Errorf("web: %w", err)
	}
	defer func() { _ = svc.Close() }()

	// Create server
	split := strings.Split(cfg.Addr, ":")
	if len(split) != 2 {
		return fmt.Errorf("web: invalid address: %s", cfg.Addr)
	}
	host := split[0]
	port, err := strconv.Atoi(split[1])
	if err != nil {
		return fmt.Errorf("web: invalid port: %s", split[1])
	}
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: newRouter(svc.Facade, cfg.Credentials, cfg.Debug),
	}
	go func() {
		note := fmt.Sprintf("http://%s:%d", host, port)
		if host == "" {
			note = fmt.Sprintf("all interfaces http://localhost:%d", port)
		}
		log.Printf("Starting server on %s", note)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v\n", err)
			cancel()
		}
	}()

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web: couldn't shutdown server: %w", err)
	}
	return nil
}

// requestTimeout leaves room for a poll that uses all its retries.
func requestTimeout(budget time.Duration) time.Duration {
	d := budget + 10*time.Second
	if d < 60*time.Second {
		return 60 * time.Second
	}
	return d
}

func newRouter(f facade, credentials map[string]string, debug bool) http.Handler {
	mux := chi.NewRouter()

	// Add middleware
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.Timeout(requestTimeout(f.Budget())))

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	// Create subrouter for api endpoints
	mux.Group(func(r chi.Router) {
		if len(credentials) > 0 {
			r.Use(middleware.BasicAuth("private", credentials))
		}
		if debug {
			r.Use(middleware.Logger)
		}
		h := &handler{facade: f}
		r.Post("/api/{kind}/generate", h.generate)
		r.Get("/api/{kind}/status", h.status)
		r.Get("/api/tasks/{taskId}", h.task)
	})
	return mux
}
