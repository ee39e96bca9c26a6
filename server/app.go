package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"wgpanel/config"
	"wgpanel/internal/api"
	"wgpanel/internal/health"
	"wgpanel/internal/logs"
	"wgpanel/internal/middleware"
	"wgpanel/internal/registry"
	"wgpanel/internal/secrets"
)

type App struct {
	cfg        *config.Config
	backend    *Backend
	Router     *mux.Router
	httpServer *http.Server

	ctx    context.Context
	cancel context.CancelFunc
}

// Initialize builds storage, the registry and the router, then brings the
// interface up. A missing wg.host is fatal.
func (a *App) Initialize(cfg *config.Config) error {
	a.cfg = cfg

	/* 1) logs */
	logs.Init(logs.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})

	/* 2) storage + registry */
	b, err := NewBackend(cfg)
	if err != nil {
		return err
	}
	a.backend = b

	if _, err := b.Registry.State(context.Background()); err != nil {
		if errors.Is(err, registry.ErrHostRequired) {
			logs.Logger.Fatalf("configuration: %v", err)
		}
		return fmt.Errorf("bring up %s: %w", cfg.WireGuard.Interface, err)
	}

	/* 3) router + middleware */
	a.Router = mux.NewRouter().StrictSlash(true)
	a.Router.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.AccessLog,
	)

	/* 4) health */
	checks := []health.Checker{func() error {
		if !b.Registry.Loaded() {
			return errors.New("registry not loaded")
		}
		return nil
	}}
	if b.DB != nil {
		checks = append(checks, health.DB(b.DB))
	}
	health.RegisterRoutes(a.Router, checks...)

	/* 5) peer API */
	api.RegisterRoutes(a.Router, b.Registry, secrets.Password{
		Plain: cfg.Server.Password,
		Hash:  cfg.Server.PasswordHash,
	}.Verifier())

	log := logs.Component("http")
	_ = a.Router.Walk(func(rt *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := rt.GetPathTemplate()
		if err != nil {
			return nil
		}
		methods, _ := rt.GetMethods()
		if len(methods) == 0 {
			methods = []string{"ANY"}
		}
		log.Debugf("route: %-6v %s", methods, path)
		return nil
	})
	return nil
}

func (a *App) Run() error {
	if a.Router == nil || a.cfg == nil {
		return fmt.Errorf("server not initialized")
	}

	bind := net.JoinHostPort(a.cfg.Server.Address, a.cfg.Server.HTTPPort)

	a.ctx, a.cancel = context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigs
		logs.Logger.Infof("shutdown signal: %s", s)
		a.cancel()
	}()

	a.httpServer = &http.Server{
		Addr:              bind,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logs.Logger.Infof("HTTP listening on %s", bind)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logs.Logger.Fatalf("http server error: %v", err)
		}
	}()

	<-a.ctx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		logs.Logger.Errorf("http shutdown: %v", err)
	}
	a.backend.Registry.Shutdown(ctx)
	a.backend.Close()
	return nil
}
