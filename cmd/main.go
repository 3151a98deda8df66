package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/posting/internal/config"
	"github.com/tinoosan/posting/internal/engine"
	httpapi "github.com/tinoosan/posting/internal/httpapi/v1"
	"github.com/tinoosan/posting/internal/ledger"
	"github.com/tinoosan/posting/internal/seed"
	"github.com/tinoosan/posting/internal/service/journal"
	"github.com/tinoosan/posting/internal/service/template"
	"github.com/tinoosan/posting/internal/service/voucher"
	"github.com/tinoosan/posting/internal/storage/memory"
	pgstore "github.com/tinoosan/posting/internal/storage/postgres"
)

// backend is satisfied by both storage implementations.
type backend interface {
	journal.Repo
	journal.Writer
	template.Repo
	template.Writer
	voucher.Repo
	voucher.Writer
	httpapi.IdempotencyStore
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := buildLogger(cfg)
	slog.SetDefault(logger)

	var (
		store   backend
		ready   []httpapi.ReadyChecker
		closeFn func()
	)
	if cfg.DatabaseURL != "" {
		if cfg.RunMigrations {
			if err := pgstore.Migrate(cfg.DatabaseURL, logger); err != nil {
				logger.Error("migrations failed", "err", err)
				os.Exit(1)
			}
		}
		pg, err := pgstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "err", err)
			os.Exit(1)
		}
		store, closeFn = pg, pg.Close
		ready = append(ready, pg)
		logger.Info("storage backend: postgres")
	} else {
		store = memory.New()
		logger.Info("storage backend: memory")
	}

	cache, err := engine.NewTemplateCache(cfg.TemplateCacheSize)
	if err != nil {
		logger.Error("template cache", "err", err)
		os.Exit(1)
	}
	eng := engine.New(cfg.BalanceToleranceMinor, cfg.DefaultCurrency)
	templates := template.New(store, store, cache, logger)
	vouchers := voucher.New(store, store, cfg.DefaultCurrency, logger)
	entries := journal.New(store, store, eng, cache, logger, journal.Options{
		NumberPrefix:   cfg.EntryNumberPrefix,
		ReversalPrefix: cfg.ReversalPrefix,
	})

	// The in-memory store is empty on every start, so it is always seeded.
	if cfg.DevSeed || cfg.DatabaseURL == "" {
		if err := devSeed(ctx, logger, templates); err != nil {
			logger.Error("dev seed failed", "err", err)
		}
	}

	api, err := httpapi.New(httpapi.Deps{
		Journal:     entries,
		Templates:   templates,
		Vouchers:    vouchers,
		Idempotency: store,
		Ready:       ready,
	}, logger, httpapi.Options{
		Auth:      httpapi.AuthConfig{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, Audience: cfg.JWTAudience},
		RateLimit: cfg.RateLimit,
	})
	if err != nil {
		logger.Error("http api", "err", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.Handler(),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("posting service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}
	if closeFn != nil {
		closeFn()
	}
}

// devSeed installs the bundled Colombian templates under a fresh organization.
func devSeed(ctx context.Context, l *slog.Logger, svc template.Service) error {
	defs, err := seed.Templates()
	if err != nil {
		return err
	}
	org := uuid.New()
	created := make([]ledger.Template, 0, len(defs))
	for _, d := range defs {
		t, err := svc.Create(ctx, ledger.Template{
			OrgID: org, Name: d.Name, VoucherType: d.VoucherType, Country: d.Country, Source: d.Source,
		})
		if err != nil {
			return fmt.Errorf("seed %s: %w", d.Name, err)
		}
		created = append(created, t)
	}
	ids := make(map[string]string, len(created))
	for _, t := range created {
		ids[t.Name] = t.ID.String()
	}
	l.Info("DEV seed", "org_id", org.String(), "templates", ids)
	printDevSeedBanner(org, created)
	return nil
}

// printDevSeedBanner prints a simple banner to stdout for easy copy/paste of IDs
func printDevSeedBanner(org uuid.UUID, ts []ledger.Template) {
	fmt.Println("==================== DEV SEED ====================")
	fmt.Printf("org_id: %s\n", org)
	for _, t := range ts {
		fmt.Printf("%s (%s): %s\n", t.Name, t.VoucherType, t.ID)
	}
	fmt.Println("==================================================")
}

func buildLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
