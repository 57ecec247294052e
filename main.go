package main

// GET /healthz - Liveness
// GET /api/home - Catalog with categories, discounts and images
// GET /api/search - Keyword search
// /api/products/{id} - Detail, delete, image
// /api/cart - Cart and quantity adjustment
// /api/wishlist - Wishlist, toggle, move to cart
// POST /api/checkout - Decrement stock for every cart line

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"storefront/client"
	"storefront/handler"
	"storefront/pkg/config"
	"storefront/pkg/logger"
	"storefront/pkg/shutdown"
	"storefront/pkg/telemetry"
	"storefront/service"
	"storefront/store"
)

const serviceName = "storefront"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Service:   serviceName,
		Env:       cfg.AppEnv,
		Level:     cfg.LogLevel,
		AddSource: cfg.AppEnv != "prod",
	})

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("storefront stopped", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	stopTracing, err := telemetry.Init(telemetry.Options{Service: serviceName, Env: cfg.AppEnv, Stdout: cfg.TraceStdout})
	if err != nil {
		return err
	}
	defer func() {
		sctx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		_ = stopTracing(sctx)
	}()

	// --- Store ---
	st, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	defer st.Close()
	log.Info("storage ready", slog.String("driver", cfg.Storage.Driver))

	// --- Backend ---
	backend := client.New(cfg.BackendURL, telemetry.HTTPClient(cfg.BackendTimeout))

	// --- Service ---
	state, err := service.NewState(ctx, backend, st, service.StateOptions{
		Namespace: cfg.Storage.Namespace,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("restore cart and wishlist: %w", err)
	}
	if err := state.Refresh(ctx); err != nil {
		log.Warn("initial catalog load failed", slog.String("backend", cfg.BackendURL), slog.Any("err", err))
	}
	images := service.NewImageResolver(backend, cfg.ImageConcurrency, log)
	var svc service.ServiceInterface = service.NewService(backend, state, images, log)

	// --- Handlers ---
	h := handler.NewHandler(svc)

	// --- Router ---
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	// --- Server ---
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           telemetry.Middleware(serviceName, "/healthz")(r),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", slog.String("addr", srv.Addr), slog.String("backend", cfg.BackendURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	log.Info("shutting down")
	sctx, c := context.WithTimeout(context.Background(), 10*time.Second)
	defer c()
	return srv.Shutdown(sctx)
}
