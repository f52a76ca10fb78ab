package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bling-mirror/internal/bling"
	"bling-mirror/internal/cache"
	"bling-mirror/internal/clock"
	"bling-mirror/internal/config"
	"bling-mirror/internal/handler"
	"bling-mirror/internal/logging"
	"bling-mirror/internal/model"
	"bling-mirror/internal/repository"
	"bling-mirror/internal/router"
	"bling-mirror/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logging.Info().
		Str("service", cfg.App.Name).
		Str("env", cfg.App.Environment).
		Str("tenant", cfg.Bling.Tenant).
		Msg("starting")

	loc, err := cfg.Sync.Location()
	if err != nil {
		logging.Fatal().Err(err).Str("timezone", cfg.Sync.Timezone).Msg("invalid timezone")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	store, err := repository.NewStore(ctx, cfg.Store.Type, cfg.Store.MongoURI, cfg.Store.MongoDatabase, cfg.Store.DSN)
	cancel()
	if err != nil {
		logging.Fatal().Err(err).Str("store", cfg.Store.Type).Msg("failed to open store")
	}
	logging.Info().Str("store", store.Kind()).Msg("store initialized")

	ctx = context.Background()
	names := cfg.Store.Collections
	sellers := mustOpen[model.Document](ctx, store, names.Sellers)
	modules := mustOpen[model.Document](ctx, store, names.Modules)
	paymentMethods := mustOpen[model.Document](ctx, store, names.PaymentMethods)
	receivables := mustOpen[model.ReceivableRecord](ctx, store, names.Receivables, "CREmissao")
	runs := mustOpen[model.SyncRun](ctx, store, names.SyncRuns, "started_at")

	clk := clock.Real{}

	// Token cache backend
	var tokenStore cache.Cache
	var cachePinger handler.Pinger
	switch cfg.Cache.Type {
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:      cfg.Cache.RedisAddress(),
			Password:  cfg.Cache.RedisPassword,
			DB:        cfg.Cache.RedisDB,
			KeyPrefix: cfg.Cache.RedisPrefix,
		})
		cancel()
		if err != nil {
			logging.Fatal().Err(err).Str("addr", cfg.Cache.RedisAddress()).Msg("failed to connect to redis")
		}
		tokenStore, cachePinger = rc, rc
		logging.Info().Str("addr", cfg.Cache.RedisAddress()).Msg("redis token cache initialized")
	default:
		tokenStore = cache.NewMemoryCache(clk)
	}

	httpClient := &http.Client{Timeout: cfg.Bling.HTTPTimeout}
	tokens := bling.NewTokenCache(bling.AuthConfig{
		BaseURL: cfg.Bling.AuthBaseURL,
		Secret:  cfg.Bling.AuthSecret,
		TTL:     cfg.Bling.TokenTTL,
	}, httpClient, tokenStore, clk)
	transport := bling.NewTransport(httpClient, cfg.Bling.ThrottleInterval, clk)
	client := bling.NewClient(cfg.Bling.APIBaseURL, cfg.Bling.Tenant, transport, bling.NewHeaderBuilder(tokens))

	rcfg := service.DefaultReceivablesConfig()
	rcfg.Situations = splitList(cfg.Bling.ReceivableSituation)
	rcfg.PaymentMethodID = cfg.Bling.ReceivablePaymentMethodID
	rcfg.Window = cfg.Bling.ReceivableWindow
	rcfg.Location = loc
	receivablesSync := service.NewReceivablesSync(client, receivables, rcfg, clk)

	mirrorSync := service.NewMirrorSync(client, service.MirrorCollections{
		Sellers:        sellers,
		Modules:        modules,
		PaymentMethods: paymentMethods,
	})

	jobs := append(service.MirrorJobs(mirrorSync), service.ReceivablesJob(receivablesSync))
	scheduler := service.NewScheduler(jobs, runs, service.SchedulerConfig{
		Interval:   cfg.Sync.Interval,
		RunOnStart: cfg.Sync.RunOnStart,
		Tenant:     cfg.Bling.Tenant,
	}, clk)

	r := router.New(router.Config{
		Handler:            handler.New(cfg.App.Name, cfg.App.Version, store, cachePinger, scheduler),
		SyncHandler:        handler.NewSyncHandler(scheduler, tokens),
		ReceivablesHandler: handler.NewReceivablesHandler(receivablesSync, service.NewReceivablesReport(loc)),
		AdminAPIKey:        cfg.App.AdminAPIKey,
	})
	if cfg.App.AdminAPIKey == "" {
		logging.Warn().Msg("ADMIN_API_KEY is empty, admin routes are unauthenticated")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logging.Info().Str("addr", cfg.Server.Address()).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("server error")
		}
	}()

	scheduler.Start()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info().Msg("shutting down")

	ctx, cancel = context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error().Err(err).Msg("server shutdown error")
	}

	// Stop cancels an in-flight cycle and waits for it to return.
	scheduler.Stop()

	if err := tokenStore.Close(); err != nil {
		logging.Warn().Err(err).Msg("token cache close error")
	}
	if err := store.Close(ctx); err != nil {
		logging.Warn().Err(err).Msg("store close error")
	}

	logging.Info().Msg("stopped")
}

func mustOpen[T any](ctx context.Context, store repository.Store, name string, indexFields ...string) repository.Collection[T] {
	coll, err := repository.Open[T](ctx, store, name, indexFields...)
	if err != nil {
		logging.Fatal().Err(err).Str("collection", name).Msg("failed to open collection")
	}
	return coll
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
