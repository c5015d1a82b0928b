package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/oggyb/muzz-match/internal/api"
	"github.com/oggyb/muzz-match/internal/app"
	"github.com/oggyb/muzz-match/internal/auth"
	"github.com/oggyb/muzz-match/internal/broker"
	"github.com/oggyb/muzz-match/internal/cache"
	"github.com/oggyb/muzz-match/internal/config"
	"github.com/oggyb/muzz-match/internal/db"
	"github.com/oggyb/muzz-match/internal/logger"
	"github.com/oggyb/muzz-match/internal/realtime"
	"github.com/oggyb/muzz-match/internal/repository"
	"github.com/oggyb/muzz-match/internal/rpc"
	"github.com/oggyb/muzz-match/internal/server"
	"github.com/oggyb/muzz-match/internal/service/chat"
	"github.com/oggyb/muzz-match/internal/service/matching"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	if err := run(cfg); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		return err
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	appCtx := app.New(cfg, database, redisCache, log)
	defer appCtx.Close()

	if cfg.IsDevelopment() {
		if _, err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	store := repository.NewStore(database)

	g, ctx := errgroup.WithContext(ctx)

	routerOpts := []chat.Option{chat.WithPushTimeout(cfg.Relay.PushTimeout)}
	var relayBroker *broker.RedisBroker
	if cfg.Relay.Broker {
		relayBroker = broker.NewRedisBroker(redisCache.Client, cfg.Relay.BrokerChannel, log)
		routerOpts = append(routerOpts, chat.WithForwarder(relayBroker))
	}
	router := chat.NewRouter(store, appCtx.Registry, log.With("component", "chat"), routerOpts...)
	if relayBroker != nil {
		g.Go(func() error { return relayBroker.Run(ctx, router) })
	}

	relayOpts := []realtime.Option{
		realtime.WithSendBuffer(cfg.Relay.SendBuffer),
		realtime.WithPingPeriod(cfg.Relay.PingPeriod),
	}
	if cfg.Relay.RequireToken {
		relayOpts = append(relayOpts, realtime.WithTokenVerifier(verifier))
	}
	relay := realtime.NewRelay(appCtx.Registry, router, log.With("component", "relay"), relayOpts...)

	matcher := matching.NewService(store, redisCache, log.With("component", "matching"), cfg.Feed.DefaultLimit, cfg.Feed.MaxLimit)

	grpcServer := server.NewGRPCServer(
		rpc.NewRegistrar(rpc.NewService(matcher, router, relay, log.With("component", "rpc"))),
	)
	g.Go(func() error {
		log.Info("starting gRPC server", "addr", cfg.GRPCAddr())
		return server.ServeGRPC(ctx, cfg.GRPCAddr(), grpcServer)
	})

	handler := api.NewRouter(api.Deps{
		Matching: matcher,
		Chat:     router,
		Verifier: verifier,
		Relay:    relay.ServeWebSocket,
		Checks: map[string]api.HealthCheck{
			"db":    appCtx.PingDB,
			"redis": redisCache.Ping,
		},
		Log: log.With("component", "http"),
	})
	g.Go(func() error {
		log.Info("starting HTTP server", "addr", cfg.HTTPAddr())
		return server.ServeHTTP(ctx, cfg.HTTPAddr(), handler, cfg.HTTP.ShutdownTimeout)
	})

	// hijacked WebSocket connections outlive http.Server.Shutdown
	g.Go(func() error {
		<-ctx.Done()
		appCtx.Registry.CloseAll()
		return nil
	})

	err = g.Wait()
	log.Info("shutdown complete")
	return err
}
