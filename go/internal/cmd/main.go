package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/gavel/go/internal/bidding"
	"github.com/mcdev12/gavel/go/internal/config"
	"github.com/mcdev12/gavel/go/internal/durable"
	"github.com/mcdev12/gavel/go/internal/events"
	"github.com/mcdev12/gavel/go/internal/fanout"
	"github.com/mcdev12/gavel/go/internal/hotstore"
	"github.com/mcdev12/gavel/go/internal/lifecycle"
	"github.com/mcdev12/gavel/go/internal/mirror"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = log.With().Str("service", "gavel").Logger()

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer bootCancel()

	db, err := durable.Connect(bootCtx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatal().Err(err).Msg("durable store connection failed")
	}
	if err := db.EnsureIndexes(bootCtx); err != nil {
		log.Fatal().Err(err).Msg("index creation failed")
	}
	log.Info().Str("database", cfg.MongoDatabase).Msg("durable store connected")

	hot := hotstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := hot.Ping(bootCtx); err != nil {
		log.Fatal().Err(err).Msg("hot store connection failed")
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("hot store connected")

	var bus events.Bus
	if cfg.NATSURL != "" {
		natsBus, err := events.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatal().Err(err).Msg("NATS connection failed")
		}
		bus = natsBus
		log.Info().Str("url", cfg.NATSURL).Msg("broadcast bus connected")
	} else {
		bus = events.NewLocalBus()
		log.Info().Msg("using process-local broadcast bus")
	}
	defer bus.Close()

	clock := clockwork.NewRealClock()

	engine := bidding.NewEngine(hot, db, bus, clock)
	manager := lifecycle.NewManager(db, hot, bus, clock, cfg.Tuning)
	engine.SetExtensionRequester(manager)

	synchronizer := mirror.New(hot, db, clock, cfg.Tuning.MirrorInterval)
	if err := synchronizer.Prime(bootCtx); err != nil {
		log.Fatal().Err(err).Msg("balance priming failed")
	}

	hub := fanout.NewHub(engine, db, bus, clock, cfg.Tuning, fanout.DefaultConnConfig())
	server := setupServer(cfg, hub, hot, db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return manager.RunScheduler(gctx) })
	g.Go(func() error { return manager.RunChangeFeedConsumer(gctx) })
	g.Go(func() error { return manager.RunReconciler(gctx) })
	g.Go(func() error { return manager.RunCarryWorker(gctx) })
	g.Go(func() error { return manager.RunDeliveryWorker(gctx) })
	g.Go(func() error { return synchronizer.Run(gctx) })
	g.Go(func() error { return hub.RunBroadcaster(gctx) })
	g.Go(func() error {
		log.Info().Str("addr", cfg.ListenAddr).Msg("listener started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down")
	case <-gctx.Done():
		log.Error().Msg("component failed, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	hub.Shutdown()
	cancel()

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("component error during shutdown")
	}

	if err := hot.Close(); err != nil {
		log.Error().Err(err).Msg("hot store close failed")
	}
	if err := db.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("durable store close failed")
	}
	log.Info().Msg("shutdown complete")
}
