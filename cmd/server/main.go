package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/blockduel/blockduel/internal/auth"
	"github.com/blockduel/blockduel/internal/gateway"
	"github.com/blockduel/blockduel/internal/httpapi"
	"github.com/blockduel/blockduel/internal/room"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file loaded")
	}

	cfg, err := loadConfig(getEnv("CONFIG_FILE", ""))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo := setupRepository(ctx, cfg)
	relay := setupRelay(cfg)
	if nr, ok := relay.(*gateway.NATSRelay); ok {
		defer nr.Close()
	}

	tokens := auth.NewJWTManager(cfg.JWTSecret, time.Duration(cfg.TokenMaxAgeHr)*time.Hour)

	gatewayCfg := gateway.DefaultConfig()
	gatewayCfg.BeforeGameSec = cfg.BeforeGameSec
	gatewayCfg.Connection.EventsPerSec = cfg.EventsPerSec
	svc := gateway.NewService(gatewayCfg, repo, tokens, clockwork.NewRealClock(), relay)
	go svc.Start(ctx)

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	httpapi.NewHandler(repo, tokens).RegisterRoutes(mux)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
		},
		AllowedHeaders: []string{"*"},
	})

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: c.Handler(mux),
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

func setupLogging(cfg Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if !cfg.LogJSON {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func setupRepository(ctx context.Context, cfg Config) room.Repository {
	if cfg.RedisAddr == "" {
		log.Warn().Msg("no redis configured, rooms held in process memory")
		return room.NewMemoryRepository()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to connect to redis")
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")
	return room.NewRedisRepository(client)
}

func setupRelay(cfg Config) gateway.Relay {
	if cfg.NATSURL == "" {
		return nil
	}

	relayCfg := gateway.DefaultNATSRelayConfig()
	relayCfg.URL = cfg.NATSURL
	relay, err := gateway.NewNATSRelay(relayCfg)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.NATSURL).Msg("failed to connect to NATS")
	}
	log.Info().Str("url", cfg.NATSURL).Msg("broadcast mirror enabled")
	return relay
}
