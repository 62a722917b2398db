package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/lattice-im/lattice/internal/auth"
	"github.com/lattice-im/lattice/internal/config"
	"github.com/lattice-im/lattice/internal/crypto"
	"github.com/lattice-im/lattice/internal/db"
	internalhttp "github.com/lattice-im/lattice/internal/http"
	internallog "github.com/lattice-im/lattice/internal/log"
	"github.com/lattice-im/lattice/internal/ratelimit"
	"github.com/lattice-im/lattice/internal/repository"
)

func main() {
	genSecret := flag.Bool("gen-secret", false, "print a fresh token signing secret and exit")
	flag.Parse()

	if *genSecret {
		secret, err := crypto.NewSecretKey()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate secret: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(secret)
		return
	}

	cfg := config.Load()
	internallog.Init(cfg.Env)

	if cfg.TokenSecret == "" {
		log.Fatal().Msg("TOKEN_SECRET is required; generate one with -gen-secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connection failed")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("db migration failed")
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatal().Err(err).Msg("redis ping failed")
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error().Err(err).Msg("redis close")
			}
		}()
	}

	store := repository.NewStore(pool)
	engine := auth.NewEngine(cfg.TokenSecret, cfg.TokenIssuer, cfg.AccessTokenTTL, store)
	limiter := ratelimit.New(redisClient, cfg.LoginRateLimit, cfg.LoginRateWindow)
	server := internalhttp.NewServer(cfg, store, engine, limiter)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("server_name", cfg.ServerName).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}
