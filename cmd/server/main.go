package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Tocata/internal/adapters/http"
	"github.com/dkeye/Tocata/internal/app"
	"github.com/dkeye/Tocata/internal/app/orch"
	"github.com/dkeye/Tocata/internal/config"
	"github.com/dkeye/Tocata/internal/metrics"
	"github.com/dkeye/Tocata/internal/presence"
	"github.com/dkeye/Tocata/internal/users"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, keeping info")
	}

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("Server exited gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open user directory: %w", err)
	}
	defer pool.Close()
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("ping user directory: %w", err)
	}

	policy, err := app.PolicyFromString(cfg.SlowConsumer)
	if err != nil {
		return err
	}

	m := metrics.New()
	o := &orch.Orchestrator{
		Peers:    app.NewPeerRegistry(),
		Sessions: app.NewSessionRegistry(cfg.SessionTimeout),
		Auth:     users.NewGate(users.New(pool)),
		Policy:   policy,
		Limiter:  app.NewRateLimiter(cfg.LoginAttempts, cfg.LoginWindow),
		Metrics:  m,
		Liveness: app.LivenessConfig{
			PingPeriod:    cfg.PingPeriod,
			PongTimeout:   cfg.PongTimeout,
			MaxConnection: cfg.MaxConnection,
		},
		AuthTimeout: cfg.AuthTimeout,
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		p := presence.NewRedisPresence(rdb, cfg.RedisPrefix)
		if err := p.Reset(pingCtx); err != nil {
			log.Error().Err(err).Str("module", "presence").Msg("redis reset presence")
		}
		o.Presence = p
		log.Info().Str("module", "presence").Str("addr", cfg.RedisAddr).Msg("presence mirror enabled")
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.SetupRouter(ctx, cfg, o, m),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Bool("tls", cfg.TLS()).Msg("Tocata server started")
		var err error
		if cfg.TLS() {
			err = srv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	if cfg.ReapInterval > 0 {
		g.Go(func() error {
			t := time.NewTicker(cfg.ReapInterval)
			defer t.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-t.C:
					if n := o.Reap(); n > 0 {
						log.Info().Str("module", "reaper").Int("reaped", n).Msg("idle sessions evicted")
					}
					o.Limiter.Prune()
				}
			}
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})

	return g.Wait()
}
