package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/hospital-scheduling/internal/api"
	"github.com/hackgods/hospital-scheduling/internal/appointment"
	"github.com/hackgods/hospital-scheduling/internal/config"
	"github.com/hackgods/hospital-scheduling/internal/db"
	"github.com/hackgods/hospital-scheduling/internal/lock"
	"github.com/hackgods/hospital-scheduling/internal/logging"
	redisclient "github.com/hackgods/hospital-scheduling/internal/redis"
	"github.com/hackgods/hospital-scheduling/internal/seed"
)

var version = "dev"

var memorySeed = seed.Counts{
	Doctors:  5,
	Staff:    2,
	Patients: 20,
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.Init("api-server", cfg.Env, cfg.LogLevel)

	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("storage", cfg.StorageDriver).
		Str("lock", cfg.LockDriver).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		repo    appointment.Repository
		storage api.Pinger
		mem     *appointment.MemoryRepository
	)
	switch cfg.StorageDriver {
	case config.StorageDriverPostgres:
		// Connect Postgres
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.DefaultPoolOptions)
		cancelPg()
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection error")
		}
		defer pgPool.Close()
		logger.Info().Msg("connected to Postgres")

		if cfg.MigrateOnStart {
			if _, err := db.Migrate(rootCtx, pgPool); err != nil {
				logger.Fatal().Err(err).Msg("migration error")
			}
		}

		pg := appointment.NewPgRepository(pgPool)
		repo, storage = pg, pg
	default:
		mem = appointment.NewMemoryRepository()
		repo, storage = mem, mem
		logger.Warn().Msg("using in-memory storage; data is lost on restart")
	}

	opts := []appointment.Option{appointment.WithLogger(logger)}
	var locker lock.Locker = lock.NewLocal(cfg.LockWait)
	var redisPing api.Pinger

	if cfg.UsesRedis() {
		// Connect Redis
		rdb, err := redisclient.NewRedisClient(cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		}()
		logger.Info().Msg("connected to Redis")

		locker = redisclient.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait)
		opts = append(opts, appointment.WithPublisher(redisclient.NewEventPublisher(rdb)))
		redisPing = redisPinger(rdb)
	}

	svc := appointment.NewService(repo, locker, cfg, opts...)

	if mem != nil {
		if cfg.SeedOnStart {
			if err := seedMemory(rootCtx, logger, mem, svc); err != nil {
				logger.Fatal().Err(err).Msg("seed error")
			}
		} else {
			logger.Warn().Msg("in-memory directory is empty; every request will be rejected until users exist")
		}
	}

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.NewRouter(api.RouterConfig{
			Service:       svc,
			Directory:     repo,
			Storage:       storage,
			Redis:         redisPing,
			RedisRequired: cfg.LockDriver == config.LockDriverRedis,
			Env:           cfg.Env,
			Version:       version,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("shutting down api-server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Pending requests in process memory have no separate worker to expire them.
	if cfg.StorageDriver == config.StorageDriverMemory && cfg.PendingTTL > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(cfg.WorkerInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if n, err := svc.ExpirePendingAppointments(ctx); err != nil {
						logger.Error().Err(err).Msg("expiry run error")
					} else if n > 0 {
						logger.Info().Int("expired", n).Msg("pending appointments expired")
					}
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("api-server stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("api-server stopped")
}

func redisPinger(rdb *redis.Client) api.Pinger {
	return api.PingFunc(func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
}

// seedMemory fills the in-memory directory and logs the generated IDs so
// callers have something to put in X-User-ID.
func seedMemory(ctx context.Context, logger zerolog.Logger, mem *appointment.MemoryRepository, svc *appointment.Service) error {
	res, err := seed.Populate(ctx, logger, mem, svc, memorySeed)
	if err != nil {
		return err
	}
	for _, group := range [][]appointment.User{res.Doctors, res.Staff, res.Patients} {
		for _, u := range group {
			logger.Info().
				Str("user_id", u.ID.String()).
				Str("role", string(u.Role)).
				Str("name", u.Name).
				Msg("seeded user")
		}
	}
	return nil
}
