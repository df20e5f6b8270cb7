package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/hospital-scheduling/internal/appointment"
	"github.com/hackgods/hospital-scheduling/internal/config"
	"github.com/hackgods/hospital-scheduling/internal/db"
	"github.com/hackgods/hospital-scheduling/internal/lock"
	"github.com/hackgods/hospital-scheduling/internal/logging"
	"github.com/hackgods/hospital-scheduling/internal/seed"
)

var counts = seed.Counts{
	Doctors:  100,
	Staff:    10,
	Patients: 9000,
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.Init("seed", cfg.Env, cfg.LogLevel)

	if cfg.StorageDriver != config.StorageDriverPostgres {
		logger.Fatal().Msg("seed writes to postgres; in-memory storage is seeded by api-server with SEED_ON_START")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.DefaultPoolOptions)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if _, err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	repo := appointment.NewPgRepository(pool)
	svc := appointment.NewService(repo, lock.NewLocal(cfg.LockWait), cfg, appointment.WithLogger(logger.Level(zerolog.WarnLevel)))

	if _, err := seed.Populate(ctx, logger, repo, svc, counts); err != nil {
		logger.Fatal().Err(err).Msg("seed")
	}

	logger.Info().Msg("seed complete")
}
