package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/events"
	"github.com/hackgods/clinic-booking/internal/telemetry"
)

const serviceName = "clinic-booking-event-relay"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	telemetry.InitLogger(serviceName, cfg.Env)

	if cfg.StoreDriver != config.StoreDriverPostgres {
		log.Fatal().Str("store", cfg.StoreDriver).Msg("event relay needs the postgres store")
	}

	brokers := events.SplitBrokers(cfg.KafkaBrokers)
	if len(brokers) == 0 {
		log.Warn().Msg("event relay disabled (no kafka brokers configured)")
		return
	}

	log.Info().
		Str("env", cfg.Env).
		Strs("brokers", brokers).
		Str("topic", cfg.KafkaTopic).
		Dur("interval", cfg.RelayInterval).
		Msg("event relay starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(rootCtx, serviceName, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("tracing setup error")
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	writer := events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer func() {
		if err := writer.Close(); err != nil {
			log.Error().Err(err).Msg("error closing kafka writer")
		}
	}()

	relay := events.NewRelay(appointment.NewPgRepository(pgPool), writer, cfg.RelayInterval, cfg.RelayBatchSize)
	relay.Run(rootCtx)

	log.Info().Msg("event relay stopped")
}
