package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jhoicas/tagtrack-api/internal/application/events"
	"github.com/jhoicas/tagtrack-api/internal/application/inventory"
	"github.com/jhoicas/tagtrack-api/internal/infrastructure/memory"
	"github.com/jhoicas/tagtrack-api/internal/infrastructure/metrics"
	"github.com/jhoicas/tagtrack-api/internal/infrastructure/postgres"
	"github.com/jhoicas/tagtrack-api/internal/infrastructure/redisbus"
	httpRouter "github.com/jhoicas/tagtrack-api/internal/interfaces/http"
	"github.com/jhoicas/tagtrack-api/pkg/config"
	"github.com/jhoicas/tagtrack-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("store", cfg.Store.Driver).
		Msg("iniciando aplicación")

	if cfg.JWT.Secret == "" {
		if cfg.App.Env != "development" {
			log.Fatal().Msg("JWT_SECRET requerido fuera de development")
		}
		log.Warn().Msg("JWT_SECRET vacío: todas las rutas protegidas responderán 401")
	}

	ctx := context.Background()
	m := metrics.New()

	// Bus de eventos post-commit: log, métricas y (opcional) Redis pub/sub.
	bus := events.NewBus(log, events.Options{Buffer: cfg.Events.Buffer, Workers: cfg.Events.Workers})
	if err := bus.Subscribe(events.CategoryQuality, "log", events.LogHandler(log.Named("events.log"))); err != nil {
		log.Fatal().Err(err).Msg("suscribir log de eventos")
	}
	if err := bus.Subscribe(events.CategoryStockDashboard, "metrics", m.EventHandler()); err != nil {
		log.Fatal().Err(err).Msg("suscribir métricas de eventos")
	}
	if cfg.Redis.Enabled() {
		client, err := redisbus.Connect(ctx, cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis no disponible, eventos solo en proceso")
		} else {
			defer client.Close()
			if err := redisbus.NewPublisher(client, cfg.Redis.ChannelPrefix).Register(bus); err != nil {
				log.Fatal().Err(err).Msg("suscribir publicador redis")
			}
			log.Info().Str("addr", cfg.Redis.Addr).Msg("eventos publicados en redis")
		}
	}

	deps := inventory.Deps{
		Publisher: bus,
		Metrics:   m,
		Logger:    log,
	}
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		store := memory.NewStore()
		deps.TxRunner = store
		deps.UnitRepo = store.UnitRepository()
		deps.AuditRepo = store.AuditLogRepository()
		deps.TransferRepo = store.TransferRepository()
		log.Warn().Msg("almacenamiento en memoria: los datos se pierden al reiniciar")
	default:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		if cfg.DB.Migrate {
			applied, err := postgres.NewMigrator(pool, log).Run(ctx)
			if err != nil {
				log.Fatal().Err(err).Msg("migraciones")
			}
			log.Info().Int("applied", applied).Msg("migraciones al día")
		}
		deps.TxRunner = postgres.NewTxRunner(pool)
		deps.UnitRepo = postgres.NewInventoryUnitRepository(pool)
		deps.AuditRepo = postgres.NewAuditLogRepository(pool)
		deps.TransferRepo = postgres.NewTransferRepository(pool)
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	httpRouter.Router(app, httpRouter.RouterDeps{
		UnitUC:        inventory.NewUnitUseCase(deps),
		ReservationUC: inventory.NewReservationUseCase(deps),
		QuarantineUC:  inventory.NewQuarantineUseCase(deps),
		TransferUC:    inventory.NewTransferUseCase(deps),
		Metrics:       m.Handler(),
		JWTSecret:     cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	if err := bus.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("cierre del bus de eventos")
	}
	stats := bus.Stats()
	log.Info().
		Uint64("delivered", stats.Delivered).
		Uint64("failed", stats.Failed).
		Uint64("dropped", stats.Dropped).
		Msg("aplicación detenida")
}
