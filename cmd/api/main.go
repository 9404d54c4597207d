package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/GerzaFM/Autosol2-sub000/internal/application/autocarga"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain/matching"
	"github.com/GerzaFM/Autosol2-sub000/internal/infrastructure/cfdi"
	infrapdf "github.com/GerzaFM/Autosol2-sub000/internal/infrastructure/pdf"
	"github.com/GerzaFM/Autosol2-sub000/internal/infrastructure/postgres"
	httpRouter "github.com/GerzaFM/Autosol2-sub000/internal/interfaces/http"
	"github.com/GerzaFM/Autosol2-sub000/pkg/config"
	"github.com/GerzaFM/Autosol2-sub000/pkg/logger"
)

func main() {
	_ = godotenv.Load() // .env opcional

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
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	if _, err := postgres.Migrate(ctx, pool, log.WithComponent("migrate")); err != nil {
		log.Fatal().Err(err).Msg("migraciones")
	}

	ac := cfg.AutoCarga
	svc := autocarga.New(
		postgres.NewTxRunner(pool),
		infrapdf.NewExtractor(log.WithComponent("extractor")),
		cfdi.NewParser(),
		matching.NewProviderMatcher(matching.ProviderMatcherConfig{NameRatio: ac.NameRatio}, log.WithComponent("matcher")),
		matching.NewInvoiceMatcher(ac.MinPartialLength, log.WithComponent("matcher")),
		autocarga.Settings{
			Folder:          ac.Folder,
			DaysBack:        ac.DaysBack,
			IncludeCFDI:     ac.IncludeCFDI,
			AmountTolerance: ac.AmountTolerance,
			CandidateDays:   ac.CandidateDays,
		},
		log.WithComponent("orchestrator"),
	)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "AutoCarga API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		AutoCarga: svc,
		Renderer:  infrapdf.NewReportGenerator(),
		JWTSecret: cfg.JWT.Secret,
		Log:       log.WithComponent("http"),
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

	if p := svc.Progress(); p.Running {
		log.Warn().Int("processed", p.Processed).Int("total", p.Total).Msg("corrida de autocarga interrumpida por el apagado")
	}
	log.Info().Msg("aplicación detenida")
}
