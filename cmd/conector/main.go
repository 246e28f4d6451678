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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/xsist-conector/internal/application/connector"
	"github.com/jhoicas/xsist-conector/internal/application/keys"
	"github.com/jhoicas/xsist-conector/internal/application/retrieval"
	"github.com/jhoicas/xsist-conector/internal/infrastructure/cache"
	"github.com/jhoicas/xsist-conector/internal/infrastructure/localstore"
	"github.com/jhoicas/xsist-conector/internal/infrastructure/metrics"
	infrapdf "github.com/jhoicas/xsist-conector/internal/infrastructure/pdf"
	"github.com/jhoicas/xsist-conector/internal/infrastructure/postgres"
	infsefaz "github.com/jhoicas/xsist-conector/internal/infrastructure/sefaz"
	httpRouter "github.com/jhoicas/xsist-conector/internal/interfaces/http"
	"github.com/jhoicas/xsist-conector/pkg/config"
	"github.com/jhoicas/xsist-conector/pkg/logger"
)

const swaggerFile = "./docs/swagger.json"

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
		Str("store", cfg.Store.Dir).
		Msg("iniciando conector")

	ctx := context.Background()

	// Métricas en un registry propio (solo /metrics de este proceso)
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(reg)

	// SEFAZ: builder → transporte mTLS → parser
	endpoints := retrieval.DefaultEndpoints()
	if cfg.SEFAZ.DistURLProduction != "" {
		endpoints.Production = cfg.SEFAZ.DistURLProduction
	}
	if cfg.SEFAZ.DistURLStaging != "" {
		endpoints.Staging = cfg.SEFAZ.DistURLStaging
	}
	soapClient := infsefaz.NewSOAPClient(infsefaz.WithTimeout(cfg.SEFAZ.Timeout))
	orchestrator := retrieval.NewOrchestrator(
		infsefaz.NewRequestBuilder(), soapClient, infsefaz.NewResponseParser(), endpoints, log,
	)

	deps := connector.Deps{
		Fetcher:      orchestrator,
		FetchTimeout: cfg.SEFAZ.Timeout + 10*time.Second,
		Store:        localstore.New(cfg.Store.Dir),
		Renderer:     infrapdf.NewMarotoRenderer(),
		Metrics:      appMetrics,
		Log:          log,
	}

	// Historial (opcional): sin DATABASE_URL / DB_HOST el conector funciona igual
	if cfg.DB.Enabled() {
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		if err := postgres.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("migraciones del historial")
		}
		deps.Events = postgres.NewDownloadEventRepository(pool)
		deps.Documents = postgres.NewXMLDocumentRepository(pool)
		log.Info().Msg("historial de descargas habilitado")
	}

	// Caché (opcional): un Redis caído no impide arrancar
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis no disponible; caché deshabilitada")
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
		deps.Cache = cache.NewDocumentCache(redisClient, cfg.SEFAZ.CacheTTL)
		log.Info().Dur("ttl", cfg.SEFAZ.CacheTTL).Msg("caché de documentos habilitada")
	}

	svc := connector.NewService(deps)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		BodyLimit:    64 << 20, // archivos SPED y .pfx en base64
		ReadTimeout:  time.Second * 30,
		WriteTimeout: cfg.SEFAZ.Timeout + 10*time.Second,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://127.0.0.1:<port>/docs
	if _, err := os.Stat(swaggerFile); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: swaggerFile,
			Path:     "docs",
			Title:    "XSist Conector",
		}))
	}

	httpRouter.Router(app, httpRouter.RouterDeps{
		Connector:      svc,
		Keys:           keys.NewUseCase(),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		AuthSecret:     cfg.HTTP.AuthSecret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()
	log.Info().Str("addr", cfg.HTTP.Addr()).Bool("auth", cfg.HTTP.AuthSecret != "").Msg("API local escuchando")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("conector detenido")
}
