package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cdr-backend/auth"
	"cdr-backend/background"
	"cdr-backend/controller"
	"cdr-backend/infra"
	"cdr-backend/metrics"
	appMiddleware "cdr-backend/middleware"
	"cdr-backend/service"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Port   int    `help:"服務監聽端口，0 表示使用 config.yml 的 app.port" short:"p" default:"0"`
	Config string `help:"設定檔路徑" short:"c" default:"config.yml"`
}

type AppServices struct {
	MongoDB  *infra.MongoDB
	Redis    *infra.Redis
	RabbitMQ *infra.RabbitMQ
}

// 全局變量用於存儲 OpenTelemetry cleanup 函數
var otelCleanup func()

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, options *Options) {
		// 載入設定檔
		if err := infra.LoadConfigFrom(options.Config); err != nil {
			log.Fatal().Err(err).Str("path", options.Config).Msg("讀取 config.yml 失敗")
		}
		cfg := infra.AppConfig

		port := options.Port
		if port == 0 {
			port = cfg.App.Port
		}

		logger := infra.InitLogger(infra.ServiceName)

		// Prometheus registry 需在 OpenTelemetry 之前建立，OTel metrics 會掛在同一個 registry
		if err := appMiddleware.InitPrometheusMetrics(logger); err != nil {
			logger.Error().Err(err).Msg("Prometheus metrics 初始化失敗，將繼續運行")
		}
		if err := metrics.InitServiceMetrics(appMiddleware.GetPrometheusRegistry()); err != nil {
			logger.Error().Err(err).Msg("Service metrics 初始化失敗，將繼續運行")
		}

		otelConfig := appMiddleware.OtelConfig{
			ServiceName:     infra.ServiceName,
			ServiceVersion:  cfg.App.AppVersion,
			Environment:     os.Getenv("ENV"),
			OTLPEndpoint:    cfg.Otel.Endpoint,
			Enabled:         true,
			TracesEnabled:   true,
			MetricsEnabled:  true,
			DevelopmentMode: cfg.Otel.Endpoint == "",
		}
		var err error
		otelCleanup, err = appMiddleware.InitOpenTelemetry(otelConfig, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("OpenTelemetry 初始化失敗")
		}
		infra.InitTracer()

		services, err := initializeServices(cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("初始化服務失敗")
		}

		store := newRecordStore(logger, cfg, services)

		var redisClient redis.Cmdable
		if services.Redis != nil {
			redisClient = services.Redis.Client
		}
		statsService := service.NewIngestionStatsService(logger, redisClient)
		cdrService := service.NewCdrService(logger, store)
		reportService := service.NewReportService(logger, store)

		var tokenAuth *appMiddleware.TokenAuthMiddleware
		if cfg.Auth.Enabled {
			validator := auth.NewIssuerValidator(cfg.Auth.SecretKey, cfg.Auth.AllowedIssuers)
			tokenAuth = appMiddleware.NewTokenAuthMiddleware(logger, validator)
			logger.Info().Strs("allowed_issuers", cfg.Auth.AllowedIssuers).Msg("Token 驗證已啟用")
		}

		router := chi.NewRouter()
		router.Use(middleware.Recoverer)
		router.Use(middleware.RequestID)
		router.Use(middleware.Heartbeat("/ping"))
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"X-Request-ID", "X-Trace-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))

		apiConfig := huma.DefaultConfig("CDR API", cfg.App.AppVersion)
		apiConfig.Info.Description = "CDR 用量紀錄與彙總報表 API"
		serverURL := fmt.Sprintf("http://localhost:%d", port)
		apiConfig.Servers = []*huma.Server{{URL: serverURL}}
		apiConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
			"bearerAuth": {
				Type:         "http",
				Scheme:       "bearer",
				BearerFormat: "JWT",
				Description:  "JWT Bearer Token 認證",
			},
		}

		api := humachi.New(router, apiConfig)
		api.UseMiddleware(appMiddleware.OpenTelemetryMiddleware(otelConfig, logger))
		api.UseMiddleware(appMiddleware.PrometheusMiddleware(logger))

		cdrController := controller.NewCdrController(logger, cdrService, reportService, statsService, tokenAuth)
		cdrController.RegisterRoutes(api)

		monitoringController := controller.NewMonitoringController(logger, buildProbes(services)...)
		monitoringController.RegisterRoutes(api)

		router.Handle("/metrics", appMiddleware.GetStandardPrometheusHandler())

		bgCtx, bgCancel := context.WithCancel(context.Background())

		// 啟動 CDR consumer
		if services.RabbitMQ != nil {
			consumer := background.NewCdrConsumer(logger, services.RabbitMQ, store, statsService, cfg.RabbitMQ.Queue, cfg.RabbitMQ.ConsumerGroup)
			go func() {
				if err := consumer.Start(bgCtx); err != nil {
					logger.Error().Err(err).Msg("CDR consumer 啟動失敗")
				}
			}()
		} else {
			logger.Warn().Msg("RabbitMQ 未啟用，CDR consumer 不會啟動")
		}

		// 啟動 metrics 更新器
		go runMetricsUpdater(bgCtx, logger, store, monitoringController)

		hooks.OnStart(func() {
			logger.Info().Int("port", port).Str("docs_url", serverURL+"/docs").Msg("API文檔已啟用")
			server := &http.Server{
				Addr:    fmt.Sprintf(":%d", port),
				Handler: router,
			}
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("服務器啟動失敗")
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit
			logger.Info().Msg("正在關閉服務器...")

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				logger.Error().Err(err).Msg("服務器關閉錯誤")
			}
			bgCancel()
			if otelCleanup != nil {
				logger.Info().Msg("正在關閉 OpenTelemetry...")
				otelCleanup()
			}
			cleanupServices(logger, services)
			logger.Info().Msg("服務器已關閉")
		})
	})
	cli.Run()
}

// newRecordStore 依 store.driver 選擇儲存層
func newRecordStore(logger zerolog.Logger, cfg infra.Config, services *AppServices) service.RecordStore {
	if cfg.Store.Driver == infra.StoreDriverMemory || services.MongoDB == nil {
		logger.Warn().Str("driver", cfg.Store.Driver).Msg("使用記憶體儲存層，重啟後資料會遺失")
		return service.NewMemoryRecordStore()
	}
	return service.NewMongoRecordStore(logger, services.MongoDB)
}

func buildProbes(services *AppServices) []controller.Probe {
	probes := []controller.Probe{
		{Name: "mongodb", Category: "database", Label: "MongoDB"},
		{Name: "redis", Category: "cache", Label: "Redis"},
		{Name: "rabbitmq", Category: "queue", Label: "RabbitMQ"},
	}
	if services.MongoDB != nil {
		probes[0].Ping = services.MongoDB.Ping
	}
	if services.Redis != nil {
		probes[1].Ping = services.Redis.Ping
	}
	if services.RabbitMQ != nil {
		probes[2].Ping = func(context.Context) error { return services.RabbitMQ.Ping() }
	}
	return probes
}

// runMetricsUpdater 每30秒更新 CDR 筆數與基礎設施健康指標
func runMetricsUpdater(ctx context.Context, logger zerolog.Logger, store service.RecordStore, monitoring *controller.MonitoringController) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	logger.Info().Msg("Metrics 更新器已啟動")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		cdrs, err := store.FindAll(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("獲取 CDR 統計失敗")
		} else {
			counts := make(map[string]int)
			for _, c := range cdrs {
				counts[c.ServiceType.String()]++
			}
			appMiddleware.UpdateStoredCdrs(counts)
		}

		monitoring.RefreshInfrastructureHealth(ctx)
	}
}

func initializeServices(cfg infra.Config) (*AppServices, error) {
	services := &AppServices{}

	if cfg.Store.Driver == infra.StoreDriverMongo {
		mongoDB, err := infra.NewMongoDB(infra.MongoConfig{
			URI:      cfg.MongoDB.URI,
			Database: cfg.MongoDB.Database,
		})
		if err != nil {
			return nil, fmt.Errorf("MongoDB初始化失敗: %w", err)
		}
		services.MongoDB = mongoDB
	}

	if cfg.Redis.Enabled {
		redisClient, err := infra.NewRedis(infra.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Error().Err(err).Msg("Redis連接失敗 (繼續運行)")
		} else {
			services.Redis = redisClient
		}
	}

	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := infra.NewRabbitMQ(infra.RabbitMQConfig{
			URL:      cfg.RabbitMQ.URL,
			Queues:   []string{cfg.RabbitMQ.Queue},
			Prefetch: cfg.RabbitMQ.Prefetch,
		})
		if err != nil {
			log.Error().Err(err).Msg("RabbitMQ連接失敗 (繼續運行)")
		} else {
			services.RabbitMQ = rabbitMQ
		}
	}

	return services, nil
}

func cleanupServices(logger zerolog.Logger, services *AppServices) {
	if services.RabbitMQ != nil {
		if err := services.RabbitMQ.Close(); err != nil {
			logger.Error().Err(err).Msg("RabbitMQ關閉錯誤")
		}
	}

	if services.Redis != nil {
		if err := services.Redis.Close(); err != nil {
			logger.Error().Err(err).Msg("Redis關閉錯誤")
		}
	}

	if services.MongoDB != nil {
		if err := services.MongoDB.Close(context.Background()); err != nil {
			logger.Error().Err(err).Msg("MongoDB關閉錯誤")
		}
	}
}
