package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cdr-backend/infra"
	"cdr-backend/loader"
	"cdr-backend/metrics"
	appMiddleware "cdr-backend/middleware"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Config string `help:"設定檔路徑" short:"c" default:"config.yml"`
	Once   bool   `help:"只掃描一次後結束" default:"false"`
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, options *Options) {
		cfg, err := infra.ReadConfig(options.Config)
		if err != nil {
			log.Fatal().Err(err).Str("path", options.Config).Msg("讀取 config.yml 失敗")
		}

		logger := infra.InitLogger("cdr-loader")

		if err := appMiddleware.InitPrometheusMetrics(logger); err != nil {
			logger.Error().Err(err).Msg("Prometheus metrics 初始化失敗，將繼續運行")
		}
		if err := metrics.InitServiceMetrics(appMiddleware.GetPrometheusRegistry()); err != nil {
			logger.Error().Err(err).Msg("Service metrics 初始化失敗，將繼續運行")
		}
		infra.InitTracer()

		rabbitMQ, err := infra.NewRabbitMQ(infra.RabbitMQConfig{
			URL:      cfg.RabbitMQ.URL,
			Queues:   []string{cfg.RabbitMQ.Queue},
			Prefetch: cfg.RabbitMQ.Prefetch,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("RabbitMQ連接失敗")
		}

		var processed loader.ProcessedFiles = loader.NewMemoryProcessedFiles()
		var redisClient *infra.Redis
		if cfg.Redis.Enabled {
			redisClient, err = infra.NewRedis(infra.RedisConfig{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			if err != nil {
				logger.Error().Err(err).Msg("Redis連接失敗，已處理檔案改存記憶體 (繼續運行)")
			} else {
				processed = loader.NewRedisProcessedFiles(redisClient.Client)
			}
		}

		cdrLoader := loader.NewLoader(logger, loader.Config{
			Directory: cfg.Loader.Directory,
			Queue:     cfg.RabbitMQ.Queue,
			Interval:  time.Duration(cfg.Loader.IntervalSeconds) * time.Second,
			Strict:    cfg.StrictValidation(),
		}, rabbitMQ, processed)

		hooks.OnStart(func() {
			defer func() {
				if redisClient != nil {
					if err := redisClient.Close(); err != nil {
						logger.Error().Err(err).Msg("Redis關閉錯誤")
					}
				}
				if err := rabbitMQ.Close(); err != nil {
					logger.Error().Err(err).Msg("RabbitMQ關閉錯誤")
				}
			}()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if options.Once {
				result, err := cdrLoader.RunOnce(ctx)
				if err != nil {
					logger.Error().Err(err).Msg("CDR 檔案載入失敗")
					return
				}
				logger.Info().Interface("result", result).Msg("CDR 檔案載入完成")
				return
			}

			logger.Info().
				Str("directory", cfg.Loader.Directory).
				Int("interval_seconds", cfg.Loader.IntervalSeconds).
				Bool("strict", cfg.StrictValidation()).
				Msg("CDR loader 已啟動")
			cdrLoader.Run(ctx)
		})
	})
	cli.Run()
}
