package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger 初始化 zerolog，service 為程式名稱 (cdr-backend、cdr-loader)
func InitLogger(service string) zerolog.Logger {
	// 設定時間格式
	zerolog.TimeFieldFormat = time.RFC3339

	var writers []io.Writer

	// Console 輸出（開發環境），Production 使用 JSON 格式
	if getEnvironment() != "production" {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "2006-01-02 15:04:05",
		})
	} else {
		writers = append(writers, os.Stdout)
	}

	multi := zerolog.MultiLevelWriter(writers...)

	// 設定全域 logger
	log.Logger = zerolog.New(multi).
		With().
		Timestamp().
		Str("service", service).
		Str("environment", getEnvironment()).
		Str("hostname", Hostname()).
		Logger()

	setLogLevel()
	return log.Logger
}

// getEnvironment 獲取環境名稱
func getEnvironment() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "development"
	}
	return env
}

// Hostname 獲取主機名稱，失敗時回傳 unknown
func Hostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}

// setLogLevel 依 LOG_LEVEL 設定日誌級別，預設 info
func setLogLevel() {
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

// GetLogger 獲取特定模組的 logger
func GetLogger(module string) zerolog.Logger {
	return log.With().Str("module", module).Logger()
}
