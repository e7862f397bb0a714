// Package loader reads CDR files from a directory and publishes each record to the ingestion queue.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cdr-backend/infra"
	"cdr-backend/metrics"

	"github.com/rs/zerolog"
)

// Publisher 發佈訊息到隊列，key 為關聯鍵（來源號碼）
type Publisher interface {
	Publish(ctx context.Context, queueName, key string, body []byte) error
}

// Config loader 設定
type Config struct {
	Directory string
	Queue     string
	Interval  time.Duration
	Strict    bool // 跳過驗證失敗的紀錄
}

// RunResult 一輪掃描的統計
type RunResult struct {
	Files     int `json:"files"`
	Published int `json:"published"`
	Rejected  int `json:"rejected"`
	Skipped   int `json:"skipped"` // 已處理或無效的檔案
}

type Loader struct {
	logger    zerolog.Logger
	config    Config
	publisher Publisher
	processed ProcessedFiles
	now       func() time.Time
}

func NewLoader(logger zerolog.Logger, config Config, publisher Publisher, processed ProcessedFiles) *Loader {
	return &Loader{
		logger:    logger.With().Str("module", "cdr_loader").Str("directory", config.Directory).Logger(),
		config:    config,
		publisher: publisher,
		processed: processed,
		now:       time.Now,
	}
}

// Run 每隔 Interval 執行一次 RunOnce，直到 ctx 結束
func (l *Loader) Run(ctx context.Context) {
	ticker := time.NewTicker(l.config.Interval)
	defer ticker.Stop()

	for {
		if _, err := l.RunOnce(ctx); err != nil {
			l.logger.Error().Err(err).Msg("CDR 檔案載入失敗 (Loader run failed)")
		}

		select {
		case <-ctx.Done():
			l.logger.Info().Msg("CDR loader 已停止 (Loader stopped)")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce 掃描目錄並發佈尚未處理的檔案。發佈失敗的檔案不會標記為已處理，下一輪會重試
func (l *Loader) RunOnce(ctx context.Context) (RunResult, error) {
	var result RunResult

	entries, err := os.ReadDir(l.config.Directory)
	if err != nil {
		return result, fmt.Errorf("read directory %s: %w", l.config.Directory, err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if entry.IsDir() || !SupportedExtension(entry.Name()) {
			continue
		}
		result.Files++

		published, rejected, err := l.loadFile(ctx, entry.Name())
		result.Published += published
		result.Rejected += rejected
		if errors.Is(err, errFileSkipped) {
			result.Skipped++
			continue
		}
		if err != nil {
			return result, err
		}
	}

	if result.Files > 0 {
		l.logger.Info().
			Int("files", result.Files).
			Int("published", result.Published).
			Int("rejected", result.Rejected).
			Int("skipped", result.Skipped).
			Msg("CDR 檔案載入完成 (Loader run completed)")
	}
	return result, nil
}

var errFileSkipped = errors.New("file skipped")

func (l *Loader) loadFile(ctx context.Context, name string) (published, rejected int, err error) {
	start := time.Now()
	path := filepath.Join(l.config.Directory, name)
	logger := l.logger.With().Str("file_name", name).Logger()

	ctx, span := infra.StartSpan(ctx, "loader_load_file", infra.AttrFileName(name))
	defer span.End()

	done, err := l.processed.IsProcessed(ctx, name)
	if err != nil {
		infra.RecordError(span, err, "processed lookup failed")
		return 0, 0, fmt.Errorf("check processed %s: %w", name, err)
	}
	if done {
		return 0, 0, errFileSkipped
	}

	if err := ValidateFile(path); err != nil {
		logger.Warn().Err(err).Msg("檔案驗證失敗 (Invalid cdr file)")
		return 0, 0, errFileSkipped
	}

	records, err := ParseFile(path)
	if err != nil {
		logger.Error().Err(err).Msg("檔案解析失敗 (Failed to parse cdr file)")
		metrics.RecordServiceOperation(metrics.ServiceTypeLoader, metrics.OperationLoadFile, metrics.StatusError, metrics.SourceLoader, time.Since(start))
		return 0, 0, errFileSkipped
	}

	now := l.now()
	for i, rec := range records {
		if l.config.Strict {
			if verr := ValidateRecord(rec, now); verr != nil {
				logger.Warn().Int("row", i+1).Str("problems", verr.Error()).Msg("紀錄驗證失敗，已略過 (Skipped invalid record)")
				rejected++
				continue
			}
		}

		body, err := json.Marshal(rec.Message)
		if err != nil {
			return published, rejected, err
		}
		if err := l.publisher.Publish(ctx, l.config.Queue, rec.Message.Source, body); err != nil {
			logger.Error().Err(err).Int("row", i+1).Msg("發佈 CDR 失敗 (Failed to publish cdr)")
			infra.RecordError(span, err, "publish failed")
			metrics.RecordLoaderRecords(metrics.StatusSuccess, published)
			metrics.RecordLoaderRecords(metrics.StatusSkipped, rejected)
			return published, rejected, fmt.Errorf("publish %s row %d: %w", name, i+1, err)
		}
		published++
	}

	if err := l.processed.MarkProcessed(ctx, name); err != nil {
		logger.Error().Err(err).Msg("標記檔案已處理失敗 (Failed to mark file processed)")
	}

	metrics.RecordLoaderRecords(metrics.StatusSuccess, published)
	metrics.RecordLoaderRecords(metrics.StatusSkipped, rejected)
	metrics.RecordServiceOperation(metrics.ServiceTypeLoader, metrics.OperationLoadFile, metrics.StatusSuccess, metrics.SourceLoader, time.Since(start))
	infra.MarkSuccess(span, infra.AttrInt("loader.published", published), infra.AttrInt("loader.rejected", rejected))
	logger.Info().Int("published", published).Int("rejected", rejected).Msg("檔案已發佈 (Cdr file published)")
	return published, rejected, nil
}
