package service

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// IngestionStatsKey Redis hash 鍵值，多個 consumer 實例共用
const IngestionStatsKey = "cdr:ingestion:stats"

const fallbackFieldPrefix = "fallback:"

// IngestOutcome 單則訊息的處理結果
type IngestOutcome string

const (
	IngestSaved   IngestOutcome = "saved"
	IngestInvalid IngestOutcome = "invalid" // JSON 解析失敗
	IngestFailed  IngestOutcome = "failed"  // 儲存失敗
)

// IngestionStats 攝取計數，Fallbacks 的 key 為 "<field>:<reason>"
type IngestionStats struct {
	Received  int64            `json:"received"`
	Saved     int64            `json:"saved"`
	Invalid   int64            `json:"invalid"`
	Failed    int64            `json:"failed"`
	Fallbacks map[string]int64 `json:"fallbacks"`
	Shared    bool             `json:"shared" doc:"計數是否來自 Redis（跨實例共享）"`
}

// IngestionRecorder receives the outcome of every consumed message.
type IngestionRecorder interface {
	RecordIngest(ctx context.Context, outcome IngestOutcome, events []FallbackEvent)
}

// IngestionStatsService counts consumed messages in a Redis hash shared by all consumer instances.
// Without Redis it keeps process-local counters.
type IngestionStatsService struct {
	logger zerolog.Logger
	redis  redis.Cmdable

	mu    sync.Mutex
	local map[string]int64
}

// NewIngestionStatsService rdb 可為 nil
func NewIngestionStatsService(logger zerolog.Logger, rdb redis.Cmdable) *IngestionStatsService {
	return &IngestionStatsService{
		logger: logger.With().Str("module", "ingestion_stats_service").Logger(),
		redis:  rdb,
		local:  make(map[string]int64),
	}
}

func (s *IngestionStatsService) RecordIngest(ctx context.Context, outcome IngestOutcome, events []FallbackEvent) {
	fields := make([]string, 0, 2+len(events))
	fields = append(fields, "received", string(outcome))
	for _, e := range events {
		fields = append(fields, fallbackFieldPrefix+e.Field+":"+string(e.Reason))
	}

	if s.redis == nil {
		s.mu.Lock()
		for _, f := range fields {
			s.local[f]++
		}
		s.mu.Unlock()
		return
	}

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, f := range fields {
			pipe.HIncrBy(ctx, IngestionStatsKey, f, 1)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("outcome", string(outcome)).Msg("更新攝取統計失敗 (Failed to update ingestion stats)")
	}
}

// Stats 讀取目前計數
func (s *IngestionStatsService) Stats(ctx context.Context) (*IngestionStats, error) {
	if s.redis == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return buildIngestionStats(s.local, false), nil
	}

	raw, err := s.redis.HGetAll(ctx, IngestionStatsKey).Result()
	if err != nil {
		s.logger.Error().Err(err).Msg("讀取攝取統計失敗 (Failed to read ingestion stats)")
		return nil, err
	}

	counts := make(map[string]int64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		counts[k] = n
	}
	return buildIngestionStats(counts, true), nil
}

func buildIngestionStats(counts map[string]int64, shared bool) *IngestionStats {
	stats := &IngestionStats{
		Received:  counts["received"],
		Saved:     counts[string(IngestSaved)],
		Invalid:   counts[string(IngestInvalid)],
		Failed:    counts[string(IngestFailed)],
		Fallbacks: make(map[string]int64),
		Shared:    shared,
	}
	for k, v := range counts {
		if key, ok := strings.CutPrefix(k, fallbackFieldPrefix); ok {
			stats.Fallbacks[key] = v
		}
	}
	return stats
}
