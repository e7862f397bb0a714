package loader

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ProcessedFilesKey Redis set，記錄已發佈過的檔案名稱
const ProcessedFilesKey = "cdr:loader:processed"

// ProcessedFiles remembers which files have already been published.
type ProcessedFiles interface {
	IsProcessed(ctx context.Context, fileName string) (bool, error)
	MarkProcessed(ctx context.Context, fileName string) error
}

// RedisProcessedFiles 多個 loader 實例共用同一份紀錄
type RedisProcessedFiles struct {
	client redis.Cmdable
	key    string
}

func NewRedisProcessedFiles(client redis.Cmdable) *RedisProcessedFiles {
	return &RedisProcessedFiles{client: client, key: ProcessedFilesKey}
}

func (p *RedisProcessedFiles) IsProcessed(ctx context.Context, fileName string) (bool, error) {
	return p.client.SIsMember(ctx, p.key, fileName).Result()
}

func (p *RedisProcessedFiles) MarkProcessed(ctx context.Context, fileName string) error {
	return p.client.SAdd(ctx, p.key, fileName).Err()
}

// MemoryProcessedFiles 未啟用 Redis 時使用，重啟後會重新處理所有檔案
type MemoryProcessedFiles struct {
	mu    sync.Mutex
	names map[string]struct{}
}

func NewMemoryProcessedFiles() *MemoryProcessedFiles {
	return &MemoryProcessedFiles{names: make(map[string]struct{})}
}

func (p *MemoryProcessedFiles) IsProcessed(ctx context.Context, fileName string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.names[fileName]
	return ok, nil
}

func (p *MemoryProcessedFiles) MarkProcessed(ctx context.Context, fileName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.names[fileName] = struct{}{}
	return nil
}
