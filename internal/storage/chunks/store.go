package chunks

import (
	"context"
	"fmt"

	"graphrag-platform/pkg/config"
)

// NewStore 根据配置创建 chunk 存储
func NewStore(ctx context.Context, cfg config.ChunksConfig) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "postgres":
		return NewPgStore(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("不支持的 chunk 存储类型: %s", cfg.Type)
	}
}
