package vector

import (
	"context"
	"fmt"

	"graphrag-platform/pkg/config"
)

// 内置索引名：实体节点索引与证据 claim 索引
const (
	EntityIndex = "entities"
	ClaimIndex  = "claims"
)

// NewStore 根据配置创建向量索引（当前仅支持 memory）
func NewStore(cfg config.VectorConfig) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("不支持的向量存储类型: %s", cfg.Type)
	}
}

// EnsureIndex 若索引不存在则创建，存在则跳过
func EnsureIndex(ctx context.Context, s Store, name string, dimension int, distance string) error {
	if distance == "" {
		distance = "cosine"
	}
	list, err := s.ListIndexes(ctx)
	if err != nil {
		return fmt.Errorf("列出索引失败: %w", err)
	}
	for _, n := range list {
		if n == name {
			return nil
		}
	}
	return s.Create(ctx, &Index{Name: name, Dimension: dimension, Distance: distance})
}
