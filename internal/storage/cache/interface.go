package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss 缓存未命中（含已过期）
var ErrMiss = errors.New("缓存未命中")

// Store 缓存存储接口。embedding 记忆化与候选集短缓存共用。
type Store interface {
	// Set 设置缓存；expiration <=0 使用后端默认 TTL
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	// Get 获取缓存并反序列化到 dest；未命中返回 ErrMiss
	Get(ctx context.Context, key string, dest interface{}) error
	// Delete 删除缓存
	Delete(ctx context.Context, key string) error
	// Exists 检查缓存是否存在且未过期
	Exists(ctx context.Context, key string) (bool, error)
	// Clear 清除所有缓存
	Clear(ctx context.Context) error
	// Close 关闭缓存连接
	Close() error
}
