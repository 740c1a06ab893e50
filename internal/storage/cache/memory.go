// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore 基于 go-cache 的内存缓存，带条目数上限。
// 超过上限时整体淘汰最早写入批次外的简单策略：直接 Flush 并重建，
// 记忆化场景下冷启动代价可接受。
type MemoryStore struct {
	c          *gocache.Cache
	mu         sync.Mutex
	maxEntries int
	defaultTTL time.Duration
}

// NewMemoryStore 创建内存缓存；maxEntries <=0 默认 10000，defaultTTL <=0 默认 1h
func NewMemoryStore(maxEntries int, defaultTTL time.Duration) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &MemoryStore{
		c:          gocache.New(defaultTTL, 10*time.Minute),
		maxEntries: maxEntries,
		defaultTTL: defaultTTL,
	}
}

// Set 设置缓存
func (s *MemoryStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("缓存值序列化失败: %w", err)
	}
	if expiration <= 0 {
		expiration = s.defaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c.ItemCount() >= s.maxEntries {
		s.c.Flush()
	}
	s.c.Set(key, data, expiration)
	return nil
}

// Get 获取缓存
func (s *MemoryStore) Get(ctx context.Context, key string, dest interface{}) error {
	v, ok := s.c.Get(key)
	if !ok {
		return ErrMiss
	}
	data, ok := v.([]byte)
	if !ok {
		return ErrMiss
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("缓存值反序列化失败: %w", err)
	}
	return nil
}

// Delete 删除缓存
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.c.Delete(key)
	return nil
}

// Exists 检查缓存是否存在
func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := s.c.Get(key)
	return ok, nil
}

// Clear 清除所有缓存
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.c.Flush()
	return nil
}

// Close 无操作
func (s *MemoryStore) Close() error { return nil }
