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

package feedback

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Log 溯源日志：追加写，按判定 ID 或 chunk 读取
type Log interface {
	Append(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	ByChunk(ctx context.Context, chunkID string) ([]*Record, error)
	Close() error
}

// MemoryLog 内存溯源日志，测试与单机部署用
type MemoryLog struct {
	mu      sync.RWMutex
	records map[string]*Record
	byChunk map[string][]string
}

// NewMemoryLog 创建内存溯源日志
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{
		records: make(map[string]*Record),
		byChunk: make(map[string][]string),
	}
}

// Append 实现 Log。同 ID 重复追加是幂等回放，不报错也不产生副本。
func (l *MemoryLog) Append(ctx context.Context, rec *Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.records[rec.ID]; exists {
		return nil
	}
	cp := *rec
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	l.records[rec.ID] = &cp
	if rec.ChunkID != "" {
		l.byChunk[rec.ChunkID] = append(l.byChunk[rec.ChunkID], rec.ID)
	}
	return nil
}

// Get 实现 Log
func (l *MemoryLog) Get(ctx context.Context, id string) (*Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// ByChunk 实现 Log，按写入时间排序
func (l *MemoryLog) ByChunk(ctx context.Context, chunkID string) ([]*Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := l.byChunk[chunkID]
	out := make([]*Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := l.records[id]; ok {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Close 实现 Log
func (l *MemoryLog) Close() error { return nil }
