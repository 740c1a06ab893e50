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

package chunks

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "graphrag-platform/pkg/errors"
)

// MemoryStore 内存 chunk 存储
type MemoryStore struct {
	mu     sync.Mutex
	chunks map[string]*Chunk
	byDoc  map[string][]string
}

// NewMemoryStore 创建内存 chunk 存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chunks: make(map[string]*Chunk),
		byDoc:  make(map[string][]string),
	}
}

// Put 幂等写入；已 resolved 的 chunk 重复提交不回退状态
func (s *MemoryStore) Put(ctx context.Context, chunk *Chunk) error {
	if chunk == nil || chunk.ID == "" {
		return apperrors.Wrap(apperrors.ErrInvalidArg, "chunk 缺少 ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.chunks[chunk.ID]; ok {
		if existing.Status == StatusResolved {
			return nil
		}
		c := cloneChunk(chunk)
		c.Status = StatusPending
		c.UpdatedAt = time.Now()
		s.chunks[chunk.ID] = c
		return nil
	}

	c := cloneChunk(chunk)
	if c.Status == "" {
		c.Status = StatusPending
	}
	c.UpdatedAt = time.Now()
	s.chunks[c.ID] = c
	s.byDoc[c.DocID] = append(s.byDoc[c.DocID], c.ID)
	return nil
}

// Get 按 ID 读取
func (s *MemoryStore) Get(ctx context.Context, id string) (*Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chunks[id]
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "chunk %s", id)
	}
	return cloneChunk(c), nil
}

// ByDoc 按文档读取
func (s *MemoryStore) ByDoc(ctx context.Context, docID string) ([]*Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := append([]string(nil), s.byDoc[docID]...)
	sort.Strings(ids)
	out := make([]*Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.chunks[id]; ok {
			out = append(out, cloneChunk(c))
		}
	}
	return out, nil
}

// ClaimPending 领取 pending chunk，单锁内完成状态翻转保证互斥
func (s *MemoryStore) ClaimPending(ctx context.Context, limit int) ([]*Chunk, error) {
	if limit <= 0 {
		limit = 16
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.chunks))
	for id, c := range s.chunks {
		if c.Status == StatusPending {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]*Chunk, 0, len(ids))
	for _, id := range ids {
		c := s.chunks[id]
		c.Status = StatusProcessing
		c.UpdatedAt = time.Now()
		out = append(out, cloneChunk(c))
	}
	return out, nil
}

// MarkResolved 写入消解结果
func (s *MemoryStore) MarkResolved(ctx context.Context, id, resolvedText, strategy string, aliasMap map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chunks[id]
	if !ok {
		return apperrors.Wrapf(apperrors.ErrNotFound, "chunk %s", id)
	}
	c.ResolvedText = resolvedText
	c.Strategy = strategy
	c.AliasMap = aliasMap
	c.Status = StatusResolved
	c.FailReason = ""
	c.UpdatedAt = time.Now()
	return nil
}

// MarkFailed 标记失败
func (s *MemoryStore) MarkFailed(ctx context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chunks[id]
	if !ok {
		return apperrors.Wrapf(apperrors.ErrNotFound, "chunk %s", id)
	}
	c.Status = StatusFailed
	c.FailReason = reason
	c.UpdatedAt = time.Now()
	return nil
}

// Requeue 重新入队
func (s *MemoryStore) Requeue(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chunks[id]
	if !ok {
		return apperrors.Wrapf(apperrors.ErrNotFound, "chunk %s", id)
	}
	if c.Status == StatusResolved {
		return apperrors.Wrap(apperrors.ErrConflict, "已完成的 chunk 不能重新入队")
	}
	c.Status = StatusPending
	c.FailReason = ""
	c.UpdatedAt = time.Now()
	return nil
}

// Close 无操作
func (s *MemoryStore) Close() error { return nil }

func cloneChunk(c *Chunk) *Chunk {
	cp := *c
	cp.SectionPath = append([]string(nil), c.SectionPath...)
	if c.AliasMap != nil {
		cp.AliasMap = make(map[string]string, len(c.AliasMap))
		for k, v := range c.AliasMap {
			cp.AliasMap[k] = v
		}
	}
	return &cp
}
