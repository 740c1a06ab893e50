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

package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore 内存向量索引实现
type MemoryStore struct {
	indexes map[string]*memIndex
	mu      sync.RWMutex
}

type memIndex struct {
	meta    *Index
	vectors map[string]*Vector
}

// NewMemoryStore 创建内存向量索引
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{indexes: make(map[string]*memIndex)}
}

// Create 创建向量索引
func (s *MemoryStore) Create(ctx context.Context, idx *Index) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.indexes[idx.Name]; exists {
		return fmt.Errorf("索引 %s 已存在", idx.Name)
	}
	s.indexes[idx.Name] = &memIndex{meta: idx, vectors: make(map[string]*Vector)}
	return nil
}

// Upsert 写入向量，同 ID 覆盖
func (s *MemoryStore) Upsert(ctx context.Context, indexName string, vectors []*Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, exists := s.indexes[indexName]
	if !exists {
		return fmt.Errorf("索引 %s 不存在", indexName)
	}
	for _, v := range vectors {
		if len(v.Values) != idx.meta.Dimension {
			return fmt.Errorf("向量维度 %d 与索引维度 %d 不一致", len(v.Values), idx.meta.Dimension)
		}
		idx.vectors[v.ID] = v
	}
	return nil
}

// Search 全量扫描打分。得分并列时按 ID 升序，保证多次检索顺序一致。
func (s *MemoryStore) Search(ctx context.Context, indexName string, query []float64, options *SearchOptions) ([]*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, exists := s.indexes[indexName]
	if !exists {
		return nil, fmt.Errorf("索引 %s 不存在", indexName)
	}
	if len(query) != idx.meta.Dimension {
		return nil, fmt.Errorf("查询维度 %d 与索引维度 %d 不一致", len(query), idx.meta.Dimension)
	}
	if options == nil {
		options = &SearchOptions{TopK: 10}
	}
	topK := options.TopK
	if topK <= 0 {
		topK = 10
	}

	var results []*SearchResult
	for id, v := range idx.vectors {
		if !matchFilter(v.Metadata, options.Filter) {
			continue
		}
		score := similarity(query, v.Values, idx.meta.Distance)
		if score < options.Threshold {
			continue
		}
		results = append(results, &SearchResult{ID: id, Score: score, Metadata: v.Metadata})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Get 根据 ID 获取向量
func (s *MemoryStore) Get(ctx context.Context, indexName string, id string) (*Vector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, exists := s.indexes[indexName]
	if !exists {
		return nil, fmt.Errorf("索引 %s 不存在", indexName)
	}
	v, exists := idx.vectors[id]
	if !exists {
		return nil, fmt.Errorf("向量 %s 不存在", id)
	}
	return v, nil
}

// Delete 删除向量
func (s *MemoryStore) Delete(ctx context.Context, indexName string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, exists := s.indexes[indexName]
	if !exists {
		return fmt.Errorf("索引 %s 不存在", indexName)
	}
	if _, exists := idx.vectors[id]; !exists {
		return fmt.Errorf("向量 %s 不存在", id)
	}
	delete(idx.vectors, id)
	return nil
}

// DeleteIndex 删除索引
func (s *MemoryStore) DeleteIndex(ctx context.Context, indexName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.indexes[indexName]; !exists {
		return fmt.Errorf("索引 %s 不存在", indexName)
	}
	delete(s.indexes, indexName)
	return nil
}

// ListIndexes 列出所有索引
func (s *MemoryStore) ListIndexes(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.indexes))
	for name := range s.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Close 无操作
func (s *MemoryStore) Close() error { return nil }

func matchFilter(meta, filter map[string]string) bool {
	for k, v := range filter {
		if meta == nil || meta[k] != v {
			return false
		}
	}
	return true
}

func similarity(query, vec []float64, distance string) float64 {
	switch distance {
	case "euclidean":
		return 1.0 / (1.0 + euclideanDistance(query, vec))
	default:
		return cosineSimilarity(query, vec)
	}
}

// cosineSimilarity 余弦相似度；零向量得 0
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}
	dot, normA, normB := 0.0, 0.0, 0.0
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func euclideanDistance(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
