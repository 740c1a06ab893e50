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

// Queue 人工复核队列
type Queue interface {
	// Enqueue 入队，同 ID 重复入队幂等
	Enqueue(ctx context.Context, item *ReviewItem) error
	// Pending 按入队时间返回待复核项
	Pending(ctx context.Context, limit int) ([]*ReviewItem, error)
	// Get 按 ID 读取复核项
	Get(ctx context.Context, id string) (*ReviewItem, error)
	// Resolve 关闭复核项；已关闭的返回 ErrAlreadyClosed
	Resolve(ctx context.Context, id string, status ReviewStatus) (*ReviewItem, error)
	Close() error
}

// MemoryQueue 内存复核队列
type MemoryQueue struct {
	mu    sync.Mutex
	items map[string]*ReviewItem
	order []string
}

// NewMemoryQueue 创建内存复核队列
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{items: make(map[string]*ReviewItem)}
}

// Enqueue 实现 Queue
func (q *MemoryQueue) Enqueue(ctx context.Context, item *ReviewItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.items[item.ID]; exists {
		return nil
	}
	cp := *item
	if cp.Status == "" {
		cp.Status = ReviewPending
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	q.items[item.ID] = &cp
	q.order = append(q.order, item.ID)
	return nil
}

// Pending 实现 Queue
func (q *MemoryQueue) Pending(ctx context.Context, limit int) ([]*ReviewItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*ReviewItem
	for _, id := range q.order {
		item := q.items[id]
		if item == nil || item.Status != ReviewPending {
			continue
		}
		cp := *item
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Get 实现 Queue
func (q *MemoryQueue) Get(ctx context.Context, id string) (*ReviewItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *item
	return &cp, nil
}

// Resolve 实现 Queue
func (q *MemoryQueue) Resolve(ctx context.Context, id string, status ReviewStatus) (*ReviewItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if item.Status != ReviewPending {
		return nil, ErrAlreadyClosed
	}
	item.Status = status
	item.ClosedAt = time.Now()
	cp := *item
	return &cp, nil
}

// Close 实现 Queue
func (q *MemoryQueue) Close() error { return nil }
