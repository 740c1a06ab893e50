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

package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"graphrag-platform/internal/storage/cache"
)

// CachedEmbedder 记忆化包装：同一文本在 TTL 内只向量化一次。
// 重复处理同一文档的 chunk 时命中率很高。
type CachedEmbedder struct {
	inner Embedder
	cache cache.Store
	ttl   time.Duration
}

// NewCachedEmbedder 创建记忆化 Embedder；cache 为 nil 时退化为直接调用
func NewCachedEmbedder(inner Embedder, store cache.Store, ttl time.Duration) *CachedEmbedder {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedEmbedder{inner: inner, cache: store, ttl: ttl}
}

// Embed 先查缓存，只把未命中的文本发给底层
func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if e.cache == nil {
		return e.inner.Embed(ctx, texts)
	}

	out := make([][]float64, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		var cached []float64
		if err := e.cache.Get(ctx, e.key(text), &cached); err == nil && len(cached) > 0 {
			out[i] = cached
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := e.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = vectors[j]
		// 写缓存失败不影响主流程
		_ = e.cache.Set(ctx, e.key(texts[i]), vectors[j], e.ttl)
	}
	return out, nil
}

// Model 返回底层模型名称
func (e *CachedEmbedder) Model() string { return e.inner.Model() }

// Dimension 返回底层向量维度
func (e *CachedEmbedder) Dimension() int { return e.inner.Dimension() }

func (e *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(e.inner.Model() + "\x00" + text))
	return "emb:" + hex.EncodeToString(sum[:16])
}
