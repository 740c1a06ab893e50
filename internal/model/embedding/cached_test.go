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
	"testing"
	"time"

	"graphrag-platform/internal/storage/cache"
)

// countingEmbedder 记录调用文本数的假 Embedder
type countingEmbedder struct {
	embedded int
}

func (f *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	f.embedded += len(texts)
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = []float64{float64(len(t)), 1}
	}
	return out, nil
}

func (f *countingEmbedder) Model() string  { return "counting" }
func (f *countingEmbedder) Dimension() int { return 2 }

func TestCachedEmbedderMemoizes(t *testing.T) {
	inner := &countingEmbedder{}
	e := NewCachedEmbedder(inner, cache.NewMemoryStore(0, 0), time.Minute)
	ctx := context.Background()

	got, err := e.Embed(ctx, []string{"人工智能", "机器学习"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != 2 || inner.embedded != 2 {
		t.Fatalf("首次调用应全部下发: got=%d embedded=%d", len(got), inner.embedded)
	}

	// 第二次：一个命中、一个新文本
	got, err = e.Embed(ctx, []string{"人工智能", "深度学习"})
	if err != nil {
		t.Fatalf("Embed repeat: %v", err)
	}
	if inner.embedded != 3 {
		t.Fatalf("命中的文本不应重复下发: embedded=%d", inner.embedded)
	}
	if got[0][1] != 1 {
		t.Fatalf("缓存往返损坏: %v", got[0])
	}
}

func TestCachedEmbedderNilCache(t *testing.T) {
	inner := &countingEmbedder{}
	e := NewCachedEmbedder(inner, nil, time.Minute)

	if _, err := e.Embed(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if _, err := e.Embed(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if inner.embedded != 2 {
		t.Fatalf("无缓存时应直接透传: embedded=%d", inner.embedded)
	}
}
