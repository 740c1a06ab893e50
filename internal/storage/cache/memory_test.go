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
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestMemorySetGet(t *testing.T) {
	s := NewMemoryStore(0, 0)
	ctx := context.Background()

	type payload struct {
		Vectors [][]float64 `json:"vectors"`
	}
	want := payload{Vectors: [][]float64{{0.1, 0.2}}}
	if err := s.Set(ctx, "emb:abc", want, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got payload
	if err := s.Get(ctx, "emb:abc", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Vectors) != 1 || got.Vectors[0][1] != 0.2 {
		t.Fatalf("往返不一致: %v", got)
	}
}

func TestMemoryMiss(t *testing.T) {
	s := NewMemoryStore(0, 0)
	ctx := context.Background()

	var dest string
	if err := s.Get(ctx, "missing", &dest); !errors.Is(err, ErrMiss) {
		t.Fatalf("未命中应返回 ErrMiss, got %v", err)
	}

	if err := s.Set(ctx, "k", "v", 10*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if err := s.Get(ctx, "k", &dest); !errors.Is(err, ErrMiss) {
		t.Fatalf("过期后应返回 ErrMiss, got %v", err)
	}
}

func TestMemoryBounded(t *testing.T) {
	s := NewMemoryStore(8, time.Minute)
	ctx := context.Background()

	for i := 0; i < 32; i++ {
		if err := s.Set(ctx, fmt.Sprintf("k%d", i), i, time.Minute); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	if n := s.c.ItemCount(); n > 8 {
		t.Fatalf("条目数 %d 超过上限 8", n)
	}
}

func TestMemoryDeleteAndClear(t *testing.T) {
	s := NewMemoryStore(0, 0)
	ctx := context.Background()

	_ = s.Set(ctx, "a", 1, time.Minute)
	_ = s.Set(ctx, "b", 2, time.Minute)

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	ok, err := s.Exists(ctx, "a")
	if err != nil || ok {
		t.Fatalf("删除后仍存在: ok=%v err=%v", ok, err)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	ok, _ = s.Exists(ctx, "b")
	if ok {
		t.Fatal("Clear 后仍存在")
	}
}
