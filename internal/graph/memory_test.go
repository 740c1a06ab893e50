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

package graph

import (
	"context"
	"errors"
	"sync"
	"testing"

	apperrors "graphrag-platform/pkg/errors"
)

func TestUpsertNodeIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	n1, err := s.UpsertNode(ctx, &Node{Name: "人工智能", Type: "concept", Aliases: []string{"AI"}})
	if err != nil {
		t.Fatalf("UpsertNode: %v", err)
	}
	// 同身份键（大小写/空白不同）应复用同一节点
	n2, err := s.UpsertNode(ctx, &Node{Name: " 人工智能 ", Type: "concept", Aliases: []string{"Artificial Intelligence"}})
	if err != nil {
		t.Fatalf("UpsertNode repeat: %v", err)
	}
	if n1.ID != n2.ID {
		t.Fatalf("重复 upsert 产生了不同 ID: %s vs %s", n1.ID, n2.ID)
	}
	if len(n2.Aliases) != 2 {
		t.Fatalf("别名应并集合并, got %v", n2.Aliases)
	}

	// 同名不同类型是不同节点
	n3, err := s.UpsertNode(ctx, &Node{Name: "人工智能", Type: "claim"})
	if err != nil {
		t.Fatalf("UpsertNode other type: %v", err)
	}
	if n3.ID == n1.ID {
		t.Fatal("不同类型的同名节点不应共享 ID")
	}
}

func TestUpsertNodeConcurrent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 16)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := s.UpsertNode(ctx, &Node{Name: "清华大学", Type: "organization"})
			if err != nil {
				t.Errorf("UpsertNode: %v", err)
				return
			}
			ids[i] = n.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("并发 upsert 出现分裂节点: %v", ids)
		}
	}
}

func TestFindByNameAndAlias(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	n, err := s.UpsertNode(ctx, &Node{Name: "人工智能", Type: "concept", Aliases: []string{"AI"}})
	if err != nil {
		t.Fatalf("UpsertNode: %v", err)
	}

	for _, q := range []string{"人工智能", "AI", "ai"} {
		got, err := s.FindByName(ctx, q)
		if err != nil {
			t.Fatalf("FindByName(%q): %v", q, err)
		}
		if len(got) != 1 || got[0].ID != n.ID {
			t.Fatalf("FindByName(%q) = %v, 期望命中 %s", q, got, n.ID)
		}
	}

	got, err := s.FindByName(ctx, "机器学习")
	if err != nil {
		t.Fatalf("FindByName miss: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("未知名称不应命中: %v", got)
	}
}

func TestUpsertEdgeIdempotentAndDegree(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	a, _ := s.UpsertNode(ctx, &Node{Name: "A", Type: "concept"})
	b, _ := s.UpsertNode(ctx, &Node{Name: "B", Type: "concept"})

	e := &Edge{From: a.ID, To: b.ID, Type: "supports", Weight: 0.5}
	if err := s.UpsertEdge(ctx, e); err != nil {
		t.Fatalf("UpsertEdge: %v", err)
	}
	// 重复写入：取较大权重，不产生副本
	if err := s.UpsertEdge(ctx, &Edge{From: a.ID, To: b.ID, Type: "supports", Weight: 0.9}); err != nil {
		t.Fatalf("UpsertEdge repeat: %v", err)
	}

	got, err := s.GetNode(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got.Degree != 1 {
		t.Fatalf("degree = %d, 期望 1", got.Degree)
	}

	// 端点缺失
	err = s.UpsertEdge(ctx, &Edge{From: a.ID, To: "missing", Type: "supports"})
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("端点缺失应返回 ErrNotFound, got %v", err)
	}
}

func TestNeighborsBoundedTraversal(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// a -> b -> c -> d 链，2 跳上限应止于 c
	a, _ := s.UpsertNode(ctx, &Node{Name: "a", Type: "concept"})
	b, _ := s.UpsertNode(ctx, &Node{Name: "b", Type: "concept"})
	c, _ := s.UpsertNode(ctx, &Node{Name: "c", Type: "concept"})
	d, _ := s.UpsertNode(ctx, &Node{Name: "d", Type: "concept"})
	for _, pair := range [][2]string{{a.ID, b.ID}, {b.ID, c.ID}, {c.ID, d.ID}} {
		if err := s.UpsertEdge(ctx, &Edge{From: pair[0], To: pair[1], Type: "related_to"}); err != nil {
			t.Fatalf("UpsertEdge: %v", err)
		}
	}

	got, err := s.Neighbors(ctx, a.ID, TraverseOptions{MaxHops: 2})
	if err != nil {
		t.Fatalf("Neighbors: %v", err)
	}
	byID := map[string]int{}
	for _, n := range got {
		byID[n.Node.ID] = n.Hops
	}
	if byID[b.ID] != 1 || byID[c.ID] != 2 {
		t.Fatalf("跳数错误: %v", byID)
	}
	if _, ok := byID[d.ID]; ok {
		t.Fatal("2 跳上限不应抵达 d")
	}
}

func TestNeighborsRelationFilterAndReview(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	a, _ := s.UpsertNode(ctx, &Node{Name: "a", Type: "concept"})
	b, _ := s.UpsertNode(ctx, &Node{Name: "b", Type: "concept"})
	c, _ := s.UpsertNode(ctx, &Node{Name: "c", Type: "concept"})
	_ = s.UpsertEdge(ctx, &Edge{From: a.ID, To: b.ID, Type: "supports"})
	_ = s.UpsertEdge(ctx, &Edge{From: a.ID, To: c.ID, Type: "mentions", Status: EdgeReview})

	// 关系白名单过滤
	got, err := s.Neighbors(ctx, a.ID, TraverseOptions{MaxHops: 1, RelationTypes: []string{"supports"}})
	if err != nil {
		t.Fatalf("Neighbors: %v", err)
	}
	if len(got) != 1 || got[0].Node.ID != b.ID {
		t.Fatalf("白名单过滤失败: %v", got)
	}

	// review 态边默认不可见
	got, err = s.Neighbors(ctx, a.ID, TraverseOptions{MaxHops: 1})
	if err != nil {
		t.Fatalf("Neighbors: %v", err)
	}
	for _, n := range got {
		if n.Node.ID == c.ID {
			t.Fatal("review 态边不应出现在默认游走中")
		}
	}

	// IncludeReview 时可见
	got, err = s.Neighbors(ctx, a.ID, TraverseOptions{MaxHops: 1, IncludeReview: true})
	if err != nil {
		t.Fatalf("Neighbors: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("IncludeReview 应看到两条边: %v", got)
	}
}

func TestMatchTokens(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	ml, _ := s.UpsertNode(ctx, &Node{Name: "机器学习", Type: "concept"})
	_, _ = s.UpsertNode(ctx, &Node{Name: "深度学习", Type: "concept"})
	_, _ = s.UpsertNode(ctx, &Node{Name: "图数据库", Type: "concept"})

	got, err := s.MatchTokens(ctx, []string{"机器", "学习"}, 10)
	if err != nil {
		t.Fatalf("MatchTokens: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("期望命中 2 个节点, got %d", len(got))
	}
	// 双词元命中的排在前面
	if got[0].Node.ID != ml.ID || got[0].Matched != 2 {
		t.Fatalf("排序错误: first=%s matched=%d", got[0].Node.Name, got[0].Matched)
	}
}

func TestRepointEdges(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	dup, _ := s.UpsertNode(ctx, &Node{Name: "AI 公司", Type: "organization"})
	canon, _ := s.UpsertNode(ctx, &Node{Name: "人工智能公司", Type: "organization"})
	other, _ := s.UpsertNode(ctx, &Node{Name: "北京", Type: "location"})
	_ = s.UpsertEdge(ctx, &Edge{From: dup.ID, To: other.ID, Type: "located_in", Weight: 0.8})

	if err := s.RepointEdges(ctx, dup.ID, canon.ID); err != nil {
		t.Fatalf("RepointEdges: %v", err)
	}
	got, err := s.Neighbors(ctx, canon.ID, TraverseOptions{MaxHops: 1})
	if err != nil {
		t.Fatalf("Neighbors: %v", err)
	}
	if len(got) != 1 || got[0].Node.ID != other.ID {
		t.Fatalf("边未改挂到目标节点: %v", got)
	}
	if err := s.DeleteNode(ctx, dup.ID); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"  Foo   Bar ": "foo bar",
		"人工智能":         "人工智能",
		"OpenAI":       "openai",
		"":             "",
	}
	for in, want := range cases {
		if got := NormalizeName(in); got != want {
			t.Fatalf("NormalizeName(%q) = %q, 期望 %q", in, got, want)
		}
	}
}
