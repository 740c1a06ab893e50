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
	"errors"
	"testing"

	"graphrag-platform/internal/graph"
	"graphrag-platform/internal/resolve"
	"graphrag-platform/pkg/log"
)

func testService(t *testing.T) (*Service, graph.Store) {
	t.Helper()
	logger, _ := log.NewLogger(&log.Config{Level: "error", Format: "text"})
	store := graph.NewMemoryStore()
	return NewService(store, NewMemoryLog(), NewMemoryQueue(), logger), store
}

func mustNode(t *testing.T, store graph.Store, name, nodeType string) *graph.Node {
	t.Helper()
	n, err := store.UpsertNode(context.Background(), &graph.Node{Name: name, Type: nodeType})
	if err != nil {
		t.Fatalf("节点写入失败: %v", err)
	}
	return n
}

func TestMergeRepointsAndRegistersAliases(t *testing.T) {
	svc, store := testService(t)
	ctx := context.Background()

	keep := mustNode(t, store, "人工智能", "concept")
	dup := mustNode(t, store, "AI 技术", "concept")
	other := mustNode(t, store, "机器学习", "concept")
	if err := store.UpsertEdge(ctx, &graph.Edge{From: dup.ID, To: other.ID, Type: "related_to", Weight: 0.9, Status: graph.EdgeAccepted}); err != nil {
		t.Fatalf("边写入失败: %v", err)
	}

	merged, err := svc.Merge(ctx, keep.ID, dup.ID, "重复实体")
	if err != nil {
		t.Fatalf("Merge 失败: %v", err)
	}

	// 源节点消失，其名称成为保留节点的别名
	if _, err := store.GetNode(ctx, dup.ID); err == nil {
		t.Fatalf("被合并节点应已删除")
	}
	foundAlias := false
	for _, a := range merged.Aliases {
		if a == "AI 技术" {
			foundAlias = true
		}
	}
	if !foundAlias {
		t.Fatalf("合并后别名缺失: %v", merged.Aliases)
	}

	// 边改挂到保留节点
	neighbors, err := store.Neighbors(ctx, keep.ID, graph.TraverseOptions{MaxHops: 1})
	if err != nil || len(neighbors) != 1 || neighbors[0].Node.ID != other.ID {
		t.Fatalf("边未改挂: %v %v", neighbors, err)
	}
}

func TestMergeSelfRejected(t *testing.T) {
	svc, store := testService(t)
	n := mustNode(t, store, "人工智能", "concept")
	if _, err := svc.Merge(context.Background(), n.ID, n.ID, ""); err == nil {
		t.Fatalf("自合并应报错")
	}
}

func TestCorrectUpdatesField(t *testing.T) {
	svc, store := testService(t)
	ctx := context.Background()
	n := mustNode(t, store, "人工只能", "concept")

	fixed, err := svc.Correct(ctx, n.ID, "name", "人工智能", "错别字")
	if err != nil {
		t.Fatalf("Correct 失败: %v", err)
	}
	if fixed.Name != "人工智能" {
		t.Fatalf("名称未修正: %s", fixed.Name)
	}
	// 旧名称保留为别名，历史指称仍可命中
	nodes, err := store.FindByName(ctx, "人工只能")
	if err != nil || len(nodes) != 1 || nodes[0].ID != n.ID {
		t.Fatalf("旧名称应降级为别名: %v %v", nodes, err)
	}

	if _, err := svc.Correct(ctx, n.ID, "domain", "计算机科学", ""); err != nil {
		t.Fatalf("属性修正失败: %v", err)
	}
	got, _ := store.GetNode(ctx, n.ID)
	if got.Attributes["domain"] != "计算机科学" {
		t.Fatalf("属性未写入: %v", got.Attributes)
	}
}

func TestUnlinkReplaysProvenance(t *testing.T) {
	svc, store := testService(t)
	ctx := context.Background()

	mention := mustNode(t, store, "AI", "concept")
	target := mustNode(t, store, "人工智能", "concept")
	if err := store.UpsertEdge(ctx, &graph.Edge{
		From: mention.ID, To: target.ID, Type: graph.RelLinksTo,
		Weight: 0.9, Status: graph.EdgeAccepted,
	}); err != nil {
		t.Fatalf("边写入失败: %v", err)
	}

	match := &resolve.Match{
		RequestID: "m-1",
		Signal:    "AI",
		Decision:  resolve.DecisionAccept,
		Target: &resolve.Candidate{
			ID: target.ID,
			Attributes: map[string]string{
				"edge_from": mention.ID,
				"edge_type": graph.RelLinksTo,
			},
		},
	}
	if err := svc.Log().Append(ctx, &Record{ID: "m-1", Usecase: resolve.UsecaseLinking, Match: match}); err != nil {
		t.Fatalf("溯源写入失败: %v", err)
	}

	if err := svc.Unlink(ctx, "m-1", "链接错误"); err != nil {
		t.Fatalf("Unlink 失败: %v", err)
	}
	neighbors, _ := store.Neighbors(ctx, mention.ID, graph.TraverseOptions{MaxHops: 1})
	if len(neighbors) != 0 {
		t.Fatalf("撤销后边应消失: %v", neighbors)
	}

	if err := svc.Unlink(ctx, "没有这条", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("未知判定应返回 ErrNotFound, got %v", err)
	}
}

func TestApproveReviewPersistsEdge(t *testing.T) {
	svc, store := testService(t)
	ctx := context.Background()
	target := mustNode(t, store, "人工智能", "concept")

	item := &ReviewItem{
		ID:           "r-1",
		ExpectedType: "concept",
		Reason:       "score_band",
		Match: &resolve.Match{
			RequestID:  "r-1",
			Signal:     "AI",
			FusedScore: 0.55,
			Decision:   resolve.DecisionReview,
			Target:     &resolve.Candidate{ID: target.ID, NodeType: "concept"},
		},
	}
	if err := svc.Queue().Enqueue(ctx, item); err != nil {
		t.Fatalf("入队失败: %v", err)
	}

	closed, err := svc.ApproveReview(ctx, "r-1")
	if err != nil || closed.Status != ReviewApproved {
		t.Fatalf("复核通过失败: %v %v", closed, err)
	}

	// 通过后才落边
	neighbors, _ := store.Neighbors(ctx, target.ID, graph.TraverseOptions{MaxHops: 1})
	if len(neighbors) != 1 {
		t.Fatalf("通过后应有一条边: %v", neighbors)
	}
	if neighbors[0].Node.NormName != "ai" {
		t.Fatalf("提及节点错误: %+v", neighbors[0].Node)
	}

	// 重复关闭
	if _, err := svc.ApproveReview(ctx, "r-1"); !errors.Is(err, ErrAlreadyClosed) {
		t.Fatalf("重复关闭应返回 ErrAlreadyClosed, got %v", err)
	}
}

func TestRejectReviewLeavesGraphUntouched(t *testing.T) {
	svc, store := testService(t)
	ctx := context.Background()
	target := mustNode(t, store, "人工智能", "concept")

	item := &ReviewItem{
		ID:     "r-2",
		Reason: "ambiguity",
		Match: &resolve.Match{
			RequestID: "r-2",
			Signal:    "AI",
			Decision:  resolve.DecisionReview,
			Target:    &resolve.Candidate{ID: target.ID, NodeType: "concept"},
		},
	}
	if err := svc.Queue().Enqueue(ctx, item); err != nil {
		t.Fatalf("入队失败: %v", err)
	}
	closed, err := svc.RejectReview(ctx, "r-2")
	if err != nil || closed.Status != ReviewRejected {
		t.Fatalf("驳回失败: %v %v", closed, err)
	}
	neighbors, _ := store.Neighbors(ctx, target.ID, graph.TraverseOptions{MaxHops: 1})
	if len(neighbors) != 0 {
		t.Fatalf("驳回不应写图: %v", neighbors)
	}
	pending, _ := svc.Queue().Pending(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("驳回后队列应清空: %v", pending)
	}
}
