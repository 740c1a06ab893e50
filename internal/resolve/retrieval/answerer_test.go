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

package retrieval

import (
	"context"
	"testing"

	"graphrag-platform/internal/graph"
	"graphrag-platform/pkg/config"
	"graphrag-platform/pkg/log"
)

func testLogger() *log.Logger {
	logger, _ := log.NewLogger(&log.Config{Level: "error", Format: "text"})
	return logger
}

func testCfg() config.ResolverConfig {
	return config.ResolverConfig{
		RelationWhitelist: []string{"supports", "contradicts", "related_to"},
		RelationBonus:     map[string]float64{"supports": 1.2},
		Retrieval: config.RetrievalConfig{
			Weights: config.WeightTable{
				Sources: map[string]float64{
					"keyword":     0.6,
					"alias_exact": 0.8,
					"graph":       0.4,
				},
			},
			TopK:        5,
			CaveatBelow: 0.7,
		},
	}
}

func newTestAnswerer(store graph.Store) *Answerer {
	return NewAnswerer(Options{Store: store, Cfg: testCfg(), Logger: testLogger()})
}

func seedClaims(t *testing.T, store graph.Store) {
	t.Helper()
	ctx := context.Background()
	entity, err := store.UpsertNode(ctx, &graph.Node{Name: "知识图谱", Type: "concept"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	claims := []*graph.Node{
		{Name: "知识图谱由节点和边构成", Type: "claim",
			Attributes: map[string]string{"section_path": "基础概念", "chunk_id": "c1", "doc_id": "d1"}},
		{Name: "知识图谱支持多跳推理查询", Type: "claim",
			Attributes: map[string]string{"section_path": "基础概念", "chunk_id": "c2", "doc_id": "d1"}},
		{Name: "向量检索适合语义近邻场景", Type: "claim",
			Attributes: map[string]string{"section_path": "检索方法", "chunk_id": "c3", "doc_id": "d2"}},
	}
	for _, c := range claims {
		n, err := store.UpsertNode(ctx, c)
		if err != nil {
			t.Fatalf("seed claim: %v", err)
		}
		if err := store.UpsertEdge(ctx, &graph.Edge{
			From: n.ID, To: entity.ID, Type: "supports", Weight: 0.9, Status: graph.EdgeAccepted,
		}); err != nil {
			t.Fatalf("seed edge: %v", err)
		}
	}
}

func TestAnswerEmptyGraph(t *testing.T) {
	a := newTestAnswerer(graph.NewMemoryStore())

	ans, err := a.Answer(context.Background(), "知识图谱是什么？", ModeHybrid, 5)
	if err != nil {
		t.Fatalf("Answer 失败: %v", err)
	}
	if ans.Confidence != 0.0 {
		t.Fatalf("空图置信度应为 0.0, got %f", ans.Confidence)
	}
	if len(ans.CitedEvidenceIDs) != 0 {
		t.Fatalf("空图不应有引用: %v", ans.CitedEvidenceIDs)
	}
	if ans.Conclusion == "" {
		t.Fatalf("空图也应有良构的结论文案")
	}
}

func TestAnswerRankedEvidence(t *testing.T) {
	store := graph.NewMemoryStore()
	seedClaims(t, store)
	a := newTestAnswerer(store)

	ans, err := a.Answer(context.Background(), "知识图谱如何支持推理？", ModeHybrid, 3)
	if err != nil {
		t.Fatalf("Answer 失败: %v", err)
	}
	if len(ans.Evidence) == 0 {
		t.Fatalf("应返回证据")
	}
	if len(ans.Evidence) > 3 {
		t.Fatalf("top-K 截断失效: %d", len(ans.Evidence))
	}
	for i := 1; i < len(ans.Evidence); i++ {
		if ans.Evidence[i].FusedScore > ans.Evidence[i-1].FusedScore {
			t.Fatalf("证据未按分数降序: %f > %f", ans.Evidence[i].FusedScore, ans.Evidence[i-1].FusedScore)
		}
	}
	if len(ans.CitedEvidenceIDs) != len(ans.Evidence) {
		t.Fatalf("引用与证据数量不一致")
	}
	if ans.Confidence <= 0 || ans.Confidence > 1 {
		t.Fatalf("置信度越界: %f", ans.Confidence)
	}
	// 确定性兜底：结论来自首条证据
	if ans.Conclusion != ans.Evidence[0].Text {
		t.Fatalf("无 LLM 时结论应取首条证据: %q", ans.Conclusion)
	}
	if len(ans.ReasoningChain) != len(ans.Evidence) {
		t.Fatalf("推理链长度错误: %d", len(ans.ReasoningChain))
	}
}

func TestAnswerThemesGroupBySection(t *testing.T) {
	store := graph.NewMemoryStore()
	seedClaims(t, store)
	a := newTestAnswerer(store)

	ans, err := a.Answer(context.Background(), "知识图谱与向量检索的关系？", ModeHybrid, 5)
	if err != nil {
		t.Fatalf("Answer 失败: %v", err)
	}
	if len(ans.RelevantThemes) == 0 {
		t.Fatalf("应有主题分组")
	}
	// 基础概念下证据更多，排主题第一
	if ans.RelevantThemes[0] != "基础概念" {
		t.Fatalf("主题排序错误: %v", ans.RelevantThemes)
	}
}

func TestAnswerDeterministic(t *testing.T) {
	store := graph.NewMemoryStore()
	seedClaims(t, store)
	a := newTestAnswerer(store)
	ctx := context.Background()

	first, err := a.Answer(ctx, "知识图谱如何支持推理？", ModeHybrid, 5)
	if err != nil {
		t.Fatalf("Answer 失败: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := a.Answer(ctx, "知识图谱如何支持推理？", ModeHybrid, 5)
		if err != nil {
			t.Fatalf("Answer 失败: %v", err)
		}
		if len(again.CitedEvidenceIDs) != len(first.CitedEvidenceIDs) {
			t.Fatalf("检索结果不确定")
		}
		for j := range again.CitedEvidenceIDs {
			if again.CitedEvidenceIDs[j] != first.CitedEvidenceIDs[j] {
				t.Fatalf("第 %d 次检索顺序漂移: %v vs %v", i, again.CitedEvidenceIDs, first.CitedEvidenceIDs)
			}
		}
	}
}

func TestAnswerCaveatOnWeakEvidence(t *testing.T) {
	store := graph.NewMemoryStore()
	ctx := context.Background()
	// 只有词面部分重合的弱证据
	if _, err := store.UpsertNode(ctx, &graph.Node{Name: "图谱构建需要实体抽取与链接等步骤", Type: "claim",
		Attributes: map[string]string{"section_path": "流程"}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	a := newTestAnswerer(store)

	ans, err := a.Answer(ctx, "知识图谱的推理能力如何评估？", ModeLocal, 5)
	if err != nil {
		t.Fatalf("Answer 失败: %v", err)
	}
	if len(ans.Evidence) == 0 {
		t.Skip("弱证据未命中，跳过 caveat 断言")
	}
	if ans.Confidence >= 0.7 {
		t.Fatalf("弱证据置信度异常偏高: %f", ans.Confidence)
	}
	if len(ans.Caveats) == 0 {
		t.Fatalf("低置信证据应附加 caveat")
	}
}

func TestAnswerModeSubsetsSources(t *testing.T) {
	store := graph.NewMemoryStore()
	seedClaims(t, store)
	a := newTestAnswerer(store)
	ctx := context.Background()

	local, err := a.Answer(ctx, "知识图谱如何支持推理？", ModeLocal, 5)
	if err != nil {
		t.Fatalf("local 失败: %v", err)
	}
	for _, ev := range local.Evidence {
		if ev.Source == "graph" {
			t.Fatalf("local 模式不应有图候选: %+v", ev)
		}
	}

	global, err := a.Answer(ctx, "知识图谱如何支持推理？", ModeGlobal, 5)
	if err != nil {
		t.Fatalf("global 失败: %v", err)
	}
	for _, ev := range global.Evidence {
		if ev.Source == "keyword" {
			t.Fatalf("global 模式不应有词面候选: %+v", ev)
		}
	}
}
