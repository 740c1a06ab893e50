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

package resolve

import (
	"context"
	"errors"
	"testing"
	"time"

	"graphrag-platform/internal/graph"
	"graphrag-platform/pkg/config"
	"graphrag-platform/pkg/log"
)

func testLogger() *log.Logger {
	logger, _ := log.NewLogger(&log.Config{Level: "error", Format: "text"})
	return logger
}

func testWeights() config.WeightTable {
	return config.WeightTable{
		Sources: map[string]float64{
			SourceAliasExact: 1.0,
			SourceKeyword:    0.5,
			SourceVector:     0.8,
			SourceGraph:      0.6,
		},
		Features: map[string]float64{
			FeatureTextualSimilarity:     0.6,
			FeaturePriorStrength:         0.3,
			FeatureTypeCompatibility:     0.4,
			FeatureStructuralConsistency: 0.3,
			FeatureScriptAgreement:       0.2,
		},
	}
}

// stubSource 固定返回的候选源
type stubSource struct {
	name       string
	candidates []*Candidate
	err        error
	delay      time.Duration
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Generate(ctx context.Context, req *Request, limit int) ([]*Candidate, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.candidates, s.err
}

func TestAggregateMergesByIdentity(t *testing.T) {
	req := &Request{ID: "r1", Usecase: UsecaseLinking, Text: "人工智能"}
	sources := []Source{
		&stubSource{name: SourceAliasExact, candidates: []*Candidate{
			{ID: "n1", DisplayText: "人工智能", Source: SourceAliasExact, SourceScore: 1.0, NodeType: "concept"},
		}},
		&stubSource{name: SourceVector, candidates: []*Candidate{
			{ID: "n1", DisplayText: "AI", Source: SourceVector, SourceScore: 0.9},
			{ID: "n2", DisplayText: "机器学习", Source: SourceVector, SourceScore: 0.8},
		}},
	}

	got := Aggregate(context.Background(), sources, req, 10, time.Second, testLogger())
	if len(got) != 2 {
		t.Fatalf("期望合并为 2 个身份, got %d", len(got))
	}
	merged := got[0]
	if merged.ID != "n1" {
		t.Fatalf("顺序不稳定: %s", merged.ID)
	}
	// 首现来源提供展示属性
	if merged.DisplayText != "人工智能" {
		t.Fatalf("展示属性应来自首现来源: %s", merged.DisplayText)
	}
	// 每个来源的分数各自保留，不求和
	if merged.SourceScores[SourceAliasExact] != 1.0 || merged.SourceScores[SourceVector] != 0.9 {
		t.Fatalf("来源分丢失: %v", merged.SourceScores)
	}
}

func TestAggregateTimeoutAsEmpty(t *testing.T) {
	req := &Request{ID: "r1", Usecase: UsecaseLinking, Text: "x"}
	sources := []Source{
		&stubSource{name: SourceKeyword, delay: 500 * time.Millisecond, candidates: []*Candidate{{ID: "slow"}}},
		&stubSource{name: SourceAliasExact, candidates: []*Candidate{
			{ID: "fast", Source: SourceAliasExact, SourceScore: 1.0},
		}},
	}

	got := Aggregate(context.Background(), sources, req, 10, 50*time.Millisecond, testLogger())
	if len(got) != 1 || got[0].ID != "fast" {
		t.Fatalf("超时来源应按空结果处理: %v", got)
	}
}

func TestTotalFailureDegradesGracefully(t *testing.T) {
	req := &Request{ID: "r1", Usecase: UsecaseLinking, Text: "x"}
	sources := []Source{
		&stubSource{name: SourceAliasExact, err: errors.New("连接拒绝")},
		&stubSource{name: SourceVector, err: ErrUpstreamTimeout},
	}
	p := NewPipeline(PipelineOptions{Sources: sources, Weights: testWeights(), Logger: testLogger()})

	ranked := p.Run(context.Background(), req)
	if ranked == nil {
		ranked = []*Scored{}
	}
	if len(ranked) != 0 {
		t.Fatalf("全部来源失败应得到空候选: %v", ranked)
	}
	// 空候选走 nil 决策，而不是抛错
	m := DecideLink(req, ranked, Thresholds{AcceptAt: 0.8, ReviewAt: 0.5}, 0.05)
	if m.Decision != DecisionNil {
		t.Fatalf("空候选应判 nil, got %s", m.Decision)
	}
}

func TestFusionDeterministic(t *testing.T) {
	pool := []*Candidate{
		{ID: "b", SourceScores: map[string]float64{SourceVector: 0.8}},
		{ID: "a", SourceScores: map[string]float64{SourceVector: 0.8}},
		{ID: "c", SourceScores: map[string]float64{SourceVector: 0.9}},
	}
	feats := map[string]Features{
		"a": {FeaturePriorStrength: 0.2},
		"b": {FeaturePriorStrength: 0.2},
		"c": {FeaturePriorStrength: 0.1},
	}

	var prev []string
	for i := 0; i < 10; i++ {
		ranked := Fuse(pool, feats, testWeights(), 0)
		var ids []string
		for _, s := range ranked {
			ids = append(ids, s.Candidate.ID)
		}
		if prev != nil {
			for j := range ids {
				if ids[j] != prev[j] {
					t.Fatalf("排序不确定: %v vs %v", ids, prev)
				}
			}
		}
		prev = ids
	}
	// c 的融合分最高；a 与 b 并列时 ID 字典序
	if prev[0] != "c" || prev[1] != "a" || prev[2] != "b" {
		t.Fatalf("排序错误: %v", prev)
	}
}

func TestFusedScoreStableAcrossCalls(t *testing.T) {
	// 多来源浮点累加必须按固定顺序，重复计算得到逐位相同的分值
	c := &Candidate{ID: "n1", SourceScores: map[string]float64{
		SourceAliasExact: 0.1,
		SourceKeyword:    0.2,
		SourceVector:     0.3,
	}}
	w := config.WeightTable{
		Sources: map[string]float64{
			SourceAliasExact: 1.0,
			SourceKeyword:    1.0,
			SourceVector:     1.0,
		},
		Features: map[string]float64{},
	}

	first := fusedScore(c, Features{}, w)
	for i := 0; i < 100; i++ {
		if got := fusedScore(c, Features{}, w); got != first {
			t.Fatalf("第 %d 次 = %.20f, 首次 = %.20f", i, got, first)
		}
	}
}

func TestFusionTiebreakByPrior(t *testing.T) {
	pool := []*Candidate{
		{ID: "low", SourceScores: map[string]float64{SourceVector: 1.0}},
		{ID: "high", SourceScores: map[string]float64{SourceVector: 1.0}},
	}
	// 融合分相同（prior 权重设 0），先验强度高者在前
	w := config.WeightTable{
		Sources:  map[string]float64{SourceVector: 1.0},
		Features: map[string]float64{},
	}
	feats := map[string]Features{
		"low":  {FeaturePriorStrength: 0.1},
		"high": {FeaturePriorStrength: 0.9},
	}
	ranked := Fuse(pool, feats, w, 0)
	if ranked[0].Candidate.ID != "high" {
		t.Fatalf("并列时应按先验强度决胜: %s", ranked[0].Candidate.ID)
	}
}

func TestMonotonicity(t *testing.T) {
	c := &Candidate{ID: "a", SourceScores: map[string]float64{SourceVector: 0.5}}
	base := Features{FeatureTextualSimilarity: 0.4, FeaturePriorStrength: 0.3}
	raised := Features{FeatureTextualSimilarity: 0.7, FeaturePriorStrength: 0.3}

	w := testWeights()
	lo := fusedScore(c, base, w)
	hi := fusedScore(c, raised, w)
	if hi < lo {
		t.Fatalf("单特征上升不应降低融合分: %f -> %f", lo, hi)
	}
}

func TestDecideLinkTiers(t *testing.T) {
	req := &Request{ID: "r1", Usecase: UsecaseLinking, Text: "人工智能"}
	th := Thresholds{AcceptAt: 0.8, ReviewAt: 0.5}

	mk := func(score float64) []*Scored {
		return []*Scored{{Candidate: &Candidate{ID: "n1", SourceScores: map[string]float64{}}, Fused: score, Features: Features{}}}
	}

	if m := DecideLink(req, mk(0.9), th, 0.05); m.Decision != DecisionAccept {
		t.Fatalf("0.9 应 accept, got %s", m.Decision)
	}
	if m := DecideLink(req, mk(0.6), th, 0.05); m.Decision != DecisionReview {
		t.Fatalf("0.6 应 review, got %s", m.Decision)
	}
	m := DecideLink(req, mk(0.3), th, 0.05)
	if m.Decision != DecisionNil || m.Target != nil {
		t.Fatalf("0.3 应 nil 且无目标, got %s target=%v", m.Decision, m.Target)
	}
}

func TestDecideLinkAmbiguityGoesToReview(t *testing.T) {
	req := &Request{ID: "r1", Usecase: UsecaseLinking, Text: "苹果"}
	th := Thresholds{AcceptAt: 0.8, ReviewAt: 0.5}
	ranked := []*Scored{
		{Candidate: &Candidate{ID: "company"}, Fused: 0.91, Features: Features{}},
		{Candidate: &Candidate{ID: "fruit"}, Fused: 0.90, Features: Features{}},
	}

	m := DecideLink(req, ranked, th, 0.05)
	if m.Decision != DecisionReview {
		t.Fatalf("top-2 分差在 epsilon 内应 review, got %s", m.Decision)
	}
	if !errors.Is(AmbiguityCause(m), ErrAmbiguousDecision) {
		t.Fatal("歧义复核应归类为 ErrAmbiguousDecision")
	}

	// 分数带 review：不是歧义成因
	band := DecideLink(req, []*Scored{{Candidate: &Candidate{ID: "company"}, Fused: 0.6, Features: Features{}}}, th, 0.05)
	if band.Decision != DecisionReview {
		t.Fatalf("0.6 应 review, got %s", band.Decision)
	}
	if AmbiguityCause(band) != nil {
		t.Fatal("分数带复核不应归类为歧义")
	}
}

func TestNilCorrectness(t *testing.T) {
	// 图中完全不存在的名字：所有来源为空，决策必须是 nil
	store := graph.NewMemoryStore()
	p := NewPipeline(PipelineOptions{
		Sources: []Source{NewAliasSource(store), NewKeywordSource(store)},
		Weights: testWeights(),
		Logger:  testLogger(),
	})
	req := &Request{ID: "r1", Usecase: UsecaseLinking, Text: "量子引力子"}

	ranked := p.Run(context.Background(), req)
	m := DecideLink(req, ranked, Thresholds{AcceptAt: 0.8, ReviewAt: 0.5}, 0.05)
	if m.Decision != DecisionNil {
		t.Fatalf("未知名字应判 nil, got %s", m.Decision)
	}
}

func TestPipelineLinkAccept(t *testing.T) {
	// 已有高度数节点「人工智能」（别名 AI），链接应 accept
	store := graph.NewMemoryStore()
	ctx := context.Background()
	ai, err := store.UpsertNode(ctx, &graph.Node{Name: "人工智能", Type: "concept", Aliases: []string{"AI"}})
	if err != nil {
		t.Fatalf("UpsertNode: %v", err)
	}
	for _, name := range []string{"机器学习", "深度学习", "自然语言处理", "知识图谱"} {
		n, _ := store.UpsertNode(ctx, &graph.Node{Name: name, Type: "concept"})
		_ = store.UpsertEdge(ctx, &graph.Edge{From: ai.ID, To: n.ID, Type: "related_to"})
	}

	p := NewPipeline(PipelineOptions{
		Sources:    []Source{NewAliasSource(store), NewKeywordSource(store)},
		Weights:    testWeights(),
		GraphStore: store,
		Logger:     testLogger(),
	})
	req := &Request{ID: "r1", Usecase: UsecaseLinking, Text: "人工智能", ExpectedType: "concept"}

	ranked := p.Run(ctx, req)
	if len(ranked) == 0 {
		t.Fatal("应至少有一个候选")
	}
	m := DecideLink(req, ranked, Thresholds{AcceptAt: 1.2, ReviewAt: 0.6}, 0.05)
	if m.Decision != DecisionAccept {
		t.Fatalf("高分唯一候选应 accept, got %s (score=%f)", m.Decision, m.FusedScore)
	}
	if m.Target.ID != ai.ID {
		t.Fatalf("目标应为人工智能节点: %+v", m.Target)
	}
	if len(m.Evidence) == 0 {
		t.Fatal("决策应携带证据")
	}
}

func TestExpanderDiscountsHits(t *testing.T) {
	store := graph.NewMemoryStore()
	ctx := context.Background()
	a, _ := store.UpsertNode(ctx, &graph.Node{Name: "claimA", Type: "claim"})
	b, _ := store.UpsertNode(ctx, &graph.Node{Name: "claimB", Type: "claim"})
	_ = store.UpsertEdge(ctx, &graph.Edge{From: a.ID, To: b.ID, Type: "supports"})

	e := NewExpander(store, 2, 0.7, []string{"supports"}, map[string]float64{"supports": 1.2})
	seed := &Scored{Candidate: &Candidate{ID: a.ID}, Fused: 1.0}

	pool := e.Expand(ctx, []*Candidate{{ID: a.ID}}, []*Scored{seed})
	if len(pool) != 2 {
		t.Fatalf("扩展应加入 claimB: %d", len(pool))
	}
	hit := pool[1]
	if !hit.Expanded || hit.ID != b.ID {
		t.Fatalf("扩展候选标记错误: %+v", hit)
	}
	want := 1.0 * 0.7 * 1.2 // 种子分 × 折扣 × supports 加成
	if diff := hit.SourceScore - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("扩展分 = %f, 期望 %f", hit.SourceScore, want)
	}
}
