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

// Package retrieval 实现问答检索：问句作为信号走候选管线，
// 图先验扩展找回远端证据，二次融合后取 top-K，
// 永远返回排好序的证据列表与置信度，没有拒答档。
package retrieval

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"graphrag-platform/internal/graph"
	"graphrag-platform/internal/model/embedding"
	"graphrag-platform/internal/model/llm"
	"graphrag-platform/internal/resolve"
	"graphrag-platform/internal/storage/vector"
	"graphrag-platform/pkg/config"
	"graphrag-platform/pkg/log"
)

// 检索模式
const (
	ModeLocal  = "local"  // 只用词面与向量近邻
	ModeGlobal = "global" // 只用图结构
	ModeHybrid = "hybrid" // 全部来源 + 图先验扩展
)

// Answer 一次问答的完整结果
type Answer struct {
	Conclusion       string                       `json:"conclusion"`
	ReasoningChain   []string                     `json:"reasoning_chain"`
	Confidence       float64                      `json:"confidence"`
	Caveats          []string                     `json:"caveats,omitempty"`
	CitedEvidenceIDs []string                     `json:"cited_evidence_ids"`
	RelevantThemes   []string                     `json:"relevant_themes,omitempty"`
	Evidence         []*resolve.EvidenceCandidate `json:"evidence"`
}

// Options Answerer 构造参数
type Options struct {
	Store    graph.Store
	Vector   vector.Store
	Embedder embedding.Embedder
	LLM      llm.Client // 可为 nil：结论走确定性拼接
	Cfg      config.ResolverConfig
	Logger   *log.Logger
}

// Answerer 检索问答编排器
type Answerer struct {
	store    graph.Store
	vector   vector.Store
	embedder embedding.Embedder
	llm      llm.Client
	cfg      config.ResolverConfig
	expander *resolve.Expander
	logger   *log.Logger
}

// NewAnswerer 创建问答器
func NewAnswerer(opts Options) *Answerer {
	return &Answerer{
		store:    opts.Store,
		vector:   opts.Vector,
		embedder: opts.Embedder,
		llm:      opts.LLM,
		cfg:      opts.Cfg,
		expander: resolve.NewExpander(opts.Store, opts.Cfg.GraphMaxHops, opts.Cfg.ExpansionDiscount,
			opts.Cfg.RelationWhitelist, opts.Cfg.RelationBonus),
		logger: opts.Logger,
	}
}

// Answer 回答一个问题。空图或全部来源失败时返回空证据、置信度 0.0，
// 不报错。
func (a *Answerer) Answer(ctx context.Context, question, mode string, topK int) (*Answer, error) {
	if topK <= 0 {
		topK = a.cfg.Retrieval.TopK
	}
	if topK <= 0 {
		topK = 5
	}
	if mode == "" {
		mode = ModeHybrid
	}

	req := &resolve.Request{
		ID:      uuid.NewString(),
		Usecase: resolve.UsecaseRetrieval,
		Text:    question,
		SeedIDs: a.seedEntities(ctx, question),
	}

	pipeline := resolve.NewPipeline(resolve.PipelineOptions{
		Sources:        a.sourcesFor(mode),
		Weights:        a.cfg.Retrieval.Weights,
		TopN:           a.cfg.TopN,
		AdapterTimeout: a.adapterTimeout(),
		TypePenalty:    a.cfg.TypePenalty,
		GraphStore:     a.store,
		Logger:         a.logger,
	})

	ranked := pipeline.Run(ctx, req)

	// hybrid 模式做图先验扩展后二次融合
	if mode == ModeHybrid && len(ranked) > 0 {
		pool := make([]*resolve.Candidate, 0, len(ranked))
		for _, s := range ranked {
			pool = append(pool, s.Candidate)
		}
		seeds := ranked
		if len(seeds) > 3 {
			seeds = seeds[:3]
		}
		pool = a.expander.Expand(ctx, pool, seeds)
		ranked = pipeline.Rank(ctx, req, pool)
	}

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return a.buildAnswer(ctx, question, ranked), nil
}

// sourcesFor 按检索模式选取候选源子集
func (a *Answerer) sourcesFor(mode string) []resolve.Source {
	var out []resolve.Source
	if mode != ModeGlobal {
		out = append(out, resolve.NewKeywordSource(a.store))
		if a.vector != nil && a.embedder != nil {
			out = append(out, resolve.NewVectorSource(a.embedder, a.vector, a.store,
				vector.ClaimIndex, a.cfg.VectorMinSimilarity))
		}
	}
	if mode != ModeLocal {
		out = append(out, resolve.NewAliasSource(a.store))
		out = append(out, resolve.NewGraphSource(a.store,
			a.cfg.GraphMaxHops, a.cfg.RelationWhitelist, a.cfg.RelationBonus))
	}
	return out
}

// seedEntities 问句词元命中的图实体，图候选源与结构一致性特征的起点
func (a *Answerer) seedEntities(ctx context.Context, question string) []string {
	tokens := resolve.Tokenize(question)
	if len(tokens) == 0 {
		return nil
	}
	matches, err := a.store.MatchTokens(ctx, tokens, 5)
	if err != nil {
		return nil
	}
	var out []string
	for _, m := range matches {
		if m.Node.Type == "claim" {
			continue
		}
		out = append(out, m.Node.ID)
	}
	return out
}

func (a *Answerer) adapterTimeout() time.Duration {
	d, err := time.ParseDuration(a.cfg.AdapterTimeout)
	if err != nil {
		return 0
	}
	return d
}

// buildAnswer 把融合排序的候选转成证据列表、主题分组与答案
func (a *Answerer) buildAnswer(ctx context.Context, question string, ranked []*resolve.Scored) *Answer {
	ans := &Answer{
		ReasoningChain:   []string{},
		CitedEvidenceIDs: []string{},
		Evidence:         []*resolve.EvidenceCandidate{},
	}
	if len(ranked) == 0 {
		ans.Conclusion = "没有找到与问题相关的证据。"
		ans.Confidence = 0.0
		return ans
	}

	caveatBelow := a.cfg.Retrieval.CaveatBelow
	if caveatBelow <= 0 {
		caveatBelow = 0.7
	}

	total := 0.0
	lowConfidence := false
	for _, s := range ranked {
		conf := a.normalize(s.Fused)
		total += conf
		if conf < caveatBelow {
			lowConfidence = true
		}
		ev := &resolve.EvidenceCandidate{
			ClaimID:    s.Candidate.ID,
			Text:       s.Candidate.DisplayText,
			FusedScore: s.Fused,
			Source:     s.Candidate.Source,
		}
		if attrs := s.Candidate.Attributes; attrs != nil {
			ev.ChunkID = attrs["chunk_id"]
			ev.DocID = attrs["doc_id"]
			if sp := attrs["section_path"]; sp != "" {
				ev.SectionPath = []string{sp}
			}
		}
		ans.Evidence = append(ans.Evidence, ev)
		ans.CitedEvidenceIDs = append(ans.CitedEvidenceIDs, ev.ClaimID)
	}
	ans.Confidence = total / float64(len(ranked))
	if lowConfidence {
		ans.Caveats = append(ans.Caveats, "部分证据置信度较低，结论仅供参考")
	}
	ans.RelevantThemes = themes(ans.Evidence)

	a.generate(ctx, question, ans)
	return ans
}

// normalize 把融合分压回 [0,1]：按权重表满分归一
func (a *Answerer) normalize(fused float64) float64 {
	w := a.cfg.Retrieval.Weights
	denom := 0.0
	for _, v := range w.Sources {
		denom += v
	}
	for _, v := range w.Features {
		denom += v
	}
	if denom <= 0 {
		denom = 1
	}
	conf := fused / denom
	if conf > 1 {
		conf = 1
	}
	if conf < 0 {
		conf = 0
	}
	return conf
}

// themes 按 section_path（缺失时按来源）给证据分主题，出现多者在前
func themes(evidence []*resolve.EvidenceCandidate) []string {
	counts := make(map[string]int)
	var order []string
	for _, ev := range evidence {
		key := ""
		if len(ev.SectionPath) > 0 {
			key = ev.SectionPath[0]
		}
		if key == "" {
			continue
		}
		if counts[key] == 0 {
			order = append(order, key)
		}
		counts[key]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	return order
}
