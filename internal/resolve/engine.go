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
	"time"

	"graphrag-platform/internal/graph"
	"graphrag-platform/pkg/config"
	"graphrag-platform/pkg/log"
	"graphrag-platform/pkg/tracing"
)

// Pipeline 一条完整的消解管线：候选源 → 聚合 → 特征 → 融合。
// 三个用例各构造一条，只在来源子集、权重表与决策上不同。
type Pipeline struct {
	sources        []Source
	scorer         *Scorer
	weights        config.WeightTable
	topN           int
	adapterTimeout time.Duration
	graphStore     graph.Store
	logger         *log.Logger
}

// PipelineOptions Pipeline 构造参数
type PipelineOptions struct {
	Sources        []Source
	Weights        config.WeightTable
	TopN           int           // <=0 默认 20
	AdapterTimeout time.Duration // <=0 默认 5s
	TypePenalty    float64
	// GraphStore 结构一致性特征的图快照来源，可为 nil
	GraphStore graph.Store
	Logger     *log.Logger
}

// NewPipeline 创建管线
func NewPipeline(opts PipelineOptions) *Pipeline {
	topN := opts.TopN
	if topN <= 0 {
		topN = 20
	}
	timeout := opts.AdapterTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Pipeline{
		sources:        opts.Sources,
		scorer:         NewScorer(opts.TypePenalty),
		weights:        opts.Weights,
		topN:           topN,
		adapterTimeout: timeout,
		graphStore:     opts.GraphStore,
		logger:         opts.Logger,
	}
}

// Run 执行一次消解请求，返回确定性排序的候选。
// 任何来源失败都只是少一路信号，结果永远是良构的。
func (p *Pipeline) Run(ctx context.Context, req *Request) []*Scored {
	ctx, span := tracing.StartResolveSpan(ctx, req.Usecase, req.ID)
	defer span.End()

	pool := Aggregate(ctx, p.sources, req, p.topN, p.adapterTimeout, p.logger)
	return p.Rank(ctx, req, pool)
}

// Rank 对给定候选池打特征并融合排序。检索用例在图先验扩展后二次调用。
func (p *Pipeline) Rank(ctx context.Context, req *Request, pool []*Candidate) []*Scored {
	neighbors := p.contextNeighbors(ctx, req)
	featuresByID := make(map[string]Features, len(pool))
	for _, c := range pool {
		featuresByID[c.ID] = p.scorer.Score(req, c, neighbors)
	}
	return Fuse(pool, featuresByID, p.weights, p.topN)
}

// contextNeighbors 上下文种子的一跳邻域，结构一致性特征的输入。
// 无种子或无图存储时返回 nil，特征保持中性。
func (p *Pipeline) contextNeighbors(ctx context.Context, req *Request) map[string]bool {
	if p.graphStore == nil || len(req.SeedIDs) == 0 {
		return nil
	}
	out := make(map[string]bool)
	for _, seed := range req.SeedIDs {
		out[seed] = true
		neighbors, err := p.graphStore.Neighbors(ctx, seed, graph.TraverseOptions{MaxHops: 1})
		if err != nil {
			continue
		}
		for _, nb := range neighbors {
			out[nb.Node.ID] = true
		}
	}
	return out
}
