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

// Package link 实现实体链接：抽取出的实体名经过完整候选管线，
// 按期望类型的阈值分档，接受的链接幂等落图，复核的入队，
// 无匹配的按新实体建节点。
package link

import (
	"context"
	"time"

	"github.com/google/uuid"

	"graphrag-platform/internal/feedback"
	"graphrag-platform/internal/graph"
	"graphrag-platform/internal/model/embedding"
	"graphrag-platform/internal/resolve"
	"graphrag-platform/internal/storage/vector"
	"graphrag-platform/pkg/config"
	"graphrag-platform/pkg/log"
)

// Options Linker 构造参数。Vector 与 Embedder 同时提供才启用向量候选源。
type Options struct {
	Store    graph.Store
	Vector   vector.Store
	Embedder embedding.Embedder
	Cfg      config.ResolverConfig
	Log      feedback.Log
	Queue    feedback.Queue
	Logger   *log.Logger
}

// Linker 实体链接编排器
type Linker struct {
	pipeline *resolve.Pipeline
	cfg      config.ResolverConfig
	store    graph.Store
	log      feedback.Log
	queue    feedback.Queue
	logger   *log.Logger
}

// NewLinker 创建链接器，四路候选源全开（向量路依赖注入的 embedder）
func NewLinker(opts Options) *Linker {
	sources := []resolve.Source{
		resolve.NewAliasSource(opts.Store),
		resolve.NewKeywordSource(opts.Store),
	}
	if opts.Vector != nil && opts.Embedder != nil {
		sources = append(sources, resolve.NewVectorSource(opts.Embedder, opts.Vector, opts.Store,
			vector.EntityIndex, opts.Cfg.VectorMinSimilarity))
	}
	sources = append(sources, resolve.NewGraphSource(opts.Store,
		opts.Cfg.GraphMaxHops, opts.Cfg.RelationWhitelist, opts.Cfg.RelationBonus))

	adapterTimeout, _ := time.ParseDuration(opts.Cfg.AdapterTimeout)
	pipeline := resolve.NewPipeline(resolve.PipelineOptions{
		Sources:        sources,
		Weights:        opts.Cfg.Linking.Weights,
		TopN:           opts.Cfg.TopN,
		AdapterTimeout: adapterTimeout,
		TypePenalty:    opts.Cfg.TypePenalty,
		GraphStore:     opts.Store,
		Logger:         opts.Logger,
	})
	return &Linker{
		pipeline: pipeline,
		cfg:      opts.Cfg,
		store:    opts.Store,
		log:      opts.Log,
		queue:    opts.Queue,
		logger:   opts.Logger,
	}
}

// Link 链接一个实体名并持久化判定。任何候选源失败都不阻断，
// 持久化失败才返回错误。
func (l *Linker) Link(ctx context.Context, chunkID string, req *resolve.Request) (*resolve.Match, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Usecase = resolve.UsecaseLinking

	ranked := l.pipeline.Run(ctx, req)
	th := resolve.LinkThresholds(l.cfg.Linking, req.ExpectedType)
	m := resolve.DecideLink(req, ranked, th, l.cfg.AmbiguityEpsilon)
	if cause := resolve.AmbiguityCause(m); cause != nil {
		l.logger.Info("歧义判定转人工复核",
			"request_id", req.ID, "signal", req.Text, "error", cause.Error())
	}

	if err := l.persist(ctx, chunkID, req, m); err != nil {
		return m, err
	}
	return m, nil
}

// LinkAll 按输入顺序链接一批实体名，返回有序判定。
// 单个失败记日志跳过，不阻断批次。
func (l *Linker) LinkAll(ctx context.Context, chunkID string, reqs []*resolve.Request) []*resolve.Match {
	out := make([]*resolve.Match, 0, len(reqs))
	for _, req := range reqs {
		m, err := l.Link(ctx, chunkID, req)
		if err != nil {
			l.logger.Warn("链接判定持久化失败", "chunk_id", chunkID, "signal", req.Text, "error", err.Error())
		}
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}
