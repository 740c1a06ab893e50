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

	"graphrag-platform/internal/graph"
)

// GraphSource 图游走候选源：从上下文种子节点出发的有界广度优先游走，
// 只走关系白名单内的边。分数 = 1/跳数，高价值关系可配乘性加成。
type GraphSource struct {
	store         graph.Store
	maxHops       int
	whitelist     []string
	relationBonus map[string]float64
}

// NewGraphSource 创建图候选源；maxHops <=0 默认 2
func NewGraphSource(store graph.Store, maxHops int, whitelist []string, relationBonus map[string]float64) *GraphSource {
	if maxHops <= 0 {
		maxHops = 2
	}
	return &GraphSource{
		store:         store,
		maxHops:       maxHops,
		whitelist:     whitelist,
		relationBonus: relationBonus,
	}
}

// Name 实现 Source
func (s *GraphSource) Name() string { return SourceGraph }

// Generate 实现 Source。无种子时返回空：图信号只在有上下文时成立。
func (s *GraphSource) Generate(ctx context.Context, req *Request, limit int) ([]*Candidate, error) {
	if len(req.SeedIDs) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool, len(req.SeedIDs))
	for _, seed := range req.SeedIDs {
		seen[seed] = true
	}

	var out []*Candidate
	for _, seed := range req.SeedIDs {
		neighbors, err := s.store.Neighbors(ctx, seed, graph.TraverseOptions{
			MaxHops:       s.maxHops,
			RelationTypes: s.whitelist,
			Limit:         limit,
		})
		if err != nil {
			// 单个种子失败不影响其余种子
			continue
		}
		for _, nb := range neighbors {
			if seen[nb.Node.ID] {
				continue
			}
			seen[nb.Node.ID] = true
			score := 1.0 / float64(nb.Hops)
			if bonus, ok := s.relationBonus[nb.Relation]; ok && bonus > 0 {
				score *= bonus
			}
			if score > 1.0 {
				score = 1.0
			}
			out = append(out, candidateFromNode(nb.Node, SourceGraph, score))
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}
