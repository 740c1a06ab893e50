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
	"graphrag-platform/pkg/metrics"
)

// Expander 图先验扩展：从已接受的种子候选出发，沿论证类关系白名单
// 走至多 maxHops 跳，把命中的节点按固定折扣并回候选池。
// 用来找回主题相关、但词面与向量都离原始信号较远的证据。
type Expander struct {
	store         graph.Store
	maxHops       int
	discount      float64
	whitelist     []string
	relationBonus map[string]float64
}

// NewExpander 创建扩展器；maxHops <=0 默认 2，discount <=0 默认 0.7
func NewExpander(store graph.Store, maxHops int, discount float64, whitelist []string, relationBonus map[string]float64) *Expander {
	if maxHops <= 0 {
		maxHops = 2
	}
	if discount <= 0 {
		discount = 0.7
	}
	return &Expander{
		store:         store,
		maxHops:       maxHops,
		discount:      discount,
		whitelist:     whitelist,
		relationBonus: relationBonus,
	}
}

// Expand 从种子候选扩展候选池。返回值是 pool 加上新扩展的候选；
// 扩展命中的分数 = 种子分 × 折扣 × (1/跳数)，已在池内的身份不重复加入。
// 游走失败按无扩展处理，不打断检索。
func (e *Expander) Expand(ctx context.Context, pool []*Candidate, seeds []*Scored) []*Candidate {
	if len(seeds) == 0 {
		return pool
	}

	inPool := make(map[string]bool, len(pool))
	for _, c := range pool {
		inPool[c.ID] = true
	}

	out := pool
	for _, seed := range seeds {
		neighbors, err := e.store.Neighbors(ctx, seed.Candidate.ID, graph.TraverseOptions{
			MaxHops:       e.maxHops,
			RelationTypes: e.whitelist,
		})
		if err != nil {
			continue
		}
		for _, nb := range neighbors {
			if inPool[nb.Node.ID] {
				continue
			}
			inPool[nb.Node.ID] = true

			score := seed.Fused * e.discount / float64(nb.Hops)
			if bonus, ok := e.relationBonus[nb.Relation]; ok && bonus > 0 {
				score *= bonus
			}
			if score > 1.0 {
				score = 1.0
			}
			c := candidateFromNode(nb.Node, SourceGraph, score)
			c.Expanded = true
			out = append(out, c)
			metrics.ExpansionHitTotal.Inc()
		}
	}
	return out
}
