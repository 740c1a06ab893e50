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

// AliasSource 精确/别名候选源：大小写不敏感地匹配规范名与注册别名。
// 原文与节点名逐字相同得 1.0，经别名或大小写折叠命中得 0.8。
type AliasSource struct {
	store graph.Store
}

// NewAliasSource 创建精确/别名候选源
func NewAliasSource(store graph.Store) *AliasSource {
	return &AliasSource{store: store}
}

// Name 实现 Source
func (s *AliasSource) Name() string { return SourceAliasExact }

// Generate 实现 Source
func (s *AliasSource) Generate(ctx context.Context, req *Request, limit int) ([]*Candidate, error) {
	nodes, err := s.store.FindByName(ctx, req.Text)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(nodes) > limit {
		nodes = nodes[:limit]
	}

	out := make([]*Candidate, 0, len(nodes))
	for _, n := range nodes {
		score := 0.8
		if n.Name == req.Text {
			score = 1.0
		}
		out = append(out, candidateFromNode(n, SourceAliasExact, score))
	}
	return out, nil
}

// candidateFromNode 把图节点转成类型化候选。
// 松散的图查询行在适配器边界收敛为类型化结构，下游只见 Candidate。
func candidateFromNode(n *graph.Node, source string, score float64) *Candidate {
	return &Candidate{
		ID:          n.ID,
		DisplayText: n.Name,
		Source:      source,
		SourceScore: score,
		NodeType:    n.Type,
		Attributes:  n.Attributes,
		Degree:      n.Degree,
	}
}
