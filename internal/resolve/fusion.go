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
	"sort"

	"graphrag-platform/pkg/config"
)

// Fuse 加权融合并确定性排序。
// fused = Σ 来源权重×来源分 + Σ 特征权重×特征值。
// 权重不要求归一化，分数只作为比较量。排序：fused 降序，
// 并列时先按先验强度降序，再按候选 ID 字典序升序。
// topN >0 时只保留前 topN。
func Fuse(candidates []*Candidate, featuresByID map[string]Features, weights config.WeightTable, topN int) []*Scored {
	scored := make([]*Scored, 0, len(candidates))
	for _, c := range candidates {
		feats := featuresByID[c.ID]
		scored = append(scored, &Scored{
			Candidate: c,
			Features:  feats,
			Fused:     fusedScore(c, feats, weights),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Fused != scored[j].Fused {
			return scored[i].Fused > scored[j].Fused
		}
		pi := scored[i].Features[FeaturePriorStrength]
		pj := scored[j].Features[FeaturePriorStrength]
		if pi != pj {
			return pi > pj
		}
		return scored[i].Candidate.ID < scored[j].Candidate.ID
	})

	if topN > 0 && len(scored) > topN {
		scored = scored[:topN]
	}
	return scored
}

// fusedScore 按 key 排序后累加，浮点求和顺序固定，
// 同一输入在任意两次调用间得到完全相同的分值。
func fusedScore(c *Candidate, feats Features, weights config.WeightTable) float64 {
	sources := make([]string, 0, len(c.SourceScores))
	for src := range c.SourceScores {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	names := make([]string, 0, len(feats))
	for f := range feats {
		names = append(names, f)
	}
	sort.Strings(names)

	score := 0.0
	for _, src := range sources {
		score += weights.Sources[src] * c.SourceScores[src]
	}
	for _, f := range names {
		score += weights.Features[f] * feats[f]
	}
	return score
}

// Evidence 把一个候选的来源分与特征整理成可审计的证据列表
func Evidence(s *Scored) []EvidenceItem {
	var out []EvidenceItem
	sources := make([]string, 0, len(s.Candidate.SourceScores))
	for src := range s.Candidate.SourceScores {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	for _, src := range sources {
		out = append(out, EvidenceItem{Feature: "source_score", Value: s.Candidate.SourceScores[src], Source: src})
	}

	feats := make([]string, 0, len(s.Features))
	for f := range s.Features {
		feats = append(feats, f)
	}
	sort.Strings(feats)
	for _, f := range feats {
		out = append(out, EvidenceItem{Feature: f, Value: s.Features[f], Source: "scorer"})
	}
	return out
}
