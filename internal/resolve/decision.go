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
	"time"

	"graphrag-platform/pkg/config"
	"graphrag-platform/pkg/metrics"
)

// Thresholds 实体链接某个期望类型的生效阈值
type Thresholds struct {
	AcceptAt float64
	ReviewAt float64
}

// LinkThresholds 取期望类型的阈值，未配置的类型回退默认值
func LinkThresholds(cfg config.LinkingConfig, expectedType string) Thresholds {
	if t, ok := cfg.TypeThresholds[expectedType]; ok {
		return Thresholds{AcceptAt: t.AcceptAt, ReviewAt: t.ReviewAt}
	}
	return Thresholds{AcceptAt: cfg.DefaultAcceptAt, ReviewAt: cfg.DefaultReviewAt}
}

// DecideLink 实体链接决策：
//
//	top ≥ accept_at            => accept
//	review_at ≤ top < accept_at => review（入人工复核队列）
//	top < review_at            => nil（按新实体处理）
//
// top-2 分差小于 epsilon 时即使过了 accept_at 也只给 review，
// 歧义判定永远不自动接受。
func DecideLink(req *Request, ranked []*Scored, th Thresholds, epsilon float64) *Match {
	m := &Match{
		RequestID: req.ID,
		Signal:    req.Text,
		Decision:  DecisionNil,
		DecidedAt: time.Now(),
	}
	if len(ranked) == 0 {
		metrics.DecisionTotal.WithLabelValues(req.Usecase, string(DecisionNil)).Inc()
		return m
	}

	top := ranked[0]
	m.Target = top.Candidate
	m.FusedScore = top.Fused
	m.Evidence = Evidence(top)

	switch {
	case top.Fused < th.ReviewAt:
		m.Decision = DecisionNil
		m.Target = nil
	case top.Fused < th.AcceptAt:
		m.Decision = DecisionReview
	case ambiguous(ranked, epsilon):
		m.Decision = DecisionReview
		m.Evidence = append(m.Evidence, EvidenceItem{Feature: "ambiguity", Value: ranked[0].Fused - ranked[1].Fused, Source: "decision"})
	default:
		m.Decision = DecisionAccept
	}

	metrics.DecisionTotal.WithLabelValues(req.Usecase, string(m.Decision)).Inc()
	return m
}

func ambiguous(ranked []*Scored, epsilon float64) bool {
	if epsilon <= 0 || len(ranked) < 2 {
		return false
	}
	return ranked[0].Fused-ranked[1].Fused < epsilon
}

// AmbiguityCause 判定因 top-2 分差进入 review 时返回 ErrAmbiguousDecision，
// 其余判定返回 nil。上层据此区分歧义复核与分数带复核。
func AmbiguityCause(m *Match) error {
	for _, e := range m.Evidence {
		if e.Feature == "ambiguity" && e.Source == "decision" {
			return ErrAmbiguousDecision
		}
	}
	return nil
}
