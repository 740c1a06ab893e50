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

package mention

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"graphrag-platform/internal/graph"
	"graphrag-platform/internal/resolve"
	"graphrag-platform/pkg/config"
	"graphrag-platform/pkg/log"
)

// 消解档位
const (
	ModeRewrite   = "rewrite"    // 全量替换所有已接受的指称
	ModeLocal     = "local"      // 只替换同句/相邻句的指称
	ModeAliasOnly = "alias_only" // 只保留别名表，不改写文本
	ModeSkip      = "skip"
)

// Result 一个 chunk 的消解结果
type Result struct {
	Mode         string            `json:"mode"`
	AliasMap     map[string]string `json:"alias_map"`
	Coverage     float64           `json:"coverage"`
	Conflict     float64           `json:"conflict"`
	ResolvedText string            `json:"resolved_text,omitempty"`
	Provenance   []*resolve.Match  `json:"provenance,omitempty"`
	Strategy     string            `json:"strategy"`
	SkipReason   string            `json:"skip_reason,omitempty"`
}

// Quality 策略挑选用的质量分：覆盖率
func (r *Result) Quality() float64 {
	if r == nil {
		return -1
	}
	return r.Coverage
}

// Resolver chunk 内指代消解的编排器。先跑确定性策略，
// 配置允许时再试一次 LLM 策略，谁的覆盖率高用谁。
type Resolver struct {
	cfg         config.CoreferenceConfig
	typePenalty float64
	epsilon     float64
	logger      *log.Logger
	llm         Strategy // 可为 nil
}

// NewResolver 创建指代消解器；llmStrategy 可为 nil
func NewResolver(resolver config.ResolverConfig, logger *log.Logger, llmStrategy Strategy) *Resolver {
	return &Resolver{
		cfg:         resolver.Coreference,
		typePenalty: resolver.TypePenalty,
		epsilon:     resolver.AmbiguityEpsilon,
		logger:      logger,
		llm:         llmStrategy,
	}
}

// Resolve 消解一个 chunk。永不返回错误：任何失败都降级为更保守的档位。
func (r *Resolver) Resolve(ctx context.Context, chunkText string) *Result {
	deterministic := r.resolveDeterministic(ctx, chunkText)

	// LLM 只试一次（带固定重试预算），且只有覆盖率更高才采纳。
	// 噪声或零指称的 chunk 不值得花 LLM 配额。
	hadMentions := deterministic.Mode != ModeSkip || len(deterministic.Provenance) > 0
	if r.cfg.LLMEnabled && r.llm != nil && hadMentions {
		if llmResult, err := r.llm.Resolve(ctx, chunkText); err == nil {
			if llmResult.Quality() > deterministic.Quality() {
				return llmResult
			}
		} else {
			r.logger.Warn("LLM 指代消解失败，沿用确定性结果", "error", err.Error())
		}
	}
	return deterministic
}

// resolveDeterministic 确定性策略：窗口内先行词匹配 + 融合排序
func (r *Resolver) resolveDeterministic(ctx context.Context, chunkText string) *Result {
	if noisy, reason := IsNoise(chunkText); noisy {
		return &Result{Mode: ModeSkip, AliasMap: map[string]string{}, Strategy: "deterministic", SkipReason: reason}
	}

	aliasMap := ExtractAliases(chunkText)
	mentions := ExtractMentions(chunkText)
	if len(mentions) == 0 {
		return &Result{Mode: ModeSkip, AliasMap: map[string]string{}, Coverage: 0.0, Strategy: "deterministic"}
	}

	antecedents := ExtractAntecedents(chunkText)
	scorer := resolve.NewScorer(r.typePenalty)

	var matches []*resolve.Match
	resolved := 0
	for _, m := range mentions {
		req := &resolve.Request{
			ID:      uuid.NewString(),
			Usecase: resolve.UsecaseCoreference,
			Text:    m.Text,
			Mention: m,
		}
		pool := r.windowCandidates(m, antecedents, aliasMap)
		featuresByID := make(map[string]resolve.Features, len(pool))
		for _, c := range pool {
			featuresByID[c.ID] = scorer.Score(req, c, nil)
		}
		ranked := resolve.Fuse(pool, featuresByID, r.cfg.Weights, 0)

		match := r.decide(req, ranked)
		matches = append(matches, match)
		if match.Decision == resolve.DecisionAccept {
			resolved++
		}
	}

	coverage := float64(resolved) / float64(len(mentions))
	conflict := conflictRate(matches)
	mode := r.mode(coverage, conflict)

	result := &Result{
		Mode:       mode,
		AliasMap:   aliasMap,
		Coverage:   coverage,
		Conflict:   conflict,
		Provenance: matches,
		Strategy:   "deterministic",
	}
	if mode == ModeRewrite || mode == ModeLocal {
		result.ResolvedText = Apply(chunkText, matches, mode)
	}
	return result
}

// windowCandidates 窗口内的候选先行词。缩写走别名表（alias_exact 1.0），
// 代词与指示词走位置邻近度（keyword，分数随句距衰减）。
func (r *Resolver) windowCandidates(m *resolve.Mention, antecedents []*Antecedent, aliasMap map[string]string) []*resolve.Candidate {
	var out []*resolve.Candidate

	if m.Kind == resolve.MentionAbbreviation {
		if full, ok := aliasMap[m.Text]; ok {
			// 局部改写的邻近判断基于声明句，不是 chunk 首句
			declared := 0
			for _, a := range antecedents {
				if a.FromAlias && a.Text == full {
					declared = a.SentenceIndex
					break
				}
			}
			out = append(out, &resolve.Candidate{
				ID:          graph.NormalizeName(full),
				DisplayText: full,
				Source:      resolve.SourceAliasExact,
				SourceScore: 1.0,
				Attributes:  map[string]string{"sentence_index": strconv.Itoa(declared)},
			})
		}
		return out
	}

	for _, a := range antecedents {
		// 只回指：先行词必须在指称之前或同句
		if a.SentenceIndex > m.SentenceIndex {
			continue
		}
		distance := m.SentenceIndex - a.SentenceIndex
		score := 1.0 / float64(1+distance)
		source := resolve.SourceKeyword
		if a.FromAlias {
			source = resolve.SourceAliasExact
			if score < 0.8 {
				score = 0.8
			}
		}
		out = append(out, &resolve.Candidate{
			ID:          graph.NormalizeName(a.Text),
			DisplayText: a.Text,
			Source:      source,
			SourceScore: score,
			Attributes:  map[string]string{"sentence_index": strconv.Itoa(a.SentenceIndex)},
		})
	}
	return out
}

// decide 单个指称的判定：有候选且不歧义则 accept
func (r *Resolver) decide(req *resolve.Request, ranked []*resolve.Scored) *resolve.Match {
	m := &resolve.Match{
		RequestID: req.ID,
		Signal:    req.Text,
		Decision:  resolve.DecisionNil,
		DecidedAt: time.Now(),
	}
	if len(ranked) == 0 {
		return m
	}
	top := ranked[0]
	m.Target = top.Candidate
	m.FusedScore = top.Fused
	m.Evidence = resolve.Evidence(top)
	if len(ranked) > 1 && r.epsilon > 0 && ranked[0].Fused-ranked[1].Fused < r.epsilon {
		m.Decision = resolve.DecisionReview
		return m
	}
	m.Decision = resolve.DecisionAccept
	// 指称在 Match 上带上句序，供局部改写判断邻近性
	if m.Target.Attributes == nil {
		m.Target.Attributes = map[string]string{}
	}
	m.Target.Attributes["mention_sentence"] = strconv.Itoa(req.Mention.SentenceIndex)
	m.Target.Attributes["mention_position"] = strconv.Itoa(req.Mention.Position)
	m.Target.Attributes["mention_end"] = strconv.Itoa(req.Mention.CharSpan[1])
	return m
}

// mode 按覆盖率与冲突率分档
func (r *Resolver) mode(coverage, conflict float64) string {
	rewriteCov, rewriteConf := orDefault(r.cfg.RewriteCoverage, 0.6), orDefault(r.cfg.RewriteConflict, 0.15)
	localCov, localConf := orDefault(r.cfg.LocalCoverage, 0.3), orDefault(r.cfg.LocalConflict, 0.25)
	aliasCov := orDefault(r.cfg.AliasCoverage, 0.1)

	switch {
	case coverage >= rewriteCov && conflict <= rewriteConf:
		return ModeRewrite
	case coverage >= localCov && conflict <= localConf:
		return ModeLocal
	case coverage >= aliasCov:
		return ModeAliasOnly
	default:
		return ModeSkip
	}
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

// conflictRate 同一指称文本被接受到不同目标的比例
func conflictRate(matches []*resolve.Match) float64 {
	targets := make(map[string]map[string]bool)
	accepted := 0
	for _, m := range matches {
		if m.Decision != resolve.DecisionAccept || m.Target == nil {
			continue
		}
		accepted++
		if targets[m.Signal] == nil {
			targets[m.Signal] = make(map[string]bool)
		}
		targets[m.Signal][m.Target.ID] = true
	}
	if accepted == 0 {
		return 0.0
	}
	conflicting := 0
	for _, m := range matches {
		if m.Decision == resolve.DecisionAccept && m.Target != nil && len(targets[m.Signal]) > 1 {
			conflicting++
		}
	}
	return float64(conflicting) / float64(accepted)
}
