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
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"graphrag-platform/internal/model/llm"
	"graphrag-platform/internal/resolve"
)

// Strategy 一种消解策略：返回结果与质量分（Result.Quality），
// 编排器在确定性结果与策略结果之间按质量取优。
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, chunkText string) (*Result, error)
}

const llmPrompt = `你是一个指代消解助手。对下面的文本做指代消解：
1. 找出所有代词、指示词和缩写，并确定它们指向的先行词；
2. 输出改写后的文本（用先行词替换指称）；
3. 输出缩写到全称的映射。

只输出 JSON，格式：
{"resolved_text": "...", "alias_map": {"缩写": "全称"}, "substitutions": [{"mention": "它", "antecedent": "..."}]}

文本：
%s`

// LLMStrategy LLM 指代消解策略。每个 chunk 最多一轮尝试，
// 带固定重试预算与严格超时，失败即静默回退。
type LLMStrategy struct {
	client  llm.Client
	retry   int
	timeout time.Duration
}

// NewLLMStrategy 创建 LLM 策略；retry <0 默认 2，timeout <=0 默认 10s
func NewLLMStrategy(client llm.Client, retry int, timeout time.Duration) *LLMStrategy {
	if retry < 0 {
		retry = 2
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LLMStrategy{client: client, retry: retry, timeout: timeout}
}

// Name 实现 Strategy
func (s *LLMStrategy) Name() string { return "llm" }

// Resolve 实现 Strategy
func (s *LLMStrategy) Resolve(ctx context.Context, chunkText string) (*Result, error) {
	mentions := ExtractMentions(chunkText)
	if len(mentions) == 0 {
		return &Result{Mode: ModeSkip, AliasMap: map[string]string{}, Strategy: s.Name()}, nil
	}

	var lastErr error
	for attempt := 0; attempt <= s.retry; attempt++ {
		result, err := s.tryOnce(ctx, chunkText, len(mentions))
		if err == nil {
			return result, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (s *LLMStrategy) tryOnce(ctx context.Context, chunkText string, totalMentions int) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.client.ChatWithContext(ctx, []llm.Message{
		{Role: "user", Content: fmt.Sprintf(llmPrompt, chunkText)},
	}, llm.GenerateOptions{Temperature: 0.0, MaxTokens: 2048, JSONMode: true})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %v", resolve.ErrUpstreamTimeout, err)
		}
		return nil, err
	}

	var parsed struct {
		ResolvedText  string            `json:"resolved_text"`
		AliasMap      map[string]string `json:"alias_map"`
		Substitutions []struct {
			Mention    string `json:"mention"`
			Antecedent string `json:"antecedent"`
		} `json:"substitutions"`
	}
	// 宽容处理包在 markdown 代码块里的输出
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", resolve.ErrMalformedResponse, err)
	}
	if parsed.ResolvedText == "" {
		return nil, fmt.Errorf("%w: resolved_text 为空", resolve.ErrMalformedResponse)
	}

	if parsed.AliasMap == nil {
		parsed.AliasMap = map[string]string{}
	}
	var provenance []*resolve.Match
	for _, sub := range parsed.Substitutions {
		if sub.Mention == "" || sub.Antecedent == "" {
			continue
		}
		provenance = append(provenance, &resolve.Match{
			RequestID:  uuid.NewString(),
			Signal:     sub.Mention,
			Target:     &resolve.Candidate{ID: sub.Antecedent, DisplayText: sub.Antecedent, Source: "llm", SourceScore: 1.0},
			FusedScore: 1.0,
			Decision:   resolve.DecisionAccept,
			Evidence:   []resolve.EvidenceItem{{Feature: "llm_substitution", Value: 1.0, Source: "llm"}},
			DecidedAt:  time.Now(),
		})
	}

	coverage := float64(len(provenance)) / float64(totalMentions)
	if coverage > 1.0 {
		coverage = 1.0
	}
	return &Result{
		Mode:         ModeRewrite,
		AliasMap:     parsed.AliasMap,
		Coverage:     coverage,
		ResolvedText: parsed.ResolvedText,
		Provenance:   provenance,
		Strategy:     s.Name(),
	}, nil
}
