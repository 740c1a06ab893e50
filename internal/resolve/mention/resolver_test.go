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
	"errors"
	"strings"
	"testing"
	"time"

	"graphrag-platform/internal/model/llm"
	"graphrag-platform/internal/resolve"
	"graphrag-platform/pkg/config"
	"graphrag-platform/pkg/log"
)

func testLogger() *log.Logger {
	logger, _ := log.NewLogger(&log.Config{Level: "error", Format: "text"})
	return logger
}

func testResolverConfig() config.ResolverConfig {
	return config.ResolverConfig{
		AmbiguityEpsilon: 0.05,
		TypePenalty:      0.3,
		Coreference: config.CoreferenceConfig{
			Weights: config.WeightTable{
				Sources: map[string]float64{
					resolve.SourceAliasExact: 1.0,
					resolve.SourceKeyword:    0.6,
				},
				Features: map[string]float64{
					resolve.FeatureTextualSimilarity: 0.2,
				},
			},
		},
	}
}

func TestResolveAbbreviationChunk(t *testing.T) {
	r := NewResolver(testResolverConfig(), testLogger(), nil)
	text := "人工智能（AI）是一种模拟人类智能的技术。它能够处理复杂的任务。"

	got := r.Resolve(context.Background(), text)
	if got.AliasMap["AI"] != "人工智能" {
		t.Fatalf("别名表错误: %v", got.AliasMap)
	}
	if got.Coverage <= 0 {
		t.Fatalf("代词应被消解, coverage = %f", got.Coverage)
	}
	if got.Mode != ModeRewrite && got.Mode != ModeLocal && got.Mode != ModeAliasOnly {
		t.Fatalf("期望非 skip 档位, got %s", got.Mode)
	}
	if got.Strategy != "deterministic" {
		t.Fatalf("未配置 LLM 时应走确定性策略: %s", got.Strategy)
	}
	if got.Mode == ModeRewrite || got.Mode == ModeLocal {
		if !strings.Contains(got.ResolvedText, "人工智能能够处理复杂的任务") {
			t.Fatalf("代词未改写为先行词: %q", got.ResolvedText)
		}
	}
	for _, m := range got.Provenance {
		if m.Signal == "它" && m.Decision == resolve.DecisionAccept && m.Target.DisplayText != "人工智能" {
			t.Fatalf("代词消解目标错误: %s", m.Target.DisplayText)
		}
	}
}

func TestAbbreviationCarriesDeclaringSentence(t *testing.T) {
	r := NewResolver(testResolverConfig(), testLogger(), nil)
	// 声明句不在 chunk 首句，局部改写的邻近判断要以声明句为基准
	text := "本文介绍几种技术。检索增强生成（RAG）是一种常见方案。RAG 依赖高质量的知识图谱。"

	got := r.Resolve(context.Background(), text)
	found := false
	for _, m := range got.Provenance {
		if m.Signal != "RAG" || m.Target == nil {
			continue
		}
		found = true
		if m.Target.Attributes["sentence_index"] != "1" {
			t.Fatalf("缩写候选应带声明句序 1, got %q", m.Target.Attributes["sentence_index"])
		}
	}
	if !found {
		t.Fatalf("缩写指称未消解: %+v", got.Provenance)
	}
}

func TestResolveNoMentions(t *testing.T) {
	r := NewResolver(testResolverConfig(), testLogger(), nil)
	text := "知识图谱由节点和边组成，节点代表实体，边代表实体间的关系。"

	got := r.Resolve(context.Background(), text)
	if got.Mode != ModeSkip {
		t.Fatalf("无指称应为 skip, got %s", got.Mode)
	}
	if got.Coverage != 0.0 {
		t.Fatalf("无指称覆盖率应为 0.0, got %f", got.Coverage)
	}
	if got.AliasMap == nil || len(got.AliasMap) != 0 {
		t.Fatalf("无指称别名表应为空对象, got %v", got.AliasMap)
	}
}

func TestResolveNoisyChunkSkipped(t *testing.T) {
	r := NewResolver(testResolverConfig(), testLogger(), nil)

	got := r.Resolve(context.Background(), "它很短")
	if got.Mode != ModeSkip || got.SkipReason != "text_too_short" {
		t.Fatalf("短文本应 skip: mode=%s reason=%s", got.Mode, got.SkipReason)
	}

	table := "| 它 | 类型 |\n| 人工智能 | 技术 |\n| 知识图谱 | 结构 |\n| 向量检索 | 方法 |"
	got = r.Resolve(context.Background(), table)
	if got.Mode != ModeSkip || got.SkipReason != "tabular_or_code" {
		t.Fatalf("表格应 skip: mode=%s reason=%s", got.Mode, got.SkipReason)
	}
}

func TestApplyLocalModeOnlyAdjacent(t *testing.T) {
	text := "甲。乙。丙。丁。"
	far := &resolve.Match{
		Signal:   "丁",
		Decision: resolve.DecisionAccept,
		Target: &resolve.Candidate{
			DisplayText: "远端目标",
			Attributes: map[string]string{
				"mention_position": "18",
				"mention_end":      "21",
				"mention_sentence": "3",
				"sentence_index":   "0",
			},
		},
	}
	near := &resolve.Match{
		Signal:   "乙",
		Decision: resolve.DecisionAccept,
		Target: &resolve.Candidate{
			DisplayText: "近端目标",
			Attributes: map[string]string{
				"mention_position": "6",
				"mention_end":      "9",
				"mention_sentence": "1",
				"sentence_index":   "0",
			},
		},
	}

	got := Apply(text, []*resolve.Match{far, near}, ModeLocal)
	if !strings.Contains(got, "近端目标") {
		t.Fatalf("相邻句替换缺失: %q", got)
	}
	if strings.Contains(got, "远端目标") {
		t.Fatalf("local 档不应替换跨句项: %q", got)
	}

	got = Apply(text, []*resolve.Match{far, near}, ModeRewrite)
	if !strings.Contains(got, "远端目标") || !strings.Contains(got, "近端目标") {
		t.Fatalf("rewrite 档应替换全部接受项: %q", got)
	}
}

func TestApplySkipsOverlaps(t *testing.T) {
	text := "它们处理任务。其余文本保持不变。"
	outer := &resolve.Match{
		Decision: resolve.DecisionAccept,
		Target: &resolve.Candidate{
			DisplayText: "系统",
			Attributes:  map[string]string{"mention_position": "0", "mention_end": "6"},
		},
	}
	inner := &resolve.Match{
		Decision: resolve.DecisionAccept,
		Target: &resolve.Candidate{
			DisplayText: "组件",
			Attributes:  map[string]string{"mention_position": "3", "mention_end": "6"},
		},
	}

	got := Apply(text, []*resolve.Match{outer, inner}, ModeRewrite)
	if strings.Count(got, "处理任务") != 1 {
		t.Fatalf("重叠替换破坏了文本: %q", got)
	}
}

// fakeChatClient 只实现测试用到的 ChatWithContext 路径
type fakeChatClient struct {
	reply string
	err   error
	calls int
}

func (f *fakeChatClient) Generate(prompt string, opts llm.GenerateOptions) (string, error) {
	return f.GenerateWithContext(context.Background(), prompt, opts)
}

func (f *fakeChatClient) GenerateWithContext(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	return f.ChatWithContext(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts)
}

func (f *fakeChatClient) Chat(messages []llm.Message, opts llm.GenerateOptions) (string, error) {
	return f.ChatWithContext(context.Background(), messages, opts)
}

func (f *fakeChatClient) ChatWithContext(ctx context.Context, messages []llm.Message, opts llm.GenerateOptions) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeChatClient) Model() string    { return "fake" }
func (f *fakeChatClient) Provider() string { return "fake" }
func (f *fakeChatClient) SetModel(string)  {}
func (f *fakeChatClient) SetAPIKey(string) {}

func TestLLMStrategyParsesResponse(t *testing.T) {
	client := &fakeChatClient{
		reply: `{"resolved_text": "人工智能（AI）是技术。人工智能能够处理复杂的任务。", "alias_map": {"AI": "人工智能"}, "substitutions": [{"mention": "它", "antecedent": "人工智能"}]}`,
	}
	s := NewLLMStrategy(client, 2, time.Second)

	got, err := s.Resolve(context.Background(), "人工智能（AI）是技术。它能够处理复杂的任务。")
	if err != nil {
		t.Fatalf("Resolve 失败: %v", err)
	}
	if got.Strategy != "llm" || got.Mode != ModeRewrite {
		t.Fatalf("结果档位错误: strategy=%s mode=%s", got.Strategy, got.Mode)
	}
	if got.AliasMap["AI"] != "人工智能" {
		t.Fatalf("别名表错误: %v", got.AliasMap)
	}
	if got.Coverage <= 0 {
		t.Fatalf("覆盖率应大于 0: %f", got.Coverage)
	}
	if len(got.Provenance) != 1 || got.Provenance[0].Target.ID != "人工智能" {
		t.Fatalf("替换证据错误: %+v", got.Provenance)
	}
}

func TestLLMStrategyMalformedExhaustsRetries(t *testing.T) {
	client := &fakeChatClient{reply: "这不是 JSON"}
	s := NewLLMStrategy(client, 2, time.Second)

	_, err := s.Resolve(context.Background(), "人工智能（AI）是技术。它能够处理复杂的任务。")
	if !errors.Is(err, resolve.ErrMalformedResponse) {
		t.Fatalf("期望 ErrMalformedResponse, got %v", err)
	}
	// 首次 + 2 次重试
	if client.calls != 3 {
		t.Fatalf("期望 3 次调用, got %d", client.calls)
	}
}

func TestResolverPrefersHigherCoverageStrategy(t *testing.T) {
	cfg := testResolverConfig()
	cfg.Coreference.LLMEnabled = true

	client := &fakeChatClient{
		reply: `{"resolved_text": "图数据库（GDB）很流行。向量数据库（VDB）也很流行。向量数据库适合检索任务。", "alias_map": {"GDB": "图数据库", "VDB": "向量数据库"}, "substitutions": [{"mention": "它", "antecedent": "向量数据库"}]}`,
	}
	r := NewResolver(cfg, testLogger(), NewLLMStrategy(client, 0, time.Second))

	// 两个先行词势均力敌时确定性策略只能转 review（覆盖率 0），LLM 覆盖更高则采纳
	text := "图数据库（GDB）很流行。向量数据库（VDB）也很流行。它适合检索任务。"
	got := r.Resolve(context.Background(), text)
	if got.Strategy != "llm" {
		t.Fatalf("LLM 覆盖率更高时应采纳其结果, got %s (coverage=%f)", got.Strategy, got.Coverage)
	}
	if got.Coverage != 1.0 {
		t.Fatalf("LLM 结果覆盖率错误: %f", got.Coverage)
	}
}

func TestResolverFallsBackWhenLLMFails(t *testing.T) {
	cfg := testResolverConfig()
	cfg.Coreference.LLMEnabled = true

	client := &fakeChatClient{err: errors.New("提供商不可用")}
	r := NewResolver(cfg, testLogger(), NewLLMStrategy(client, 0, time.Second))

	text := "人工智能（AI）是一种模拟人类智能的技术。它能够处理复杂的任务。"
	got := r.Resolve(context.Background(), text)
	if got.Strategy != "deterministic" {
		t.Fatalf("LLM 失败应回退确定性结果, got %s", got.Strategy)
	}
	if got.Coverage <= 0 {
		t.Fatalf("确定性结果应有覆盖: %f", got.Coverage)
	}
}
