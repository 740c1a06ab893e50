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

package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"graphrag-platform/internal/model/llm"
)

const answerPrompt = `根据下面的证据回答问题。只输出 JSON：
{"conclusion": "...", "reasoning_chain": ["...", "..."]}

结论必须完全来自证据，证据不足时直说不足。

问题：%s

证据：
%s`

// generate 填充结论与推理链。LLM 可用时用它组织语言，
// 失败或未配置则退到确定性拼接；证据与置信度不受生成影响。
func (a *Answerer) generate(ctx context.Context, question string, ans *Answer) {
	if len(ans.Evidence) == 0 {
		return
	}

	if a.llm != nil {
		if ok := a.generateLLM(ctx, question, ans); ok {
			return
		}
	}

	// 确定性兜底：首条证据作结论，其余按序列入推理链
	ans.Conclusion = ans.Evidence[0].Text
	for i, ev := range ans.Evidence {
		ans.ReasoningChain = append(ans.ReasoningChain,
			fmt.Sprintf("证据 %d（%s，分数 %.3f）：%s", i+1, ev.Source, ev.FusedScore, ev.Text))
	}
}

func (a *Answerer) generateLLM(ctx context.Context, question string, ans *Answer) bool {
	var sb strings.Builder
	for i, ev := range ans.Evidence {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, ev.Text)
	}

	raw, err := a.llm.ChatWithContext(ctx, []llm.Message{
		{Role: "user", Content: fmt.Sprintf(answerPrompt, question, sb.String())},
	}, llm.GenerateOptions{Temperature: 0.2, MaxTokens: 1024, JSONMode: true})
	if err != nil {
		a.logger.Warn("答案生成失败，退回确定性拼接", "error", err.Error())
		return false
	}

	var parsed struct {
		Conclusion     string   `json:"conclusion"`
		ReasoningChain []string `json:"reasoning_chain"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil || parsed.Conclusion == "" {
		a.logger.Warn("答案生成返回非法 JSON，退回确定性拼接")
		return false
	}
	ans.Conclusion = parsed.Conclusion
	ans.ReasoningChain = parsed.ReasoningChain
	if ans.ReasoningChain == nil {
		ans.ReasoningChain = []string{}
	}
	return true
}
