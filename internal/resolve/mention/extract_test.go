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
	"strings"
	"testing"

	"graphrag-platform/internal/resolve"
)

func TestExtractAliases(t *testing.T) {
	text := "人工智能（AI）是一种技术。知识图谱(KG)由节点和边组成。"
	got := ExtractAliases(text)
	if got["AI"] != "人工智能" {
		t.Fatalf("全角括号缩写未识别: %v", got)
	}
	if got["KG"] != "知识图谱" {
		t.Fatalf("半角括号缩写未识别: %v", got)
	}
}

func TestExtractAliasesIgnoresSelfReference(t *testing.T) {
	got := ExtractAliases("API（API）是接口。")
	if _, ok := got["API"]; ok {
		t.Fatalf("全称与缩写相同时不应入表: %v", got)
	}
}

func TestExtractMentionsPronounAndDemonstrative(t *testing.T) {
	text := "人工智能是一种技术。它能够处理任务。这种技术应用广泛。"
	mentions := ExtractMentions(text)

	var kinds []resolve.MentionKind
	var texts []string
	for _, m := range mentions {
		kinds = append(kinds, m.Kind)
		texts = append(texts, m.Text)
	}
	if !containsMention(mentions, "它", resolve.MentionPronoun) {
		t.Fatalf("代词未抽取: %v %v", texts, kinds)
	}
	if !hasKind(mentions, resolve.MentionDemonstrative) {
		t.Fatalf("指示词未抽取: %v %v", texts, kinds)
	}
	for _, m := range mentions {
		if m.Text == "它" && m.SentenceIndex != 1 {
			t.Fatalf("代词句序错误: %d", m.SentenceIndex)
		}
	}
}

func TestExtractMentionsAbbreviationOccurrences(t *testing.T) {
	text := "人工智能（AI）是一种技术。AI 能够处理任务。"
	mentions := ExtractMentions(text)

	count := 0
	for _, m := range mentions {
		if m.Kind == resolve.MentionAbbreviation && m.Text == "AI" {
			count++
			if m.SentenceIndex != 1 {
				t.Fatalf("缩写后续出现的句序错误: %d", m.SentenceIndex)
			}
		}
	}
	// 声明处的 AI 不算指称，只有第二句的独立出现算
	if count != 1 {
		t.Fatalf("期望 1 个缩写指称, got %d", count)
	}
}

func TestExtractMentionsSkipsCompoundPronouns(t *testing.T) {
	// 其他/其中/其实 里的 其 和 他 是复合词成分，不是指称
	text := "机器学习是一种方法。其中梯度下降最常用，其他方法其实也有效。其收敛速度更快。"
	mentions := ExtractMentions(text)

	for _, m := range mentions {
		if m.Kind != resolve.MentionPronoun {
			continue
		}
		span := text[m.CharSpan[0]:m.CharSpan[1]]
		if span != m.Text {
			t.Fatalf("span 与文本不符: %q vs %q", span, m.Text)
		}
		if m.SentenceIndex == 1 {
			t.Fatalf("复合词内不应产生代词指称: %q@%d", m.Text, m.Position)
		}
	}
	// 独立的 其 仍然是代词
	if !containsMention(mentions, "其", resolve.MentionPronoun) {
		t.Fatal("独立代词 其 未抽取")
	}
}

func TestExtractMentionsSpanMatchesText(t *testing.T) {
	text := "人工智能（AI）是一种技术。它能够处理任务。"
	for _, m := range ExtractMentions(text) {
		if got := text[m.CharSpan[0]:m.CharSpan[1]]; got != m.Text {
			t.Fatalf("span 与文本不符: %q vs %q", got, m.Text)
		}
	}
}

func TestExtractAntecedents(t *testing.T) {
	text := "人工智能（AI）是一种模拟人类智能的技术。它能够处理复杂的任务。"
	ants := ExtractAntecedents(text)

	foundAlias := false
	for _, a := range ants {
		if a.Text == "人工智能" {
			foundAlias = true
			if !a.FromAlias {
				t.Fatalf("缩写全称应标记 FromAlias")
			}
			if a.SentenceIndex != 0 {
				t.Fatalf("先行词句序错误: %d", a.SentenceIndex)
			}
		}
		if strings.HasPrefix(a.Text, "它") {
			t.Fatalf("代词不应成为先行词: %q", a.Text)
		}
	}
	if !foundAlias {
		t.Fatalf("缩写全称未进入先行词: %+v", ants)
	}
}

func TestIsNoise(t *testing.T) {
	cases := []struct {
		text   string
		noisy  bool
		reason string
	}{
		{"太短", true, "text_too_short"},
		{"人工智能是一种模拟人类智能的技术，应用广泛。", false, ""},
		{"| 名称 | 类型 |\n| 人工智能 | 技术 |\n| 知识图谱 | 结构 |\n| 向量检索 | 方法 |", true, "tabular_or_code"},
		{"```\nfunc main() {}\n这是一个足够长的代码块示例文本\n```", true, "tabular_or_code"},
	}
	for _, c := range cases {
		noisy, reason := IsNoise(c.text)
		if noisy != c.noisy {
			t.Fatalf("IsNoise(%q) = %v, 期望 %v", c.text, noisy, c.noisy)
		}
		if c.noisy && reason != c.reason {
			t.Fatalf("IsNoise(%q) reason = %q, 期望 %q", c.text, reason, c.reason)
		}
	}
}

func containsMention(mentions []*resolve.Mention, text string, kind resolve.MentionKind) bool {
	for _, m := range mentions {
		if m.Text == text && m.Kind == kind {
			return true
		}
	}
	return false
}

func hasKind(mentions []*resolve.Mention, kind resolve.MentionKind) bool {
	for _, m := range mentions {
		if m.Kind == kind {
			return true
		}
	}
	return false
}
