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
	"unicode/utf8"
)

const (
	minChunkRunes       = 16
	tableMarkerFraction = 0.05
	dialogueRunLength   = 3
)

// IsNoise 判断 chunk 是否不值得做指代消解。
// 命中的 chunk 直接 skip，候选生成完全不跑。
func IsNoise(text string) (bool, string) {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < minChunkRunes {
		return true, "text_too_short"
	}
	if looksTabular(trimmed) {
		return true, "tabular_or_code"
	}
	if looksDialogue(trimmed) {
		return true, "dialogue_run"
	}
	return false, ""
}

// looksTabular 表格或代码形态：竖线/制表符密度高，或含代码栅栏
func looksTabular(text string) bool {
	if strings.Contains(text, "```") {
		return true
	}
	markers := strings.Count(text, "|") + strings.Count(text, "\t")
	return float64(markers) >= tableMarkerFraction*float64(utf8.RuneCountInString(text))
}

// looksDialogue 连续多句短对话形态：引号开头的短句连排
func looksDialogue(text string) bool {
	sentences := splitSentences(text)
	run := 0
	for _, s := range sentences {
		t := strings.TrimSpace(s.text)
		short := utf8.RuneCountInString(t) < 12
		quoted := strings.HasPrefix(t, "“") || strings.HasPrefix(t, "\"") ||
			strings.HasPrefix(t, "「") || strings.HasPrefix(t, "—")
		if short && quoted {
			run++
			if run >= dialogueRunLength {
				return true
			}
			continue
		}
		run = 0
	}
	return false
}
