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

// Package mention 实现 chunk 内的指代消解：信号抽取、噪声过滤、
// 候选先行词消解与按覆盖率分档的文本改写。
package mention

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"graphrag-platform/internal/resolve"
)

// 代词与指示词清单。中文代词直接按词面匹配，英文按词边界匹配。
var (
	cjkPronouns = []string{"它们", "他们", "她们", "它", "他", "她", "其"}

	enPronounRe = regexp.MustCompile(`(?i)\b(it|he|she|they|him|her|them)\b`)

	// 指示词：这/该/此 + 至多三个汉字的名词短语
	demonstrativeRe = regexp.MustCompile(`(这种|这个|这些|这一|该|此)\p{Han}{0,3}`)

	// 缩写声明：全称（缩写），全称为汉字或拉丁词，缩写为短拉丁/数字串。
	// 全角与半角括号都接受。
	abbrevRe = regexp.MustCompile(`([\p{Han}]{2,16}|[A-Za-z][A-Za-z0-9 ]{1,32})[（(]([A-Za-z][A-Za-z0-9]{0,9})[）)]`)

	sentenceSplitRe = regexp.MustCompile(`[。！？!?\n]+`)
)

// 其 后接这些字时是复合词（其他/其中/其实……）而非代词
var qiCompoundNext = map[rune]bool{
	'他': true, '它': true, '中': true, '实': true,
	'余': true, '次': true, '间': true, '后': true, '前': true,
}

// pronounInCompound 单字代词落在常见复合词内时不算指称：
// 其他/其中 里的 其，以及 其他/其它 里的 他/它。
func pronounInCompound(sentence string, pos int, p string) bool {
	switch p {
	case "其":
		next, _ := utf8.DecodeRuneInString(sentence[pos+len(p):])
		return qiCompoundNext[next]
	case "他", "它", "她":
		prev, _ := utf8.DecodeLastRuneInString(sentence[:pos])
		return prev == '其'
	}
	return false
}

// ExtractAliases 抽取缩写声明，返回 缩写 -> 全称
func ExtractAliases(text string) map[string]string {
	out := make(map[string]string)
	for _, m := range abbrevRe.FindAllStringSubmatch(text, -1) {
		full := strings.TrimSpace(m[1])
		abbr := strings.TrimSpace(m[2])
		if full == "" || abbr == "" || full == abbr {
			continue
		}
		if _, exists := out[abbr]; !exists {
			out[abbr] = full
		}
	}
	return out
}

// ExtractMentions 抽取 chunk 内的待消解指称：代词、指示词，
// 以及已声明缩写在声明之后的独立出现。
func ExtractMentions(text string) []*resolve.Mention {
	aliases := ExtractAliases(text)
	sentences := splitSentences(text)

	var out []*resolve.Mention
	for si, sent := range sentences {
		base := sent.offset

		// 中文代词
		for _, p := range cjkPronouns {
			for _, pos := range allIndexes(sent.text, p) {
				if covered(out, base+pos) || pronounInCompound(sent.text, pos, p) {
					continue
				}
				out = append(out, &resolve.Mention{
					Text:          p,
					Kind:          resolve.MentionPronoun,
					Position:      base + pos,
					SentenceIndex: si,
					CharSpan:      [2]int{base + pos, base + pos + len(p)},
				})
			}
		}

		// 英文代词
		for _, loc := range enPronounRe.FindAllStringIndex(sent.text, -1) {
			if covered(out, base+loc[0]) {
				continue
			}
			out = append(out, &resolve.Mention{
				Text:          sent.text[loc[0]:loc[1]],
				Kind:          resolve.MentionPronoun,
				Position:      base + loc[0],
				SentenceIndex: si,
				CharSpan:      [2]int{base + loc[0], base + loc[1]},
			})
		}

		// 指示词短语
		for _, loc := range demonstrativeRe.FindAllStringIndex(sent.text, -1) {
			if covered(out, base+loc[0]) {
				continue
			}
			out = append(out, &resolve.Mention{
				Text:          sent.text[loc[0]:loc[1]],
				Kind:          resolve.MentionDemonstrative,
				Position:      base + loc[0],
				SentenceIndex: si,
				CharSpan:      [2]int{base + loc[0], base + loc[1]},
			})
		}

		// 缩写的后续独立出现（声明处本身不算指称）
		for abbr := range aliases {
			declPos := strings.Index(text, "（"+abbr+"）")
			if declPos < 0 {
				declPos = strings.Index(text, "("+abbr+")")
			}
			for _, pos := range allIndexes(sent.text, abbr) {
				abs := base + pos
				if declPos >= 0 && abs >= declPos && abs <= declPos+len("（"+abbr+"）") {
					continue
				}
				if covered(out, abs) {
					continue
				}
				out = append(out, &resolve.Mention{
					Text:          abbr,
					Kind:          resolve.MentionAbbreviation,
					Position:      abs,
					SentenceIndex: si,
					CharSpan:      [2]int{abs, abs + len(abbr)},
				})
			}
		}
	}
	return out
}

// Antecedent 候选先行词：chunk 内可被指称回指的名词性片段
type Antecedent struct {
	Text          string
	SentenceIndex int
	FromAlias     bool // 来自缩写声明的全称
}

// ExtractAntecedents 抽取候选先行词：缩写全称，以及句首的名词性短语
func ExtractAntecedents(text string) []*Antecedent {
	aliases := ExtractAliases(text)
	sentences := splitSentences(text)

	var out []*Antecedent
	seen := make(map[string]bool)
	add := func(t string, si int, fromAlias bool) {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		out = append(out, &Antecedent{Text: t, SentenceIndex: si, FromAlias: fromAlias})
	}

	for si, sent := range sentences {
		for _, full := range aliases {
			if strings.Contains(sent.text, full) {
				add(full, si, true)
			}
		}
		add(leadingNounPhrase(sent.text), si, false)
	}
	return out
}

// leadingNounPhrase 句首的名词性片段：截到第一个功能词或标点
var npStopRe = regexp.MustCompile(`(是|的|能够|可以|在|对|被|，|,|（|\(|、|：|:)`)

func leadingNounPhrase(sentence string) string {
	s := strings.TrimSpace(sentence)
	if loc := npStopRe.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	s = strings.TrimSpace(s)
	// 太短或以代词/指示词开头的不算先行词
	runes := []rune(s)
	if len(runes) < 2 || len(runes) > 24 {
		return ""
	}
	for _, p := range cjkPronouns {
		if strings.HasPrefix(s, p) && !pronounInCompound(s, 0, p) {
			return ""
		}
	}
	if demonstrativeRe.MatchString(s) && demonstrativeRe.FindStringIndex(s)[0] == 0 {
		return ""
	}
	return s
}

type sentenceSpan struct {
	text   string
	offset int
}

func splitSentences(text string) []sentenceSpan {
	var out []sentenceSpan
	start := 0
	for _, loc := range sentenceSplitRe.FindAllStringIndex(text, -1) {
		if loc[0] > start {
			out = append(out, sentenceSpan{text: text[start:loc[0]], offset: start})
		}
		start = loc[1]
	}
	if start < len(text) {
		out = append(out, sentenceSpan{text: text[start:], offset: start})
	}
	return out
}

func allIndexes(s, sub string) []int {
	var out []int
	off := 0
	for {
		i := strings.Index(s[off:], sub)
		if i < 0 {
			return out
		}
		out = append(out, off+i)
		off += i + len(sub)
	}
}

func covered(mentions []*resolve.Mention, pos int) bool {
	for _, m := range mentions {
		if pos >= m.CharSpan[0] && pos < m.CharSpan[1] {
			return true
		}
	}
	return false
}
