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
	"strings"
	"unicode"

	"graphrag-platform/internal/graph"
)

// KeywordSource 词元重叠候选源：分数 = 命中词元数 / 查询词元数
type KeywordSource struct {
	store graph.Store
}

// NewKeywordSource 创建词元候选源
func NewKeywordSource(store graph.Store) *KeywordSource {
	return &KeywordSource{store: store}
}

// Name 实现 Source
func (s *KeywordSource) Name() string { return SourceKeyword }

// Generate 实现 Source
func (s *KeywordSource) Generate(ctx context.Context, req *Request, limit int) ([]*Candidate, error) {
	tokens := Tokenize(req.Text)
	if len(tokens) == 0 {
		return nil, nil
	}

	matches, err := s.store.MatchTokens(ctx, tokens, limit)
	if err != nil {
		return nil, err
	}

	out := make([]*Candidate, 0, len(matches))
	for _, m := range matches {
		score := float64(m.Matched) / float64(len(tokens))
		if score > 1.0 {
			score = 1.0
		}
		out = append(out, candidateFromNode(m.Node, SourceKeyword, score))
	}
	return out, nil
}

// Tokenize 混合文字分词：拉丁文按词切，中日韩文按双字滑窗切，
// 过短的整体退化为单字。
func Tokenize(text string) []string {
	var tokens []string
	var latin []rune
	var cjk []rune

	flushLatin := func() {
		if len(latin) >= 2 {
			tokens = append(tokens, strings.ToLower(string(latin)))
		}
		latin = latin[:0]
	}
	flushCJK := func() {
		switch {
		case len(cjk) == 1:
			tokens = append(tokens, string(cjk))
		case len(cjk) >= 2:
			for i := 0; i+1 < len(cjk); i++ {
				tokens = append(tokens, string(cjk[i:i+2]))
			}
		}
		cjk = cjk[:0]
	}

	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flushLatin()
			cjk = append(cjk, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			flushCJK()
			latin = append(latin, r)
		default:
			flushLatin()
			flushCJK()
		}
	}
	flushLatin()
	flushCJK()

	// 去重，保持首现顺序
	seen := make(map[string]bool, len(tokens))
	out := tokens[:0]
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
