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
	"math"
	"strings"
	"unicode"

	"graphrag-platform/internal/graph"
)

// priorDegreeScale 先验强度对数刻度的参考上限：度数达到该值时特征饱和为 1
const priorDegreeScale = 1000.0

// Scorer 特征打分器。全部特征是 (请求, 候选, 可选图快照) 的纯函数，
// 取值 [0,1]，越高越支持，不修改任何共享状态。
type Scorer struct {
	// TypePenalty 候选类型与期望类型不匹配时的惩罚值
	TypePenalty float64
}

// NewScorer 创建打分器；typePenalty <=0 默认 0.3
func NewScorer(typePenalty float64) *Scorer {
	if typePenalty <= 0 {
		typePenalty = 0.3
	}
	return &Scorer{TypePenalty: typePenalty}
}

// Score 计算一个候选的全部特征。
// contextNeighbors 是当前上下文种子的邻域节点 ID 集合，nil 表示无图信号。
func (s *Scorer) Score(req *Request, c *Candidate, contextNeighbors map[string]bool) Features {
	return Features{
		FeatureTextualSimilarity:     textualSimilarity(req.Text, c.DisplayText),
		FeaturePriorStrength:         priorStrength(c.Degree),
		FeatureTypeCompatibility:     s.typeCompatibility(req.ExpectedType, c.NodeType),
		FeatureStructuralConsistency: structuralConsistency(c.ID, contextNeighbors),
		FeatureScriptAgreement:       scriptAgreement(req.Text, c.DisplayText),
	}
}

// textualSimilarity 字符 bigram Dice 系数；完全一致（大小写不敏感）直接 1
func textualSimilarity(a, b string) float64 {
	na := graph.NormalizeName(a)
	nb := graph.NormalizeName(b)
	if na == "" || nb == "" {
		return 0.0
	}
	if na == nb {
		return 1.0
	}

	ba := bigrams(na)
	bb := bigrams(nb)
	if len(ba) == 0 || len(bb) == 0 {
		// 单字符文本退化为包含判断
		if strings.Contains(na, nb) || strings.Contains(nb, na) {
			return 0.5
		}
		return 0.0
	}

	common := 0
	for g, n := range ba {
		if m, ok := bb[g]; ok {
			common += min(n, m)
		}
	}
	total := 0
	for _, n := range ba {
		total += n
	}
	for _, n := range bb {
		total += n
	}
	return 2.0 * float64(common) / float64(total)
}

func bigrams(s string) map[string]int {
	runes := []rune(s)
	if len(runes) < 2 {
		return nil
	}
	out := make(map[string]int, len(runes)-1)
	for i := 0; i+1 < len(runes); i++ {
		out[string(runes[i:i+2])]++
	}
	return out
}

// priorStrength 对数刻度的节点度数。原始度数重尾分布，线性映射会让
// 高度数节点淹没一切，这里用 log1p 压缩后再归一。
func priorStrength(degree int) float64 {
	if degree <= 0 {
		return 0.0
	}
	v := math.Log1p(float64(degree)) / math.Log1p(priorDegreeScale)
	return math.Min(v, 1.0)
}

func (s *Scorer) typeCompatibility(expected, actual string) float64 {
	if expected == "" || actual == "" || expected == actual {
		return 1.0
	}
	return s.TypePenalty
}

// structuralConsistency 候选与上下文种子共享邻域则 1.0；
// 无图信号时保持中性 0.5，不因缺数据而惩罚。
func structuralConsistency(candidateID string, contextNeighbors map[string]bool) float64 {
	if len(contextNeighbors) == 0 {
		return 0.5
	}
	if contextNeighbors[candidateID] {
		return 1.0
	}
	return 0.25
}

// scriptAgreement 文字系统一致性：同为中日韩或同为拉丁得 1.0，
// 跨文字系统 0.2，混合或无法判断 0.6。
func scriptAgreement(a, b string) float64 {
	sa := dominantScript(a)
	sb := dominantScript(b)
	if sa == scriptUnknown || sb == scriptUnknown {
		return 0.6
	}
	if sa == sb {
		return 1.0
	}
	return 0.2
}

type script int

const (
	scriptUnknown script = iota
	scriptHan
	scriptLatin
)

func dominantScript(s string) script {
	han, latin := 0, 0
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Han, r):
			han++
		case unicode.IsLetter(r) && r < 0x250:
			latin++
		}
	}
	switch {
	case han == 0 && latin == 0:
		return scriptUnknown
	case han >= latin:
		return scriptHan
	default:
		return scriptLatin
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
