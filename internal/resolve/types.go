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

// Package resolve 实现多信号消解管线：候选源并行生成、按身份聚合、
// 特征打分、加权融合排序、阈值决策。指代消解、实体链接、证据检索
// 三个用例共享这一条管线，各自持有权重与阈值。
package resolve

import (
	"time"
)

// 三个用例的名称，打点与权重表索引共用
const (
	UsecaseCoreference = "coreference"
	UsecaseLinking     = "linking"
	UsecaseRetrieval   = "retrieval"
)

// 候选来源名称
const (
	SourceAliasExact = "alias_exact"
	SourceKeyword    = "keyword"
	SourceVector     = "vector"
	SourceGraph      = "graph"
)

// 特征名称
const (
	FeatureTextualSimilarity     = "textual_similarity"
	FeaturePriorStrength         = "prior_strength"
	FeatureTypeCompatibility     = "type_compatibility"
	FeatureStructuralConsistency = "structural_consistency"
	FeatureScriptAgreement       = "script_agreement"
)

// MentionKind 指称类型
type MentionKind string

const (
	MentionPronoun       MentionKind = "pronoun"
	MentionDemonstrative MentionKind = "demonstrative"
	MentionAbbreviation  MentionKind = "abbreviation"
	MentionNominal       MentionKind = "nominal"
)

// Mention 文本中的一个指称片段。由信号抽取产生，只在一次请求内存活。
type Mention struct {
	Text          string      `json:"text"`
	Kind          MentionKind `json:"kind"`
	Position      int         `json:"position"` // 在 chunk 文本中的字节偏移
	SentenceIndex int         `json:"sentence_index"`
	CharSpan      [2]int      `json:"char_span"` // [起, 止) 字节偏移
}

// Request 一次原子消解请求：一个指称、一个实体名或一个问句
type Request struct {
	ID           string   `json:"id"`
	Usecase      string   `json:"usecase"`
	Text         string   `json:"text"`
	ExpectedType string   `json:"expected_type,omitempty"`
	// SeedIDs 图候选源的起点节点（已接受的上下文实体）
	SeedIDs []string `json:"seed_ids,omitempty"`
	// Mention 指代消解时携带的原始指称
	Mention *Mention `json:"mention,omitempty"`
}

// Candidate 一个候选消解目标。身份键为图节点 ID，节点不存在时用规范化名称。
// SourceScores 保留每个来源各自的原始分，聚合时不做求和。
type Candidate struct {
	ID          string            `json:"id"`
	DisplayText string            `json:"display_text"`
	Source      string            `json:"source"` // 首个产出该候选的来源
	SourceScore float64           `json:"source_score"`
	NodeType    string            `json:"node_type,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	// Degree 节点度数，先验强度特征的输入
	Degree       int                `json:"degree,omitempty"`
	SourceScores map[string]float64 `json:"source_scores,omitempty"`
	// Expanded 图先验扩展产出的候选（已按折扣计分）
	Expanded bool `json:"expanded,omitempty"`
}

// Features 特征向量：特征名 -> [0,1]，越高越支持该候选
type Features map[string]float64

// Scored 融合后的候选
type Scored struct {
	Candidate *Candidate `json:"candidate"`
	Features  Features   `json:"features"`
	Fused     float64    `json:"fused_score"`
}

// Decision 决策档位
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReview Decision = "review"
	DecisionNil    Decision = "nil"
)

// EvidenceItem 决策依据中的一条记录
type EvidenceItem struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
	Source  string  `json:"source"`
}

// Match 一次消解的最终判定。落图或入队后不再修改，可回放审计。
type Match struct {
	RequestID  string         `json:"request_id"`
	Signal     string         `json:"signal"` // 原始信号文本
	Target     *Candidate     `json:"target,omitempty"`
	FusedScore float64        `json:"fused_score"`
	Decision   Decision       `json:"decision"`
	Evidence   []EvidenceItem `json:"evidence,omitempty"`
	DecidedAt  time.Time      `json:"decided_at"`
}

// EvidenceCandidate 检索用例的证据候选
type EvidenceCandidate struct {
	ClaimID     string   `json:"claim_id"`
	Text        string   `json:"text"`
	ChunkID     string   `json:"chunk_id,omitempty"`
	DocID       string   `json:"doc_id,omitempty"`
	SectionPath []string `json:"section_path,omitempty"`
	FusedScore  float64  `json:"fused_score"`
	Source      string   `json:"source"`
}
