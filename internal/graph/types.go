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

package graph

import (
	"strings"
	"time"
	"unicode"
)

// SchemaVersion 写入边/节点时携带的治理 schema 版本
const SchemaVersion = "1.0"

// RelLinksTo 实体链接判定落图用的关系类型：提及节点 -> 规范节点
const RelLinksTo = "links_to"

// EdgeStatus 边的治理状态
type EdgeStatus string

const (
	// EdgeAccepted 已接受：对读查询可见
	EdgeAccepted EdgeStatus = "accepted"
	// EdgeReview 待复核：默认对读查询不可见，等待人工确认
	EdgeReview EdgeStatus = "review"
)

// Node 图节点：实体、概念或 claim
type Node struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	NormName   string            `json:"norm_name"` // 规范化名称，幂等 upsert 的身份键
	Type       string            `json:"node_type"` // person | organization | concept | claim | ...
	Aliases    []string          `json:"aliases,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	// Degree 读取时填充（已接受边的度数），写入时忽略
	Degree        int       `json:"degree,omitempty"`
	CreatedBy     string    `json:"created_by,omitempty"` // linker | feedback | ingest
	SchemaVersion string    `json:"schema_version,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// Edge 图边；幂等键为 (From, To, Type)
type Edge struct {
	From       string            `json:"from"`
	To         string            `json:"to"`
	Type       string            `json:"rel_type"`
	Weight     float64           `json:"weight,omitempty"`
	Status     EdgeStatus        `json:"status"`
	Properties map[string]string `json:"properties,omitempty"` // original_signal / confidence / decision / schema_version 等
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
}

// Neighbor 有界游走的一跳命中
type Neighbor struct {
	Node     *Node  `json:"node"`
	Relation string `json:"relation"`
	Hops     int    `json:"hops"`
	// Via 抵达该节点的上一跳节点 ID
	Via string `json:"via,omitempty"`
}

// TraverseOptions 有界游走参数
type TraverseOptions struct {
	MaxHops       int      // <=0 默认 2
	RelationTypes []string // 空则不限制关系类型
	Limit         int      // 返回上限，<=0 默认 64
	IncludeReview bool     // true 时包含 review 态边（默认只走 accepted）
}

// TokenMatch 词元匹配命中（keyword 候选源用）
type TokenMatch struct {
	Node    *Node
	Matched int // 命中的查询词元数
}

// NormalizeName 规范化名称：小写、去首尾空白、压缩内部空白。
// 中日韩文本不做分词处理，仅统一空白与大小写。
func NormalizeName(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	prevSpace := false
	for _, r := range lower {
		if unicode.IsSpace(r) {
			if !prevSpace {
				b.WriteRune(' ')
			}
			prevSpace = true
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
