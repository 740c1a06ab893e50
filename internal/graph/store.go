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
	"context"
	"fmt"

	"graphrag-platform/pkg/config"
)

// Store 知识图谱存储接口。所有写操作幂等：节点以规范化名称+类型为身份键，
// 边以 (from, to, rel_type) 为身份键，重复写入不产生副本。
type Store interface {
	// UpsertNode 幂等写入节点，返回规范节点（含已分配 ID）
	UpsertNode(ctx context.Context, node *Node) (*Node, error)
	// UpsertEdge 幂等写入边
	UpsertEdge(ctx context.Context, edge *Edge) error
	// GetNode 按 ID 读取节点
	GetNode(ctx context.Context, id string) (*Node, error)
	// NodesByIDs 批量按 ID 读取，跳过缺失项
	NodesByIDs(ctx context.Context, ids []string) ([]*Node, error)
	// FindByName 按名称或别名大小写不敏感精确匹配
	FindByName(ctx context.Context, name string) ([]*Node, error)
	// MatchTokens 词元匹配：返回名称/别名中命中任一词元的节点及命中数
	MatchTokens(ctx context.Context, tokens []string, limit int) ([]*TokenMatch, error)
	// Neighbors 从 startID 出发的有界游走（不含 startID 自身）
	Neighbors(ctx context.Context, startID string, opts TraverseOptions) ([]*Neighbor, error)
	// AddAlias 给节点追加别名，幂等
	AddAlias(ctx context.Context, nodeID, alias string) error
	// UpdateNodeAttr 修正节点字段：field 为 name 时改名，否则写入属性
	UpdateNodeAttr(ctx context.Context, nodeID, field, value string) error
	// RepointEdges 把 fromID 的所有边改挂到 toID（合并反馈用）
	RepointEdges(ctx context.Context, fromID, toID string) error
	// DeleteEdge 删除一条边
	DeleteEdge(ctx context.Context, from, to, relType string) error
	// DeleteNode 删除节点及其关联边
	DeleteNode(ctx context.Context, id string) error
	// UpdateEdgeStatus 修改边的治理状态（review -> accepted 等）
	UpdateEdgeStatus(ctx context.Context, from, to, relType string, status EdgeStatus) error
	// Close 释放底层连接
	Close() error
}

// NewStore 按配置创建图存储
func NewStore(ctx context.Context, cfg config.GraphConfig) (Store, error) {
	switch cfg.Type {
	case "memory", "":
		return NewMemoryStore(), nil
	case "postgres":
		return NewPgStore(ctx, cfg.DSN, cfg.PoolSize)
	default:
		return nil, fmt.Errorf("未知的图存储类型: %s", cfg.Type)
	}
}
