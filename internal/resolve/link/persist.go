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

package link

import (
	"context"
	"errors"
	"strconv"

	"graphrag-platform/internal/feedback"
	"graphrag-platform/internal/graph"
	"graphrag-platform/internal/resolve"
)

// persist 按判定档位落盘。所有写操作幂等，同一判定回放不产生副本：
//
//	accept => 提及节点 + accepted 边（或同一节点时注册别名）
//	review => 只入复核队列，图上不留痕
//	nil    => 新实体节点
//
// 每个档位都追加溯源日志。
func (l *Linker) persist(ctx context.Context, chunkID string, req *resolve.Request, m *resolve.Match) error {
	switch m.Decision {
	case resolve.DecisionAccept:
		if err := l.persistAccepted(ctx, req, m); err != nil {
			return err
		}
	case resolve.DecisionReview:
		if err := l.queue.Enqueue(ctx, &feedback.ReviewItem{
			ID:           m.RequestID,
			ChunkID:      chunkID,
			ExpectedType: req.ExpectedType,
			Match:        m,
			Reason:       reviewReason(m),
		}); err != nil {
			return err
		}
	case resolve.DecisionNil:
		if err := l.persistNewEntity(ctx, req); err != nil {
			return err
		}
	}

	return l.log.Append(ctx, &feedback.Record{
		ID:      m.RequestID,
		ChunkID: chunkID,
		Usecase: resolve.UsecaseLinking,
		Match:   m,
	})
}

func (l *Linker) persistAccepted(ctx context.Context, req *resolve.Request, m *resolve.Match) error {
	nodeType := m.Target.NodeType
	if nodeType == "" {
		nodeType = req.ExpectedType
	}
	mention, err := l.store.UpsertNode(ctx, &graph.Node{
		Name:          req.Text,
		Type:          nodeType,
		CreatedBy:     "linker",
		SchemaVersion: graph.SchemaVersion,
	})
	if err != nil {
		return err
	}

	if mention.ID == m.Target.ID {
		// 提及规范化后就是目标节点本身：登记别名即可
		return l.store.AddAlias(ctx, m.Target.ID, req.Text)
	}

	edge := &graph.Edge{
		From:   mention.ID,
		To:     m.Target.ID,
		Type:   graph.RelLinksTo,
		Weight: m.FusedScore,
		Status: graph.EdgeAccepted,
		Properties: map[string]string{
			"original_signal":  m.Signal,
			"canonical_target": m.Target.ID,
			"confidence":       strconv.FormatFloat(m.FusedScore, 'f', 4, 64),
			"decision":         string(m.Decision),
			"schema_version":   graph.SchemaVersion,
		},
	}
	if err := l.store.UpsertEdge(ctx, edge); err != nil {
		return err
	}

	// 撤销反馈按这两个属性回放到当时写入的边
	if m.Target.Attributes == nil {
		m.Target.Attributes = make(map[string]string)
	}
	m.Target.Attributes["edge_from"] = mention.ID
	m.Target.Attributes["edge_type"] = graph.RelLinksTo
	return nil
}

func (l *Linker) persistNewEntity(ctx context.Context, req *resolve.Request) error {
	nodeType := req.ExpectedType
	if nodeType == "" {
		nodeType = "concept"
	}
	_, err := l.store.UpsertNode(ctx, &graph.Node{
		Name:          req.Text,
		Type:          nodeType,
		CreatedBy:     "linker",
		SchemaVersion: graph.SchemaVersion,
	})
	return err
}

func reviewReason(m *resolve.Match) string {
	if errors.Is(resolve.AmbiguityCause(m), resolve.ErrAmbiguousDecision) {
		return "ambiguity"
	}
	return "score_band"
}
