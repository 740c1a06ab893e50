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

package feedback

import (
	"context"
	"strconv"

	"graphrag-platform/internal/graph"
	apperrors "graphrag-platform/pkg/errors"
	"graphrag-platform/pkg/log"
)

// Service 反馈操作的编排器。merge/correct/unlink 都作用于图与溯源日志，
// 复核队列的通过/驳回在这里落为边状态变更。
type Service struct {
	store  graph.Store
	log    Log
	queue  Queue
	logger *log.Logger
}

// NewService 创建反馈服务
func NewService(store graph.Store, logStore Log, queue Queue, logger *log.Logger) *Service {
	return &Service{store: store, log: logStore, queue: queue, logger: logger}
}

// Log 暴露溯源日志，链接器写入判定记录用
func (s *Service) Log() Log { return s.log }

// Queue 暴露复核队列
func (s *Service) Queue() Queue { return s.queue }

// Merge 把 mergeID 节点并入 keepID：边改挂、名称与别名并入、源节点删除。
// 返回合并后的保留节点。
func (s *Service) Merge(ctx context.Context, keepID, mergeID, reason string) (*graph.Node, error) {
	if keepID == mergeID {
		return nil, apperrors.Wrap(apperrors.ErrInvalidArg, "合并目标与源相同")
	}
	merged, err := s.store.GetNode(ctx, mergeID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetNode(ctx, keepID); err != nil {
		return nil, err
	}

	if err := s.store.RepointEdges(ctx, mergeID, keepID); err != nil {
		return nil, err
	}
	for _, alias := range append([]string{merged.Name}, merged.Aliases...) {
		if err := s.store.AddAlias(ctx, keepID, alias); err != nil {
			s.logger.Warn("合并别名注册失败", "keep", keepID, "alias", alias, "error", err.Error())
		}
	}
	if err := s.store.DeleteNode(ctx, mergeID); err != nil {
		return nil, err
	}

	s.logger.Info("节点已合并", "keep", keepID, "merged", mergeID, "reason", reason)
	return s.store.GetNode(ctx, keepID)
}

// Correct 修正节点字段，返回修正后的节点
func (s *Service) Correct(ctx context.Context, nodeID, field, value, reason string) (*graph.Node, error) {
	if err := s.store.UpdateNodeAttr(ctx, nodeID, field, value); err != nil {
		return nil, err
	}
	s.logger.Info("节点已修正", "node", nodeID, "field", field, "reason", reason)
	return s.store.GetNode(ctx, nodeID)
}

// Unlink 撤销一次已接受的链接判定：按溯源日志找到当时写入的边并删除。
// 判定记录保留，撤销本身也是可审计的历史。
func (s *Service) Unlink(ctx context.Context, matchID, reason string) error {
	rec, err := s.log.Get(ctx, matchID)
	if err != nil {
		return err
	}
	m := rec.Match
	if m == nil || m.Target == nil {
		return apperrors.Wrapf(apperrors.ErrInvalidArg, "判定 %s 无链接目标", matchID)
	}

	from := m.Target.Attributes["edge_from"]
	relType := m.Target.Attributes["edge_type"]
	if from == "" || relType == "" {
		return apperrors.Wrapf(apperrors.ErrInvalidArg, "判定 %s 未持久化为边", matchID)
	}
	if err := s.store.DeleteEdge(ctx, from, m.Target.ID, relType); err != nil {
		return err
	}
	s.logger.Info("链接已撤销", "match", matchID, "reason", reason)
	return nil
}

// ApproveReview 通过复核项：复核态判定此刻才落图为已接受边。
// 入队时不写边，图对读查询只暴露已确认的链接。
func (s *Service) ApproveReview(ctx context.Context, itemID string) (*ReviewItem, error) {
	item, err := s.queue.Resolve(ctx, itemID, ReviewApproved)
	if err != nil {
		return nil, err
	}
	m := item.Match
	if m == nil || m.Target == nil {
		return item, nil
	}
	nodeType := m.Target.NodeType
	if nodeType == "" {
		nodeType = item.ExpectedType
	}
	mention, err := s.store.UpsertNode(ctx, &graph.Node{
		Name:          m.Signal,
		Type:          nodeType,
		CreatedBy:     "feedback",
		SchemaVersion: graph.SchemaVersion,
	})
	if err != nil {
		s.logger.Warn("复核通过但提及节点写入失败", "item", itemID, "error", err.Error())
		return item, nil
	}
	if mention.ID == m.Target.ID {
		// 提及规范化后就是目标节点本身：登记别名即可
		if err := s.store.AddAlias(ctx, m.Target.ID, m.Signal); err != nil {
			s.logger.Warn("复核通过但别名注册失败", "item", itemID, "error", err.Error())
		}
		return item, nil
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
			"confidence":       formatScore(m.FusedScore),
			"decision":         "review_approved",
			"schema_version":   graph.SchemaVersion,
		},
	}
	if err := s.store.UpsertEdge(ctx, edge); err != nil {
		s.logger.Warn("复核通过但落边失败", "item", itemID, "error", err.Error())
	}
	return item, nil
}

// RejectReview 驳回复核项。入队时未落边，驳回只关闭队列项。
func (s *Service) RejectReview(ctx context.Context, itemID string) (*ReviewItem, error) {
	return s.queue.Resolve(ctx, itemID, ReviewRejected)
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
