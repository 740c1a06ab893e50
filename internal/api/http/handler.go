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

// Package http GraphRAG 平台的 HTTP 外观：问答检索、chunk 入队、
// 人工复核与反馈回放。
package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cloudwego/hertz/pkg/app"

	"graphrag-platform/internal/feedback"
	"graphrag-platform/internal/graph"
	"graphrag-platform/internal/resolve/retrieval"
	"graphrag-platform/internal/storage/chunks"
	apperrors "graphrag-platform/pkg/errors"
	"graphrag-platform/pkg/log"
	"graphrag-platform/pkg/metrics"
)

// Handler HTTP 处理器
type Handler struct {
	answerer *retrieval.Answerer
	chunks   chunks.Store
	feedback *feedback.Service
	store    graph.Store
	logger   *log.Logger
}

// NewHandler 创建 HTTP 处理器
func NewHandler(answerer *retrieval.Answerer, chunkStore chunks.Store, fb *feedback.Service, store graph.Store, logger *log.Logger) *Handler {
	return &Handler{
		answerer: answerer,
		chunks:   chunkStore,
		feedback: fb,
		store:    store,
		logger:   logger,
	}
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(ctx context.Context, c *app.RequestContext) {
	c.JSON(http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"service":   "graphrag-api",
	})
}

// SystemMetrics Prometheus 文本格式指标
func (h *Handler) SystemMetrics(ctx context.Context, c *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		c.JSON(http.StatusInternalServerError, map[string]any{"error": "采集指标失败"})
		return
	}
	c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}

// Query 问答检索
func (h *Handler) Query(ctx context.Context, c *app.RequestContext) {
	var req struct {
		Question string `json:"question"`
		Mode     string `json:"mode"`
		TopK     int    `json:"top_k"`
	}
	if err := c.BindJSON(&req); err != nil || req.Question == "" {
		c.JSON(http.StatusBadRequest, map[string]any{"error": "question 不能为空"})
		return
	}
	switch req.Mode {
	case "", retrieval.ModeLocal, retrieval.ModeGlobal, retrieval.ModeHybrid:
	default:
		c.JSON(http.StatusBadRequest, map[string]any{"error": "mode 必须为 local/global/hybrid"})
		return
	}

	ans, err := h.answerer.Answer(ctx, req.Question, req.Mode, req.TopK)
	if err != nil {
		h.logger.Error("问答检索失败", "error", err.Error())
		c.JSON(http.StatusInternalServerError, map[string]any{"error": "检索失败"})
		return
	}
	c.JSON(http.StatusOK, map[string]any{
		"answer": map[string]any{
			"conclusion":      ans.Conclusion,
			"reasoning_chain": ans.ReasoningChain,
			"confidence":      ans.Confidence,
			"caveats":         ans.Caveats,
		},
		"cited_evidence_ids": ans.CitedEvidenceIDs,
		"relevant_themes":    ans.RelevantThemes,
		"evidence":           ans.Evidence,
	})
}

// EnqueueChunks 提交 chunk 等待消解
func (h *Handler) EnqueueChunks(ctx context.Context, c *app.RequestContext) {
	var req struct {
		Chunks []struct {
			ID          string   `json:"id"`
			DocID       string   `json:"doc_id"`
			Text        string   `json:"text"`
			SectionPath []string `json:"section_path"`
		} `json:"chunks"`
	}
	if err := c.BindJSON(&req); err != nil || len(req.Chunks) == 0 {
		c.JSON(http.StatusBadRequest, map[string]any{"error": "chunks 不能为空"})
		return
	}

	accepted := 0
	for _, in := range req.Chunks {
		if in.ID == "" || in.Text == "" {
			continue
		}
		err := h.chunks.Put(ctx, &chunks.Chunk{
			ID:          in.ID,
			DocID:       in.DocID,
			Text:        in.Text,
			SectionPath: in.SectionPath,
		})
		if err != nil {
			h.logger.Warn("chunk 入队失败", "chunk_id", in.ID, "error", err.Error())
			continue
		}
		accepted++
	}
	c.JSON(http.StatusOK, map[string]any{"accepted": accepted, "total": len(req.Chunks)})
}

// PendingReviews 待复核队列
func (h *Handler) PendingReviews(ctx context.Context, c *app.RequestContext) {
	limit := 50
	items, err := h.feedback.Queue().Pending(ctx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, map[string]any{"error": "读取复核队列失败"})
		return
	}
	if items == nil {
		items = []*feedback.ReviewItem{}
	}
	c.JSON(http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

// ResolveReview 处理复核项（approve / reject）
func (h *Handler) ResolveReview(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	var req struct {
		Action string `json:"action"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, map[string]any{"error": "请求体错误"})
		return
	}

	var item *feedback.ReviewItem
	var err error
	switch req.Action {
	case "approve":
		item, err = h.feedback.ApproveReview(ctx, id)
	case "reject":
		item, err = h.feedback.RejectReview(ctx, id)
	default:
		c.JSON(http.StatusBadRequest, map[string]any{"error": "action 必须为 approve 或 reject"})
		return
	}
	if err != nil {
		c.JSON(feedbackStatus(err), map[string]any{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, item)
}

// GetEntity 节点详情与一跳关系（含治理元数据）
func (h *Handler) GetEntity(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	node, err := h.store.GetNode(ctx, id)
	if err != nil {
		c.JSON(http.StatusNotFound, map[string]any{"error": "实体不存在"})
		return
	}
	neighbors, err := h.store.Neighbors(ctx, id, graph.TraverseOptions{MaxHops: 1})
	if err != nil {
		neighbors = nil
	}
	c.JSON(http.StatusOK, map[string]any{"entity": node, "relations": neighbors})
}

// MergeFeedback 合并重复实体
func (h *Handler) MergeFeedback(ctx context.Context, c *app.RequestContext) {
	var req struct {
		KeepID  string `json:"keep_id"`
		MergeID string `json:"merge_id"`
		Reason  string `json:"reason"`
	}
	if err := c.BindJSON(&req); err != nil || req.KeepID == "" || req.MergeID == "" {
		c.JSON(http.StatusBadRequest, map[string]any{"error": "keep_id 与 merge_id 不能为空"})
		return
	}
	node, err := h.feedback.Merge(ctx, req.KeepID, req.MergeID, req.Reason)
	if err != nil {
		c.JSON(feedbackStatus(err), map[string]any{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, map[string]any{"entity": node})
}

// CorrectFeedback 修正实体字段
func (h *Handler) CorrectFeedback(ctx context.Context, c *app.RequestContext) {
	var req struct {
		NodeID string `json:"node_id"`
		Field  string `json:"field"`
		Value  string `json:"value"`
		Reason string `json:"reason"`
	}
	if err := c.BindJSON(&req); err != nil || req.NodeID == "" || req.Field == "" {
		c.JSON(http.StatusBadRequest, map[string]any{"error": "node_id 与 field 不能为空"})
		return
	}
	node, err := h.feedback.Correct(ctx, req.NodeID, req.Field, req.Value, req.Reason)
	if err != nil {
		c.JSON(feedbackStatus(err), map[string]any{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, map[string]any{"entity": node})
}

// UnlinkFeedback 撤销一次链接判定
func (h *Handler) UnlinkFeedback(ctx context.Context, c *app.RequestContext) {
	var req struct {
		MatchID string `json:"match_id"`
		Reason  string `json:"reason"`
	}
	if err := c.BindJSON(&req); err != nil || req.MatchID == "" {
		c.JSON(http.StatusBadRequest, map[string]any{"error": "match_id 不能为空"})
		return
	}
	if err := h.feedback.Unlink(ctx, req.MatchID, req.Reason); err != nil {
		c.JSON(feedbackStatus(err), map[string]any{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, map[string]any{"status": "ok"})
}

// feedbackStatus 反馈错误到 HTTP 状态码
func feedbackStatus(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrNotFound), errors.Is(err, feedback.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, feedback.ErrAlreadyClosed):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrInvalidArg):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
