package chunks

import (
	"context"
	"time"
)

// ChunkStatus chunk 处理状态
type ChunkStatus string

const (
	// StatusPending 已接收，等待指代消解
	StatusPending ChunkStatus = "pending"
	// StatusProcessing 已被 worker 领取
	StatusProcessing ChunkStatus = "processing"
	// StatusResolved 消解完成
	StatusResolved ChunkStatus = "resolved"
	// StatusFailed 消解失败（可重新入队）
	StatusFailed ChunkStatus = "failed"
)

// Chunk 文档切片。ResolvedText 为指代消解后的改写文本，
// Strategy 记录产出它的策略（rewrite / local / alias_only / skip）。
type Chunk struct {
	ID           string            `json:"id"`
	DocID        string            `json:"doc_id"`
	Text         string            `json:"text"`
	ResolvedText string            `json:"resolved_text,omitempty"`
	Strategy     string            `json:"strategy,omitempty"`
	SectionPath  []string          `json:"section_path,omitempty"`
	AliasMap     map[string]string `json:"alias_map,omitempty"`
	Status       ChunkStatus       `json:"status"`
	FailReason   string            `json:"fail_reason,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Store chunk 存储接口
type Store interface {
	// Put 幂等写入；同 ID 重复提交且已 resolved 的不回退状态
	Put(ctx context.Context, chunk *Chunk) error
	// Get 按 ID 读取
	Get(ctx context.Context, id string) (*Chunk, error)
	// ByDoc 按文档读取全部 chunk，按 ID 排序
	ByDoc(ctx context.Context, docID string) ([]*Chunk, error)
	// ClaimPending 领取至多 limit 条 pending chunk 并置为 processing。
	// 并发 worker 间互斥：同一条 chunk 只会被领取一次。
	ClaimPending(ctx context.Context, limit int) ([]*Chunk, error)
	// MarkResolved 写入消解结果并置为 resolved
	MarkResolved(ctx context.Context, id, resolvedText, strategy string, aliasMap map[string]string) error
	// MarkFailed 置为 failed 并记录原因
	MarkFailed(ctx context.Context, id, reason string) error
	// Requeue 把 failed/processing 的 chunk 重新置为 pending
	Requeue(ctx context.Context, id string) error
	// Close 释放连接
	Close() error
}
