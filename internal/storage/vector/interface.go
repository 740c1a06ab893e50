package vector

import (
	"context"
)

// Store 向量索引接口。候选源与证据检索共用：
// 实体索引存节点 embedding，claim 索引存证据句 embedding。
type Store interface {
	// Create 创建向量索引
	Create(ctx context.Context, index *Index) error
	// Upsert 写入向量，同 ID 覆盖（幂等）
	Upsert(ctx context.Context, indexName string, vectors []*Vector) error
	// Search 相似度检索，结果按得分降序、ID 升序
	Search(ctx context.Context, indexName string, query []float64, options *SearchOptions) ([]*SearchResult, error)
	// Get 根据 ID 获取向量
	Get(ctx context.Context, indexName string, id string) (*Vector, error)
	// Delete 删除向量
	Delete(ctx context.Context, indexName string, id string) error
	// DeleteIndex 删除索引
	DeleteIndex(ctx context.Context, indexName string) error
	// ListIndexes 列出所有索引
	ListIndexes(ctx context.Context) ([]string, error)
	// Close 关闭存储连接
	Close() error
}

// Index 向量索引
type Index struct {
	Name      string            `json:"name"`
	Dimension int               `json:"dimension"`
	Distance  string            `json:"distance"` // cosine | euclidean
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Vector 向量数据；Metadata 携带 node_id / chunk_id / doc_id 等关联键
type Vector struct {
	ID       string            `json:"id"`
	Values   []float64         `json:"values"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SearchOptions 检索参数
type SearchOptions struct {
	TopK      int               `json:"top_k"`
	Filter    map[string]string `json:"filter,omitempty"` // 元数据等值过滤
	Threshold float64           `json:"threshold"`        // 低于该相似度的结果丢弃
}

// SearchResult 检索命中
type SearchResult struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
