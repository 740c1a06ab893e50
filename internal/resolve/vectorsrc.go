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
	"fmt"

	"graphrag-platform/internal/graph"
	"graphrag-platform/internal/model/embedding"
	"graphrag-platform/internal/storage/vector"
)

// VectorSource 向量相似度候选源：查询文本向量化后在实体索引做近邻检索，
// 低于最低相似度的候选直接丢弃，分数即相似度。
type VectorSource struct {
	embedder      embedding.Embedder
	index         vector.Store
	graphStore    graph.Store
	indexName     string
	minSimilarity float64
}

// NewVectorSource 创建向量候选源；minSimilarity <=0 默认 0.75
func NewVectorSource(embedder embedding.Embedder, index vector.Store, graphStore graph.Store, indexName string, minSimilarity float64) *VectorSource {
	if minSimilarity <= 0 {
		minSimilarity = 0.75
	}
	if indexName == "" {
		indexName = vector.EntityIndex
	}
	return &VectorSource{
		embedder:      embedder,
		index:         index,
		graphStore:    graphStore,
		indexName:     indexName,
		minSimilarity: minSimilarity,
	}
}

// Name 实现 Source
func (s *VectorSource) Name() string { return SourceVector }

// Generate 实现 Source
func (s *VectorSource) Generate(ctx context.Context, req *Request, limit int) ([]*Candidate, error) {
	vectors, err := s.embedder.Embed(ctx, []string{req.Text})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: embedding 返回 %d 条", ErrMalformedResponse, len(vectors))
	}

	hits, err := s.index.Search(ctx, s.indexName, vectors[0], &vector.SearchOptions{
		TopK:      limit,
		Threshold: s.minSimilarity,
	})
	if err != nil {
		return nil, err
	}

	out := make([]*Candidate, 0, len(hits))
	for _, hit := range hits {
		nodeID := hit.Metadata["node_id"]
		if nodeID == "" {
			nodeID = hit.ID
		}
		c := &Candidate{
			ID:          nodeID,
			DisplayText: hit.Metadata["name"],
			Source:      SourceVector,
			SourceScore: hit.Score,
			NodeType:    hit.Metadata["node_type"],
		}
		// 命中节点补全度数与展示名，缺失的节点不致命
		if n, err := s.graphStore.GetNode(ctx, nodeID); err == nil {
			c.DisplayText = n.Name
			c.NodeType = n.Type
			c.Degree = n.Degree
			c.Attributes = n.Attributes
		}
		out = append(out, c)
	}
	return out, nil
}
