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
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "graphrag-platform/pkg/errors"
)

// MemoryStore 内存图存储，开发与测试用。
// 全局锁串行化同键写入，保证并发 upsert 幂等。
type MemoryStore struct {
	mu sync.RWMutex
	// nodes 按 ID 索引
	nodes map[string]*Node
	// byKey 身份键 (norm_name + "\x00" + type) -> node ID
	byKey map[string]string
	// out/in 邻接表，edgeKey -> *Edge
	edges map[string]*Edge
	out   map[string][]string // nodeID -> edgeKeys
	in    map[string][]string
}

// NewMemoryStore 创建内存图存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: make(map[string]*Node),
		byKey: make(map[string]string),
		edges: make(map[string]*Edge),
		out:   make(map[string][]string),
		in:    make(map[string][]string),
	}
}

func identityKey(normName, nodeType string) string {
	return normName + "\x00" + nodeType
}

func edgeKey(from, to, relType string) string {
	return from + "\x00" + to + "\x00" + relType
}

// UpsertNode 幂等写入：同名同类型节点复用既有 ID，属性与别名做并集合并
func (s *MemoryStore) UpsertNode(ctx context.Context, node *Node) (*Node, error) {
	if node == nil || strings.TrimSpace(node.Name) == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidArg, "节点名称为空")
	}
	norm := node.NormName
	if norm == "" {
		norm = NormalizeName(node.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := identityKey(norm, node.Type)
	if id, ok := s.byKey[key]; ok {
		existing := s.nodes[id]
		mergeNode(existing, node)
		existing.UpdatedAt = time.Now()
		return cloneNode(existing, s.degreeLocked(id)), nil
	}

	id := node.ID
	if id == "" {
		id = uuid.NewString()
	}
	stored := cloneNode(node, 0)
	stored.ID = id
	stored.NormName = norm
	if stored.SchemaVersion == "" {
		stored.SchemaVersion = SchemaVersion
	}
	stored.UpdatedAt = time.Now()
	s.nodes[id] = stored
	s.byKey[key] = id
	return cloneNode(stored, 0), nil
}

// UpsertEdge 幂等写入边；重复写入取较大权重，属性覆盖合并
func (s *MemoryStore) UpsertEdge(ctx context.Context, edge *Edge) error {
	if edge == nil || edge.From == "" || edge.To == "" || edge.Type == "" {
		return apperrors.Wrap(apperrors.ErrInvalidArg, "边缺少端点或关系类型")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[edge.From]; !ok {
		return apperrors.Wrapf(apperrors.ErrNotFound, "起点节点 %s 不存在", edge.From)
	}
	if _, ok := s.nodes[edge.To]; !ok {
		return apperrors.Wrapf(apperrors.ErrNotFound, "终点节点 %s 不存在", edge.To)
	}

	key := edgeKey(edge.From, edge.To, edge.Type)
	if existing, ok := s.edges[key]; ok {
		if edge.Weight > existing.Weight {
			existing.Weight = edge.Weight
		}
		if edge.Status != "" {
			existing.Status = edge.Status
		}
		for k, v := range edge.Properties {
			if existing.Properties == nil {
				existing.Properties = make(map[string]string)
			}
			existing.Properties[k] = v
		}
		existing.UpdatedAt = time.Now()
		return nil
	}

	stored := cloneEdge(edge)
	if stored.Status == "" {
		stored.Status = EdgeAccepted
	}
	stored.UpdatedAt = time.Now()
	s.edges[key] = stored
	s.out[edge.From] = append(s.out[edge.From], key)
	s.in[edge.To] = append(s.in[edge.To], key)
	return nil
}

// GetNode 按 ID 读取
func (s *MemoryStore) GetNode(ctx context.Context, id string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "节点 %s", id)
	}
	return cloneNode(n, s.degreeLocked(id)), nil
}

// NodesByIDs 批量读取，缺失项静默跳过
func (s *MemoryStore) NodesByIDs(ctx context.Context, ids []string) ([]*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := s.nodes[id]; ok {
			out = append(out, cloneNode(n, s.degreeLocked(id)))
		}
	}
	return out, nil
}

// FindByName 名称或别名大小写不敏感精确匹配，结果按 ID 排序保证确定性
func (s *MemoryStore) FindByName(ctx context.Context, name string) ([]*Node, error) {
	norm := NormalizeName(name)
	if norm == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Node
	for id, n := range s.nodes {
		if n.NormName == norm {
			out = append(out, cloneNode(n, s.degreeLocked(id)))
			continue
		}
		for _, a := range n.Aliases {
			if NormalizeName(a) == norm {
				out = append(out, cloneNode(n, s.degreeLocked(id)))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MatchTokens 词元命中：名称或别名包含任一词元即命中，按命中数降序、ID 升序
func (s *MemoryStore) MatchTokens(ctx context.Context, tokens []string, limit int) ([]*TokenMatch, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 32
	}
	normTokens := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if nt := NormalizeName(t); nt != "" {
			normTokens = append(normTokens, nt)
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*TokenMatch
	for id, n := range s.nodes {
		matched := 0
		for _, t := range normTokens {
			if nodeContainsToken(n, t) {
				matched++
			}
		}
		if matched > 0 {
			out = append(out, &TokenMatch{Node: cloneNode(n, s.degreeLocked(id)), Matched: matched})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Matched != out[j].Matched {
			return out[i].Matched > out[j].Matched
		}
		return out[i].Node.ID < out[j].Node.ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func nodeContainsToken(n *Node, token string) bool {
	if strings.Contains(n.NormName, token) {
		return true
	}
	for _, a := range n.Aliases {
		if strings.Contains(NormalizeName(a), token) {
			return true
		}
	}
	return false
}

// Neighbors 广度优先的有界游走，沿出边与入边双向扩展。
// review 态边默认跳过；同一节点只保留最先（即最短跳数）命中。
func (s *MemoryStore) Neighbors(ctx context.Context, startID string, opts TraverseOptions) ([]*Neighbor, error) {
	maxHops := opts.MaxHops
	if maxHops <= 0 {
		maxHops = 2
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 64
	}
	allowed := make(map[string]bool, len(opts.RelationTypes))
	for _, r := range opts.RelationTypes {
		allowed[r] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.nodes[startID]; !ok {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "节点 %s", startID)
	}

	visited := map[string]bool{startID: true}
	frontier := []string{startID}
	var out []*Neighbor

	for hop := 1; hop <= maxHops && len(frontier) > 0; hop++ {
		// 每跳内按 ID 排序，保证遍历顺序确定
		sort.Strings(frontier)
		var next []string
		for _, cur := range frontier {
			for _, ek := range append(append([]string{}, s.out[cur]...), s.in[cur]...) {
				e := s.edges[ek]
				if e == nil {
					continue
				}
				if e.Status == EdgeReview && !opts.IncludeReview {
					continue
				}
				if len(allowed) > 0 && !allowed[e.Type] {
					continue
				}
				other := e.To
				if other == cur {
					other = e.From
				}
				if visited[other] {
					continue
				}
				visited[other] = true
				n := s.nodes[other]
				if n == nil {
					continue
				}
				out = append(out, &Neighbor{
					Node:     cloneNode(n, s.degreeLocked(other)),
					Relation: e.Type,
					Hops:     hop,
					Via:      cur,
				})
				if len(out) >= limit {
					return out, nil
				}
				next = append(next, other)
			}
		}
		frontier = next
	}
	return out, nil
}

// AddAlias 幂等追加别名
func (s *MemoryStore) AddAlias(ctx context.Context, nodeID, alias string) error {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return apperrors.Wrap(apperrors.ErrInvalidArg, "别名为空")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[nodeID]
	if !ok {
		return apperrors.Wrapf(apperrors.ErrNotFound, "节点 %s", nodeID)
	}
	norm := NormalizeName(alias)
	for _, a := range n.Aliases {
		if NormalizeName(a) == norm {
			return nil
		}
	}
	n.Aliases = append(n.Aliases, alias)
	n.UpdatedAt = time.Now()
	return nil
}

// UpdateNodeAttr 修正节点字段。改名会同步规范化名称与身份键，
// 旧名称保留为别名以免历史指称失联。
func (s *MemoryStore) UpdateNodeAttr(ctx context.Context, nodeID, field, value string) error {
	value = strings.TrimSpace(value)
	if field == "" || value == "" {
		return apperrors.Wrap(apperrors.ErrInvalidArg, "字段或取值为空")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[nodeID]
	if !ok {
		return apperrors.Wrapf(apperrors.ErrNotFound, "节点 %s", nodeID)
	}
	switch field {
	case "name":
		oldName, oldKey := n.Name, identityKey(n.NormName, n.Type)
		n.Name = value
		n.NormName = NormalizeName(value)
		delete(s.byKey, oldKey)
		s.byKey[identityKey(n.NormName, n.Type)] = nodeID
		n.Aliases = append(n.Aliases, oldName)
	case "type":
		oldKey := identityKey(n.NormName, n.Type)
		n.Type = value
		delete(s.byKey, oldKey)
		s.byKey[identityKey(n.NormName, n.Type)] = nodeID
	default:
		if n.Attributes == nil {
			n.Attributes = make(map[string]string)
		}
		n.Attributes[field] = value
	}
	n.UpdatedAt = time.Now()
	return nil
}

// RepointEdges 把 fromID 的全部边改挂到 toID，与既有边冲突时合并
func (s *MemoryStore) RepointEdges(ctx context.Context, fromID, toID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[toID]; !ok {
		return apperrors.Wrapf(apperrors.ErrNotFound, "目标节点 %s", toID)
	}

	moved := make([]*Edge, 0, len(s.out[fromID])+len(s.in[fromID]))
	for _, ek := range s.out[fromID] {
		if e := s.edges[ek]; e != nil {
			c := cloneEdge(e)
			c.From = toID
			moved = append(moved, c)
			s.removeEdgeLocked(ek)
		}
	}
	for _, ek := range s.in[fromID] {
		if e := s.edges[ek]; e != nil {
			c := cloneEdge(e)
			c.To = toID
			moved = append(moved, c)
			s.removeEdgeLocked(ek)
		}
	}
	delete(s.out, fromID)
	delete(s.in, fromID)

	for _, e := range moved {
		if e.From == e.To {
			continue // 合并造成的自环直接丢弃
		}
		key := edgeKey(e.From, e.To, e.Type)
		if existing, ok := s.edges[key]; ok {
			if e.Weight > existing.Weight {
				existing.Weight = e.Weight
			}
			continue
		}
		s.edges[key] = e
		s.out[e.From] = append(s.out[e.From], key)
		s.in[e.To] = append(s.in[e.To], key)
	}
	return nil
}

// DeleteEdge 删除一条边
func (s *MemoryStore) DeleteEdge(ctx context.Context, from, to, relType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := edgeKey(from, to, relType)
	if _, ok := s.edges[key]; !ok {
		return apperrors.Wrapf(apperrors.ErrNotFound, "边 %s-[%s]->%s", from, relType, to)
	}
	s.removeEdgeLocked(key)
	return nil
}

// DeleteNode 删除节点及其全部关联边
func (s *MemoryStore) DeleteNode(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return apperrors.Wrapf(apperrors.ErrNotFound, "节点 %s", id)
	}
	for _, ek := range append(append([]string{}, s.out[id]...), s.in[id]...) {
		s.removeEdgeLocked(ek)
	}
	delete(s.out, id)
	delete(s.in, id)
	delete(s.byKey, identityKey(n.NormName, n.Type))
	delete(s.nodes, id)
	return nil
}

// UpdateEdgeStatus 修改边的治理状态
func (s *MemoryStore) UpdateEdgeStatus(ctx context.Context, from, to, relType string, status EdgeStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.edges[edgeKey(from, to, relType)]
	if !ok {
		return apperrors.Wrapf(apperrors.ErrNotFound, "边 %s-[%s]->%s", from, relType, to)
	}
	e.Status = status
	e.UpdatedAt = time.Now()
	return nil
}

// Close 无操作
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) removeEdgeLocked(key string) {
	e, ok := s.edges[key]
	if !ok {
		return
	}
	s.out[e.From] = removeString(s.out[e.From], key)
	s.in[e.To] = removeString(s.in[e.To], key)
	delete(s.edges, key)
}

// degreeLocked 已接受边的度数；调用方需持有锁
func (s *MemoryStore) degreeLocked(id string) int {
	d := 0
	for _, ek := range s.out[id] {
		if e := s.edges[ek]; e != nil && e.Status == EdgeAccepted {
			d++
		}
	}
	for _, ek := range s.in[id] {
		if e := s.edges[ek]; e != nil && e.Status == EdgeAccepted {
			d++
		}
	}
	return d
}

func removeString(ss []string, target string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}

func mergeNode(dst, src *Node) {
	for _, a := range src.Aliases {
		dup := false
		for _, b := range dst.Aliases {
			if NormalizeName(a) == NormalizeName(b) {
				dup = true
				break
			}
		}
		if !dup {
			dst.Aliases = append(dst.Aliases, a)
		}
	}
	for k, v := range src.Attributes {
		if dst.Attributes == nil {
			dst.Attributes = make(map[string]string)
		}
		if _, ok := dst.Attributes[k]; !ok {
			dst.Attributes[k] = v
		}
	}
}

func cloneNode(n *Node, degree int) *Node {
	c := *n
	c.Degree = degree
	c.Aliases = append([]string(nil), n.Aliases...)
	if n.Attributes != nil {
		c.Attributes = make(map[string]string, len(n.Attributes))
		for k, v := range n.Attributes {
			c.Attributes[k] = v
		}
	}
	return &c
}

func cloneEdge(e *Edge) *Edge {
	c := *e
	if e.Properties != nil {
		c.Properties = make(map[string]string, len(e.Properties))
		for k, v := range e.Properties {
			c.Properties[k] = v
		}
	}
	return &c
}
