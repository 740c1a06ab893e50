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
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "graphrag-platform/pkg/errors"
)

// pgStore PostgreSQL 实现。
// 表结构：
//
//	graph_nodes(id, name, norm_name, node_type, aliases jsonb, attrs jsonb,
//	            created_by, schema_version, updated_at,
//	            UNIQUE(norm_name, node_type))
//	graph_edges(from_id, to_id, rel_type, weight, status, props jsonb, updated_at,
//	            PRIMARY KEY(from_id, to_id, rel_type))
type pgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore 创建 PostgreSQL 图存储；poolSize <=0 时用 pgxpool 默认值
func NewPgStore(ctx context.Context, dsn string, poolSize int) (Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if poolSize > 0 {
		cfg.MaxConns = int32(poolSize)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &pgStore{pool: pool}, nil
}

func (s *pgStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *pgStore) UpsertNode(ctx context.Context, node *Node) (*Node, error) {
	if node == nil || strings.TrimSpace(node.Name) == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidArg, "节点名称为空")
	}
	norm := node.NormName
	if norm == "" {
		norm = NormalizeName(node.Name)
	}
	id := node.ID
	if id == "" {
		id = uuid.NewString()
	}
	schemaVer := node.SchemaVersion
	if schemaVer == "" {
		schemaVer = SchemaVersion
	}
	aliases, _ := json.Marshal(node.Aliases)
	attrs, _ := json.Marshal(node.Attributes)

	// 冲突时保留既有 id/name，别名并集与属性补全由 jsonb 合并完成
	row := s.pool.QueryRow(ctx, `
		INSERT INTO graph_nodes (id, name, norm_name, node_type, aliases, attrs, created_by, schema_version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (norm_name, node_type) DO UPDATE SET
			aliases = (
				SELECT COALESCE(jsonb_agg(DISTINCT a), '[]'::jsonb)
				FROM jsonb_array_elements(graph_nodes.aliases || EXCLUDED.aliases) AS a
			),
			attrs = EXCLUDED.attrs || graph_nodes.attrs,
			updated_at = EXCLUDED.updated_at
		RETURNING id, name, norm_name, node_type, aliases, attrs, created_by, schema_version, updated_at`,
		id, node.Name, norm, node.Type, aliases, attrs, node.CreatedBy, schemaVer, time.Now())
	return scanNode(row)
}

func (s *pgStore) UpsertEdge(ctx context.Context, edge *Edge) error {
	if edge == nil || edge.From == "" || edge.To == "" || edge.Type == "" {
		return apperrors.Wrap(apperrors.ErrInvalidArg, "边缺少端点或关系类型")
	}
	status := edge.Status
	if status == "" {
		status = EdgeAccepted
	}
	props, _ := json.Marshal(edge.Properties)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO graph_edges (from_id, to_id, rel_type, weight, status, props, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (from_id, to_id, rel_type) DO UPDATE SET
			weight = GREATEST(graph_edges.weight, EXCLUDED.weight),
			status = EXCLUDED.status,
			props = graph_edges.props || EXCLUDED.props,
			updated_at = EXCLUDED.updated_at`,
		edge.From, edge.To, edge.Type, edge.Weight, string(status), props, time.Now())
	return err
}

func (s *pgStore) GetNode(ctx context.Context, id string) (*Node, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, norm_name, node_type, aliases, attrs, created_by, schema_version, updated_at
		FROM graph_nodes WHERE id = $1`, id)
	n, err := scanNode(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Wrapf(apperrors.ErrNotFound, "节点 %s", id)
		}
		return nil, err
	}
	n.Degree, err = s.degree(ctx, id)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (s *pgStore) NodesByIDs(ctx context.Context, ids []string) ([]*Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, norm_name, node_type, aliases, attrs, created_by, schema_version, updated_at
		FROM graph_nodes WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNodes(rows)
}

func (s *pgStore) FindByName(ctx context.Context, name string) ([]*Node, error) {
	norm := NormalizeName(name)
	if norm == "" {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, norm_name, node_type, aliases, attrs, created_by, schema_version, updated_at
		FROM graph_nodes
		WHERE norm_name = $1
		   OR EXISTS (
				SELECT 1 FROM jsonb_array_elements_text(aliases) AS a
				WHERE lower(trim(a)) = $1
		   )
		ORDER BY id`, norm)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	nodes, err := scanNodes(rows)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if n.Degree, err = s.degree(ctx, n.ID); err != nil {
			return nil, err
		}
	}
	return nodes, nil
}

func (s *pgStore) MatchTokens(ctx context.Context, tokens []string, limit int) ([]*TokenMatch, error) {
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
	rows, err := s.pool.Query(ctx, `
		SELECT n.id, n.name, n.norm_name, n.node_type, n.aliases, n.attrs, n.created_by, n.schema_version, n.updated_at,
		       (SELECT count(*) FROM unnest($1::text[]) AS t
		        WHERE n.norm_name LIKE '%' || t || '%'
		           OR EXISTS (SELECT 1 FROM jsonb_array_elements_text(n.aliases) AS a
		                      WHERE lower(a) LIKE '%' || t || '%')) AS matched
		FROM graph_nodes n
		WHERE (SELECT count(*) FROM unnest($1::text[]) AS t
		       WHERE n.norm_name LIKE '%' || t || '%'
		          OR EXISTS (SELECT 1 FROM jsonb_array_elements_text(n.aliases) AS a
		                     WHERE lower(a) LIKE '%' || t || '%')) > 0
		ORDER BY matched DESC, n.id
		LIMIT $2`, normTokens, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*TokenMatch
	for rows.Next() {
		n, matched, err := scanNodeWithCount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, &TokenMatch{Node: n, Matched: matched})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, m := range out {
		if m.Node.Degree, err = s.degree(ctx, m.Node.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Neighbors 逐跳扩展：每跳一条 from_id/to_id = ANY(frontier) 查询，跳数上限很小（默认 2）
func (s *pgStore) Neighbors(ctx context.Context, startID string, opts TraverseOptions) ([]*Neighbor, error) {
	maxHops := opts.MaxHops
	if maxHops <= 0 {
		maxHops = 2
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 64
	}

	if _, err := s.GetNode(ctx, startID); err != nil {
		return nil, err
	}

	statuses := []string{string(EdgeAccepted)}
	if opts.IncludeReview {
		statuses = append(statuses, string(EdgeReview))
	}

	visited := map[string]bool{startID: true}
	frontier := []string{startID}
	var out []*Neighbor

	for hop := 1; hop <= maxHops && len(frontier) > 0; hop++ {
		query := `
			SELECT from_id, to_id, rel_type FROM graph_edges
			WHERE (from_id = ANY($1) OR to_id = ANY($1)) AND status = ANY($2)`
		args := []any{frontier, statuses}
		if len(opts.RelationTypes) > 0 {
			query += ` AND rel_type = ANY($3)`
			args = append(args, opts.RelationTypes)
		}
		query += ` ORDER BY from_id, to_id, rel_type`

		rows, err := s.pool.Query(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		type hit struct {
			id, relation, via string
		}
		var hits []hit
		inFrontier := make(map[string]bool, len(frontier))
		for _, f := range frontier {
			inFrontier[f] = true
		}
		for rows.Next() {
			var from, to, rel string
			if err := rows.Scan(&from, &to, &rel); err != nil {
				rows.Close()
				return nil, err
			}
			other, via := to, from
			if !inFrontier[from] {
				other, via = from, to
			}
			if visited[other] {
				continue
			}
			visited[other] = true
			hits = append(hits, hit{id: other, relation: rel, via: via})
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}

		var next []string
		for _, h := range hits {
			n, err := s.GetNode(ctx, h.id)
			if err != nil {
				if errors.Is(err, apperrors.ErrNotFound) {
					continue
				}
				return nil, err
			}
			out = append(out, &Neighbor{Node: n, Relation: h.relation, Hops: hop, Via: h.via})
			if len(out) >= limit {
				return out, nil
			}
			next = append(next, h.id)
		}
		frontier = next
	}
	return out, nil
}

func (s *pgStore) AddAlias(ctx context.Context, nodeID, alias string) error {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return apperrors.Wrap(apperrors.ErrInvalidArg, "别名为空")
	}
	cmd, err := s.pool.Exec(ctx, `
		UPDATE graph_nodes
		SET aliases = aliases || to_jsonb($2::text), updated_at = now()
		WHERE id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM jsonb_array_elements_text(aliases) AS a
			WHERE lower(trim(a)) = lower(trim($2)))`,
		nodeID, alias)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		// 节点不存在或别名已有；区分这两种情况
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM graph_nodes WHERE id = $1)`, nodeID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return apperrors.Wrapf(apperrors.ErrNotFound, "节点 %s", nodeID)
		}
	}
	return nil
}

func (s *pgStore) UpdateNodeAttr(ctx context.Context, nodeID, field, value string) error {
	value = strings.TrimSpace(value)
	if field == "" || value == "" {
		return apperrors.Wrap(apperrors.ErrInvalidArg, "字段或取值为空")
	}
	var cmd pgconn.CommandTag
	var err error
	switch field {
	case "name":
		// 旧名称降级为别名
		cmd, err = s.pool.Exec(ctx, `
			UPDATE graph_nodes
			SET aliases = aliases || to_jsonb(name), name = $2,
			    norm_name = lower(trim($2)), updated_at = now()
			WHERE id = $1`, nodeID, value)
	case "type":
		cmd, err = s.pool.Exec(ctx,
			`UPDATE graph_nodes SET node_type = $2, updated_at = now() WHERE id = $1`, nodeID, value)
	default:
		cmd, err = s.pool.Exec(ctx, `
			UPDATE graph_nodes
			SET attrs = attrs || jsonb_build_object($2::text, $3::text), updated_at = now()
			WHERE id = $1`, nodeID, field, value)
	}
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return apperrors.Wrapf(apperrors.ErrNotFound, "节点 %s", nodeID)
	}
	return nil
}

func (s *pgStore) RepointEdges(ctx context.Context, fromID, toID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM graph_nodes WHERE id = $1)`, toID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return apperrors.Wrapf(apperrors.ErrNotFound, "目标节点 %s", toID)
	}

	// 与既有边冲突的改挂直接删除旧边（权重较低时原边胜出是可接受的合并语义）
	if _, err := tx.Exec(ctx, `
		DELETE FROM graph_edges e WHERE e.from_id = $1 AND EXISTS (
			SELECT 1 FROM graph_edges x WHERE x.from_id = $2 AND x.to_id = e.to_id AND x.rel_type = e.rel_type)`,
		fromID, toID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		DELETE FROM graph_edges e WHERE e.to_id = $1 AND EXISTS (
			SELECT 1 FROM graph_edges x WHERE x.to_id = $2 AND x.from_id = e.from_id AND x.rel_type = e.rel_type)`,
		fromID, toID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE graph_edges SET from_id = $2 WHERE from_id = $1 AND to_id <> $2`, fromID, toID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE graph_edges SET to_id = $2 WHERE to_id = $1 AND from_id <> $2`, fromID, toID); err != nil {
		return err
	}
	// 遗留自环（from==to）清除
	if _, err := tx.Exec(ctx, `DELETE FROM graph_edges WHERE from_id = $1 OR to_id = $1`, fromID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *pgStore) DeleteEdge(ctx context.Context, from, to, relType string) error {
	cmd, err := s.pool.Exec(ctx,
		`DELETE FROM graph_edges WHERE from_id = $1 AND to_id = $2 AND rel_type = $3`,
		from, to, relType)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return apperrors.Wrapf(apperrors.ErrNotFound, "边 %s-[%s]->%s", from, relType, to)
	}
	return nil
}

func (s *pgStore) DeleteNode(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM graph_edges WHERE from_id = $1 OR to_id = $1`, id); err != nil {
		return err
	}
	cmd, err := tx.Exec(ctx, `DELETE FROM graph_nodes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return apperrors.Wrapf(apperrors.ErrNotFound, "节点 %s", id)
	}
	return tx.Commit(ctx)
}

func (s *pgStore) UpdateEdgeStatus(ctx context.Context, from, to, relType string, status EdgeStatus) error {
	cmd, err := s.pool.Exec(ctx,
		`UPDATE graph_edges SET status = $4, updated_at = now() WHERE from_id = $1 AND to_id = $2 AND rel_type = $3`,
		from, to, relType, string(status))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return apperrors.Wrapf(apperrors.ErrNotFound, "边 %s-[%s]->%s", from, relType, to)
	}
	return nil
}

func (s *pgStore) degree(ctx context.Context, id string) (int, error) {
	var d int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM graph_edges WHERE (from_id = $1 OR to_id = $1) AND status = $2`,
		id, string(EdgeAccepted)).Scan(&d)
	return d, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*Node, error) {
	var n Node
	var aliases, attrs []byte
	if err := row.Scan(&n.ID, &n.Name, &n.NormName, &n.Type, &aliases, &attrs,
		&n.CreatedBy, &n.SchemaVersion, &n.UpdatedAt); err != nil {
		return nil, err
	}
	if len(aliases) > 0 {
		_ = json.Unmarshal(aliases, &n.Aliases)
	}
	if len(attrs) > 0 {
		_ = json.Unmarshal(attrs, &n.Attributes)
	}
	return &n, nil
}

func scanNodeWithCount(row rowScanner) (*Node, int, error) {
	var n Node
	var aliases, attrs []byte
	var matched int
	if err := row.Scan(&n.ID, &n.Name, &n.NormName, &n.Type, &aliases, &attrs,
		&n.CreatedBy, &n.SchemaVersion, &n.UpdatedAt, &matched); err != nil {
		return nil, 0, err
	}
	if len(aliases) > 0 {
		_ = json.Unmarshal(aliases, &n.Aliases)
	}
	if len(attrs) > 0 {
		_ = json.Unmarshal(attrs, &n.Attributes)
	}
	return &n, matched, nil
}

func scanNodes(rows pgx.Rows) ([]*Node, error) {
	var out []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
