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

package chunks

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "graphrag-platform/pkg/errors"
)

// pgStore PostgreSQL 实现。
// 表结构：
//
//	chunks(id, doc_id, text, resolved_text, strategy, section_path jsonb,
//	       alias_map jsonb, status, fail_reason, updated_at)
type pgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore 创建 PostgreSQL chunk 存储
func NewPgStore(ctx context.Context, dsn string) (Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
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

func (s *pgStore) Put(ctx context.Context, chunk *Chunk) error {
	if chunk == nil || chunk.ID == "" {
		return apperrors.Wrap(apperrors.ErrInvalidArg, "chunk 缺少 ID")
	}
	section, _ := json.Marshal(chunk.SectionPath)
	// resolved 状态不回退：冲突时仅在非 resolved 时重置为 pending
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chunks (id, doc_id, text, section_path, status, updated_at)
		VALUES ($1, $2, $3, $4, 'pending', now())
		ON CONFLICT (id) DO UPDATE SET
			text = EXCLUDED.text,
			section_path = EXCLUDED.section_path,
			status = CASE WHEN chunks.status = 'resolved' THEN chunks.status ELSE 'pending' END,
			updated_at = now()`,
		chunk.ID, chunk.DocID, chunk.Text, section)
	return err
}

func (s *pgStore) Get(ctx context.Context, id string) (*Chunk, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, doc_id, text, COALESCE(resolved_text, ''), COALESCE(strategy, ''),
		       section_path, alias_map, status, COALESCE(fail_reason, ''), updated_at
		FROM chunks WHERE id = $1`, id)
	c, err := scanChunk(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Wrapf(apperrors.ErrNotFound, "chunk %s", id)
		}
		return nil, err
	}
	return c, nil
}

func (s *pgStore) ByDoc(ctx context.Context, docID string) ([]*Chunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, doc_id, text, COALESCE(resolved_text, ''), COALESCE(strategy, ''),
		       section_path, alias_map, status, COALESCE(fail_reason, ''), updated_at
		FROM chunks WHERE doc_id = $1 ORDER BY id`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ClaimPending SKIP LOCKED 领取，多 worker 间互斥
func (s *pgStore) ClaimPending(ctx context.Context, limit int) ([]*Chunk, error) {
	if limit <= 0 {
		limit = 16
	}
	rows, err := s.pool.Query(ctx, `
		UPDATE chunks SET status = 'processing', updated_at = now()
		WHERE id IN (
			SELECT id FROM chunks WHERE status = 'pending'
			ORDER BY id LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, doc_id, text, COALESCE(resolved_text, ''), COALESCE(strategy, ''),
		          section_path, alias_map, status, COALESCE(fail_reason, ''), updated_at`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *pgStore) MarkResolved(ctx context.Context, id, resolvedText, strategy string, aliasMap map[string]string) error {
	aliases, _ := json.Marshal(aliasMap)
	cmd, err := s.pool.Exec(ctx, `
		UPDATE chunks SET resolved_text = $2, strategy = $3, alias_map = $4,
		       status = 'resolved', fail_reason = NULL, updated_at = now()
		WHERE id = $1`,
		id, resolvedText, strategy, aliases)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return apperrors.Wrapf(apperrors.ErrNotFound, "chunk %s", id)
	}
	return nil
}

func (s *pgStore) MarkFailed(ctx context.Context, id, reason string) error {
	cmd, err := s.pool.Exec(ctx,
		`UPDATE chunks SET status = 'failed', fail_reason = $2, updated_at = now() WHERE id = $1`,
		id, reason)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return apperrors.Wrapf(apperrors.ErrNotFound, "chunk %s", id)
	}
	return nil
}

func (s *pgStore) Requeue(ctx context.Context, id string) error {
	cmd, err := s.pool.Exec(ctx, `
		UPDATE chunks SET status = 'pending', fail_reason = NULL, updated_at = now()
		WHERE id = $1 AND status <> 'resolved'`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM chunks WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return apperrors.Wrapf(apperrors.ErrNotFound, "chunk %s", id)
		}
		return apperrors.Wrap(apperrors.ErrConflict, "已完成的 chunk 不能重新入队")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner) (*Chunk, error) {
	var c Chunk
	var section, aliasMap []byte
	var status string
	if err := row.Scan(&c.ID, &c.DocID, &c.Text, &c.ResolvedText, &c.Strategy,
		&section, &aliasMap, &status, &c.FailReason, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Status = ChunkStatus(status)
	if len(section) > 0 {
		_ = json.Unmarshal(section, &c.SectionPath)
	}
	if len(aliasMap) > 0 {
		_ = json.Unmarshal(aliasMap, &c.AliasMap)
	}
	return &c, nil
}
