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
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"graphrag-platform/internal/resolve"
)

// pgLog PostgreSQL 溯源日志。
// 表结构：resolution_log(id, chunk_id, usecase, match jsonb, created_at)
type pgLog struct {
	pool *pgxpool.Pool
}

// NewPgLog 创建 PostgreSQL 溯源日志
func NewPgLog(ctx context.Context, dsn string) (Log, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &pgLog{pool: pool}, nil
}

func (l *pgLog) Append(ctx context.Context, rec *Record) error {
	payload, err := json.Marshal(rec.Match)
	if err != nil {
		return err
	}
	// 回放幂等：同 ID 不覆盖
	_, err = l.pool.Exec(ctx, `
		INSERT INTO resolution_log (id, chunk_id, usecase, match, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.ChunkID, rec.Usecase, payload)
	return err
}

func (l *pgLog) Get(ctx context.Context, id string) (*Record, error) {
	row := l.pool.QueryRow(ctx, `
		SELECT id, COALESCE(chunk_id, ''), usecase, match, created_at
		FROM resolution_log WHERE id = $1`, id)
	return scanRecord(row)
}

func (l *pgLog) ByChunk(ctx context.Context, chunkID string) ([]*Record, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, COALESCE(chunk_id, ''), usecase, match, created_at
		FROM resolution_log WHERE chunk_id = $1 ORDER BY created_at, id`, chunkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (l *pgLog) Close() error {
	l.pool.Close()
	return nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	var payload []byte
	if err := row.Scan(&rec.ID, &rec.ChunkID, &rec.Usecase, &payload, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rec.Match = &resolve.Match{}
	if err := json.Unmarshal(payload, rec.Match); err != nil {
		return nil, err
	}
	return &rec, nil
}

// pgQueue PostgreSQL 复核队列。
// 表结构：review_queue(id, chunk_id, expected_type, match jsonb, reason,
// status, created_at, closed_at)
type pgQueue struct {
	pool *pgxpool.Pool
}

// NewPgQueue 创建 PostgreSQL 复核队列
func NewPgQueue(ctx context.Context, dsn string) (Queue, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &pgQueue{pool: pool}, nil
}

func (q *pgQueue) Enqueue(ctx context.Context, item *ReviewItem) error {
	payload, err := json.Marshal(item.Match)
	if err != nil {
		return err
	}
	_, err = q.pool.Exec(ctx, `
		INSERT INTO review_queue (id, chunk_id, expected_type, match, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', now())
		ON CONFLICT (id) DO NOTHING`,
		item.ID, item.ChunkID, item.ExpectedType, payload, item.Reason)
	return err
}

func (q *pgQueue) Pending(ctx context.Context, limit int) ([]*ReviewItem, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.pool.Query(ctx, `
		SELECT id, COALESCE(chunk_id, ''), COALESCE(expected_type, ''), match,
		       COALESCE(reason, ''), status, created_at, COALESCE(closed_at, 'epoch'::timestamptz)
		FROM review_queue WHERE status = 'pending'
		ORDER BY created_at, id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ReviewItem
	for rows.Next() {
		item, err := scanReviewItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (q *pgQueue) Get(ctx context.Context, id string) (*ReviewItem, error) {
	row := q.pool.QueryRow(ctx, `
		SELECT id, COALESCE(chunk_id, ''), COALESCE(expected_type, ''), match,
		       COALESCE(reason, ''), status, created_at, COALESCE(closed_at, 'epoch'::timestamptz)
		FROM review_queue WHERE id = $1`, id)
	return scanReviewItem(row)
}

func (q *pgQueue) Resolve(ctx context.Context, id string, status ReviewStatus) (*ReviewItem, error) {
	row := q.pool.QueryRow(ctx, `
		UPDATE review_queue SET status = $2, closed_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING id, COALESCE(chunk_id, ''), COALESCE(expected_type, ''), match,
		          COALESCE(reason, ''), status, created_at, closed_at`, id, string(status))
	item, err := scanReviewItem(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// 区分不存在与已关闭
			if _, getErr := q.Get(ctx, id); getErr == nil {
				return nil, ErrAlreadyClosed
			}
			return nil, ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

func (q *pgQueue) Close() error {
	q.pool.Close()
	return nil
}

func scanReviewItem(row pgx.Row) (*ReviewItem, error) {
	var item ReviewItem
	var payload []byte
	var status string
	var closedAt time.Time
	if err := row.Scan(&item.ID, &item.ChunkID, &item.ExpectedType, &payload,
		&item.Reason, &status, &item.CreatedAt, &closedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	item.Status = ReviewStatus(status)
	if !closedAt.Equal(time.Unix(0, 0)) && closedAt.Unix() > 0 {
		item.ClosedAt = closedAt
	}
	item.Match = &resolve.Match{}
	if err := json.Unmarshal(payload, item.Match); err != nil {
		return nil, err
	}
	return &item, nil
}
