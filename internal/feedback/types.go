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

// Package feedback 实现消解判定的溯源日志、人工复核队列与反馈回放。
// 每条反馈操作都针对已持久化的判定记录回放，不凭空修改图。
package feedback

import (
	"errors"
	"time"

	"graphrag-platform/internal/resolve"
)

var (
	// ErrNotFound 判定记录或复核项不存在
	ErrNotFound = errors.New("反馈目标不存在")
	// ErrAlreadyClosed 复核项已被处理
	ErrAlreadyClosed = errors.New("复核项已关闭")
)

// Record 一条已持久化的消解判定，写入后不再修改
type Record struct {
	ID        string         `json:"id"` // 即 Match.RequestID
	ChunkID   string         `json:"chunk_id,omitempty"`
	Usecase   string         `json:"usecase"`
	Match     *resolve.Match `json:"match"`
	CreatedAt time.Time      `json:"created_at"`
}

// ReviewStatus 复核项状态
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// ReviewItem 人工复核队列中的一项
type ReviewItem struct {
	ID           string         `json:"id"` // 即 Match.RequestID
	ChunkID      string         `json:"chunk_id,omitempty"`
	ExpectedType string         `json:"expected_type,omitempty"`
	Match        *resolve.Match `json:"match"`
	Reason       string         `json:"reason"`
	Status       ReviewStatus   `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	ClosedAt     time.Time      `json:"closed_at,omitempty"`
}
