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
	"time"

	"graphrag-platform/pkg/log"
	"graphrag-platform/pkg/metrics"
	"graphrag-platform/pkg/tracing"
)

// Source 候选源接口。新的来源（如全文索引）实现该接口即可接入，
// 聚合器与打分器不需要改动。
type Source interface {
	// Name 来源名称，打点与权重表索引用
	Name() string
	// Generate 生成至多 limit 个候选。实现可以返回错误，
	// 但经 safeGenerate 包装后对管线永远表现为空结果。
	Generate(ctx context.Context, req *Request, limit int) ([]*Candidate, error)
}

// safeGenerate 带超时与 panic 保护的来源调用：任何失败都降级为空集。
// 丢弃的信号连同请求 ID 与原始错误一起记录，保证决策可回溯。
func safeGenerate(ctx context.Context, src Source, req *Request, limit int, timeout time.Duration, logger *log.Logger) []*Candidate {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ctx, span := tracing.StartAdapterSpan(ctx, src.Name())
	defer span.End()

	start := time.Now()
	candidates, err := func() (out []*Candidate, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: panic: %v", ErrSourceUnavailable, r)
			}
		}()
		return src.Generate(ctx, req, limit)
	}()
	metrics.AdapterDuration.WithLabelValues(req.Usecase, src.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		reason := "error"
		if ctx.Err() == context.DeadlineExceeded {
			reason = "timeout"
		}
		metrics.AdapterFailTotal.WithLabelValues(req.Usecase, src.Name(), reason).Inc()
		span.RecordError(err)
		logger.Warn("候选源失败，降级为空结果",
			"request_id", req.ID,
			"usecase", req.Usecase,
			"source", src.Name(),
			"reason", reason,
			"error", err.Error(),
		)
		return nil
	}
	return candidates
}
