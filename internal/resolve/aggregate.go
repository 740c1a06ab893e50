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
	"sync"
	"time"

	"graphrag-platform/pkg/log"
)

// Aggregate 并行调用全部候选源并按身份合并。
// 这里是管线的同步屏障：等待所有来源完成（各自带超时），
// 超时或失败的来源按空结果处理，绝不让单个来源失败打断请求。
func Aggregate(ctx context.Context, sources []Source, req *Request, limit int, timeout time.Duration, logger *log.Logger) []*Candidate {
	results := make([][]*Candidate, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			results[i] = safeGenerate(ctx, src, req, limit, timeout, logger)
		}(i, src)
	}
	wg.Wait()

	return merge(results)
}

// merge 按候选身份去重。第一个产出该身份的来源提供展示属性；
// 每个来源的分数单独保留在 SourceScores，留给融合按来源加权。
// 合并顺序稳定：按来源注册顺序、来源内候选顺序。
func merge(results [][]*Candidate) []*Candidate {
	byID := make(map[string]*Candidate)
	var order []string

	for _, batch := range results {
		for _, c := range batch {
			if c == nil || c.ID == "" {
				continue
			}
			existing, seen := byID[c.ID]
			if !seen {
				merged := *c
				merged.SourceScores = map[string]float64{c.Source: c.SourceScore}
				byID[c.ID] = &merged
				order = append(order, c.ID)
				continue
			}
			// 同一来源重复产出同一身份时取较高分
			if prev, ok := existing.SourceScores[c.Source]; !ok || c.SourceScore > prev {
				existing.SourceScores[c.Source] = c.SourceScore
			}
			if existing.Degree == 0 && c.Degree > 0 {
				existing.Degree = c.Degree
			}
			if existing.NodeType == "" && c.NodeType != "" {
				existing.NodeType = c.NodeType
			}
		}
	}

	out := make([]*Candidate, 0, len(order))
	for _, key := range order {
		out = append(out, byID[key])
	}
	return out
}
