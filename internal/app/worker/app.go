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

// Package worker 批量 chunk 解析：从 chunk 存储认领 pending 的切片，
// 先做 chunk 内指代消解，再对文中实体名做链接落图。
package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"graphrag-platform/internal/app"
	"graphrag-platform/internal/feedback"
	"graphrag-platform/internal/resolve"
	"graphrag-platform/internal/resolve/link"
	"graphrag-platform/internal/resolve/mention"
	"graphrag-platform/internal/storage/chunks"
	"graphrag-platform/pkg/log"
	"graphrag-platform/pkg/metrics"
)

// App Worker 应用。认领循环与 chunk 级并发由 semaphore 封顶，
// 取消只在 chunk 之间生效，处理中的 chunk 跑完。
type App struct {
	bootstrap    *app.Bootstrap
	logger       *log.Logger
	resolver     *mention.Resolver
	linker       *link.Linker
	workerID     string
	concurrency  int64
	batchSize    int
	pollInterval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewApp 创建 Worker 应用（由 cmd/worker 调用）
func NewApp(bootstrap *app.Bootstrap) (*App, error) {
	cfg := bootstrap.Config
	if cfg == nil {
		return nil, fmt.Errorf("worker 需要配置文件")
	}

	llmClient, err := app.NewLLMClientFromConfig(cfg)
	if err != nil {
		bootstrap.Logger.Warn("LLM 客户端初始化失败，指代消解只用确定性策略", "error", err.Error())
	}
	var llmStrategy mention.Strategy
	if cfg.Resolver.Coreference.LLMEnabled && llmClient != nil {
		llmStrategy = mention.NewLLMStrategy(llmClient,
			cfg.Resolver.Coreference.LLMRetry,
			parseDuration(cfg.Resolver.Coreference.LLMTimeout, 10*time.Second))
	}
	resolver := mention.NewResolver(cfg.Resolver, bootstrap.Logger, llmStrategy)

	embedder, err := app.NewEmbedderFromConfig(cfg, bootstrap.CacheStore)
	if err != nil {
		bootstrap.Logger.Warn("Embedder 初始化失败，链接将不使用向量来源", "error", err.Error())
		embedder = nil
	}
	linker := link.NewLinker(link.Options{
		Store:    bootstrap.GraphStore,
		Vector:   bootstrap.VectorStore,
		Embedder: embedder,
		Cfg:      cfg.Resolver,
		Log:      bootstrap.FeedbackLog,
		Queue:    bootstrap.FeedbackQueue,
		Logger:   bootstrap.Logger,
	})

	concurrency := cfg.Worker.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	batchSize := cfg.Worker.BatchSize
	if batchSize <= 0 {
		batchSize = 16
	}
	return &App{
		bootstrap:    bootstrap,
		logger:       bootstrap.Logger,
		resolver:     resolver,
		linker:       linker,
		workerID:     defaultWorkerID(),
		concurrency:  int64(concurrency),
		batchSize:    batchSize,
		pollInterval: parseDuration(cfg.Worker.PollInterval, 2*time.Second),
	}, nil
}

// Start 启动认领循环（非阻塞）
func (a *App) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.wg.Add(1)
	go a.claimLoop(ctx)
	a.logger.Info("worker 应用启动成功",
		"worker_id", a.workerID, "concurrency", a.concurrency, "batch_size", a.batchSize)
	return nil
}

// Shutdown 停止认领并等待处理中的 chunk 完成，再关闭存储
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("关闭 worker 应用")
	if a.cancel != nil {
		a.cancel()
	}
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("等待处理中的 chunk 超时，强制关闭")
	}
	return a.bootstrap.Close()
}

// claimLoop 轮询认领 pending chunk，并发处理由 semaphore 封顶
func (a *App) claimLoop(ctx context.Context) {
	defer a.wg.Done()

	sem := semaphore.NewWeighted(a.concurrency)
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		claimed, err := a.bootstrap.ChunkStore.ClaimPending(ctx, a.batchSize)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.logger.Error("认领 chunk 失败", "error", err.Error())
		}
		for _, c := range claimed {
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			a.wg.Add(1)
			go func(c *chunks.Chunk) {
				defer a.wg.Done()
				defer sem.Release(1)
				a.processChunk(ctx, c)
			}(c)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// processChunk 单个 chunk 的端到端解析：指代消解 → 结果落存储 → 实体链接
func (a *App) processChunk(ctx context.Context, c *chunks.Chunk) {
	metrics.WorkerBusy.WithLabelValues(a.workerID).Inc()
	defer metrics.WorkerBusy.WithLabelValues(a.workerID).Dec()
	start := time.Now()
	defer func() {
		metrics.ChunkResolveDuration.Observe(time.Since(start).Seconds())
	}()

	result := a.resolver.Resolve(ctx, c.Text)
	metrics.DecisionTotal.WithLabelValues(resolve.UsecaseCoreference, result.Mode).Inc()
	if err := a.bootstrap.ChunkStore.MarkResolved(ctx, c.ID, result.ResolvedText, result.Mode, result.AliasMap); err != nil {
		a.logger.Error("写入消解结果失败", "chunk_id", c.ID, "error", err.Error())
		if errMark := a.bootstrap.ChunkStore.MarkFailed(ctx, c.ID, err.Error()); errMark != nil {
			a.logger.Error("标记 chunk 失败状态失败", "chunk_id", c.ID, "error", errMark.Error())
		}
		return
	}

	// 歧义指称进入复核队列，等待人工裁决
	for _, m := range result.Provenance {
		if m.Decision != resolve.DecisionReview {
			continue
		}
		item := &feedback.ReviewItem{ID: m.RequestID, ChunkID: c.ID, Match: m, Reason: "ambiguity"}
		if err := a.bootstrap.FeedbackQueue.Enqueue(ctx, item); err != nil {
			a.logger.Warn("指代复核入队失败", "chunk_id", c.ID, "signal", m.Signal, "error", err.Error())
		}
	}

	reqs := a.entityRequests(c, result)
	if len(reqs) == 0 {
		a.logger.Debug("chunk 无可链接实体", "chunk_id", c.ID, "mode", result.Mode)
		return
	}
	matches := a.linker.LinkAll(ctx, c.ID, reqs)
	a.logger.Info("chunk 解析完成",
		"chunk_id", c.ID, "mode", result.Mode,
		"coverage", result.Coverage, "entities", len(matches),
		"duration_ms", time.Since(start).Milliseconds())
}

// entityRequests 从 chunk 抽取待链接的实体名：别名表的全称优先，
// 再补充文中的名词性先行词，按首次出现顺序去重。
func (a *App) entityRequests(c *chunks.Chunk, result *mention.Result) []*resolve.Request {
	text := c.Text
	if result.ResolvedText != "" {
		text = result.ResolvedText
	}

	seen := make(map[string]bool)
	var reqs []*resolve.Request
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		reqs = append(reqs, &resolve.Request{Text: name})
	}
	for _, full := range result.AliasMap {
		add(full)
	}
	for _, ant := range mention.ExtractAntecedents(text) {
		add(ant.Text)
	}
	return reqs
}

// defaultWorkerID 主机名 + PID，pod 内唯一即可
func defaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
