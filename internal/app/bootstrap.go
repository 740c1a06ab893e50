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

package app

import (
	"context"
	"fmt"

	"graphrag-platform/internal/feedback"
	"graphrag-platform/internal/graph"
	"graphrag-platform/internal/storage/cache"
	"graphrag-platform/internal/storage/chunks"
	"graphrag-platform/internal/storage/vector"
	"graphrag-platform/pkg/config"
	"graphrag-platform/pkg/log"
)

// Bootstrap 统一初始化：供 api 与 worker 复用，避免在 cmd 内写业务装配
type Bootstrap struct {
	Config        *config.Config
	Logger        *log.Logger
	GraphStore    graph.Store
	VectorStore   vector.Store
	CacheStore    cache.Store
	ChunkStore    chunks.Store
	FeedbackLog   feedback.Log
	FeedbackQueue feedback.Queue
}

// NewBootstrap 根据配置创建 Bootstrap（图/向量/缓存/chunk 存储 + 反馈账本）
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	logCfg := &log.Config{}
	if cfg != nil {
		logCfg.Level = cfg.Log.Level
		logCfg.Format = cfg.Log.Format
		logCfg.File = cfg.Log.File
	}
	logger, err := log.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	b := &Bootstrap{Config: cfg, Logger: logger}
	if cfg == nil {
		return b, nil
	}

	b.GraphStore, err = graph.NewStore(ctx, cfg.Storage.Graph)
	if err != nil {
		return nil, fmt.Errorf("初始化图存储失败: %w", err)
	}

	b.VectorStore, err = vector.NewStore(cfg.Storage.Vector)
	if err != nil {
		return nil, fmt.Errorf("初始化向量索引失败: %w", err)
	}

	b.CacheStore, err = cache.NewCache(ctx, cfg.Storage.Cache)
	if err != nil {
		return nil, fmt.Errorf("初始化缓存失败: %w", err)
	}

	b.ChunkStore, err = chunks.NewStore(ctx, cfg.Storage.Chunks)
	if err != nil {
		return nil, fmt.Errorf("初始化 chunk 存储失败: %w", err)
	}

	// 反馈账本与复核队列跟随图存储后端：postgres 图库时共用其 DSN，
	// 否则落内存（仅单进程可见）
	if cfg.Storage.Graph.Type == "postgres" && cfg.Storage.Graph.DSN != "" {
		b.FeedbackLog, err = feedback.NewPgLog(ctx, cfg.Storage.Graph.DSN)
		if err != nil {
			return nil, fmt.Errorf("初始化消解账本(postgres)失败: %w", err)
		}
		b.FeedbackQueue, err = feedback.NewPgQueue(ctx, cfg.Storage.Graph.DSN)
		if err != nil {
			return nil, fmt.Errorf("初始化复核队列(postgres)失败: %w", err)
		}
		logger.Info("反馈账本使用 PostgreSQL 后端")
	} else {
		b.FeedbackLog = feedback.NewMemoryLog()
		b.FeedbackQueue = feedback.NewMemoryQueue()
	}

	return b, nil
}

// Close 按初始化逆序关闭资源
func (b *Bootstrap) Close() error {
	var firstErr error
	closers := []func() error{}
	if b.FeedbackQueue != nil {
		closers = append(closers, b.FeedbackQueue.Close)
	}
	if b.FeedbackLog != nil {
		closers = append(closers, b.FeedbackLog.Close)
	}
	if b.ChunkStore != nil {
		closers = append(closers, b.ChunkStore.Close)
	}
	if b.CacheStore != nil {
		closers = append(closers, b.CacheStore.Close)
	}
	if b.VectorStore != nil {
		closers = append(closers, b.VectorStore.Close)
	}
	if b.GraphStore != nil {
		closers = append(closers, b.GraphStore.Close)
	}
	for _, c := range closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
