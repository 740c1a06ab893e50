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

package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"graphrag-platform/pkg/config"
)

// LimitConfig 单个 provider 的限流配置
type LimitConfig struct {
	TokensPerMinute   int     // 每分钟 token 配额
	RequestsPerMinute float64 // 每分钟请求数
	MaxConcurrent     int     // 最大并发请求数
}

// RateLimiter provider 维度的 LLM 限流器：token budget + RPS + 并发上限
type RateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*providerLimiter
	defaults LimitConfig
}

type providerLimiter struct {
	requests  *rate.Limiter
	tokens    *rate.Limiter
	semaphore chan struct{}

	mu          sync.Mutex
	usedMinute  int
	minuteStart time.Time
}

// NewRateLimiter 创建限流器；configs 按 provider 名索引
func NewRateLimiter(configs map[string]LimitConfig, defaults *LimitConfig) *RateLimiter {
	def := LimitConfig{
		TokensPerMinute:   90000,
		RequestsPerMinute: 3500,
		MaxConcurrent:     50,
	}
	if defaults != nil {
		def = *defaults
	}
	l := &RateLimiter{
		limiters: make(map[string]*providerLimiter),
		defaults: def,
	}
	for provider, cfg := range configs {
		l.add(provider, cfg)
	}
	return l
}

// NewRateLimiterFromConfig 从配置文件段构建限流器
func NewRateLimiterFromConfig(cfg config.RateLimitsConfig) *RateLimiter {
	configs := make(map[string]LimitConfig, len(cfg.LLM))
	for provider, c := range cfg.LLM {
		configs[provider] = LimitConfig{
			TokensPerMinute:   c.TokensPerMinute,
			RequestsPerMinute: c.RequestsPerMinute,
			MaxConcurrent:     c.MaxConcurrent,
		}
	}
	return NewRateLimiter(configs, nil)
}

func (l *RateLimiter) add(provider string, cfg LimitConfig) {
	p := &providerLimiter{minuteStart: time.Now()}
	if cfg.RequestsPerMinute > 0 {
		rps := cfg.RequestsPerMinute / 60.0
		burst := int(rps * 2)
		if burst < 1 {
			burst = 1
		}
		p.requests = rate.NewLimiter(rate.Limit(rps), burst)
	}
	if cfg.TokensPerMinute > 0 {
		tps := float64(cfg.TokensPerMinute) / 60.0
		burst := cfg.TokensPerMinute / 30
		if burst < 1 {
			burst = 1
		}
		p.tokens = rate.NewLimiter(rate.Limit(tps), burst)
	}
	if cfg.MaxConcurrent > 0 {
		p.semaphore = make(chan struct{}, cfg.MaxConcurrent)
	}

	l.mu.Lock()
	l.limiters[provider] = p
	l.mu.Unlock()
}

func (l *RateLimiter) get(provider string) *providerLimiter {
	l.mu.RLock()
	p, exists := l.limiters[provider]
	l.mu.RUnlock()
	if exists {
		return p
	}
	l.add(provider, l.defaults)
	l.mu.RLock()
	p = l.limiters[provider]
	l.mu.RUnlock()
	return p
}

// Wait 阻塞直到获得执行许可；调用方完成后必须 Release
func (l *RateLimiter) Wait(ctx context.Context, provider string, estimatedTokens int) error {
	p := l.get(provider)

	if p.requests != nil {
		if err := p.requests.Wait(ctx); err != nil {
			return fmt.Errorf("请求限流等待失败: %w", err)
		}
	}
	if p.tokens != nil && estimatedTokens > 0 {
		if err := p.tokens.WaitN(ctx, estimatedTokens); err != nil {
			return fmt.Errorf("token 配额等待失败: %w", err)
		}
	}
	if p.semaphore != nil {
		select {
		case p.semaphore <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p.record(estimatedTokens)
	return nil
}

// Release 释放并发 slot
func (l *RateLimiter) Release(provider string) {
	l.mu.RLock()
	p, exists := l.limiters[provider]
	l.mu.RUnlock()
	if exists && p.semaphore != nil {
		select {
		case <-p.semaphore:
		default:
		}
	}
}

// RecordTokenUsage 记录实际 token 用量
func (l *RateLimiter) RecordTokenUsage(provider string, actualTokens int) {
	l.mu.RLock()
	p, exists := l.limiters[provider]
	l.mu.RUnlock()
	if exists {
		p.record(actualTokens)
	}
}

// UsedThisMinute 当前分钟内记录的 token 用量（运维 CLI 展示用）
func (l *RateLimiter) UsedThisMinute(provider string) int {
	l.mu.RLock()
	p, exists := l.limiters[provider]
	l.mu.RUnlock()
	if !exists {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if time.Since(p.minuteStart) > time.Minute {
		return 0
	}
	return p.usedMinute
}

func (p *providerLimiter) record(tokens int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	if now.Sub(p.minuteStart) > time.Minute {
		p.usedMinute = tokens
		p.minuteStart = now
		return
	}
	p.usedMinute += tokens
}
