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

package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"golang.org/x/time/rate"

	"graphrag-platform/pkg/config"
	"graphrag-platform/pkg/log"
)

// Middleware HTTP 中间件集合
type Middleware struct {
	cors    config.CORSConfig
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewMiddleware 创建中间件；rps <=0 不启用限流
func NewMiddleware(cors config.CORSConfig, rps int, logger *log.Logger) *Middleware {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), rps*2)
	}
	return &Middleware{cors: cors, limiter: limiter, logger: logger}
}

// CORS 跨域响应头
func (m *Middleware) CORS() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if m.cors.Enable {
			origin := "*"
			if len(m.cors.AllowOrigins) > 0 {
				origin = m.cors.AllowOrigins[0]
			}
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if string(c.Method()) == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next(ctx)
	}
}

// RequestLog 请求日志
func (m *Middleware) RequestLog() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		c.Next(ctx)
		m.logger.Info("http 请求",
			"method", string(c.Method()),
			"path", string(c.Path()),
			"status", c.Response.StatusCode(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// RateLimit 查询接口限流
func (m *Middleware) RateLimit() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if m.limiter != nil && !m.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, map[string]any{"error": "请求过于频繁"})
			return
		}
		c.Next(ctx)
	}
}
