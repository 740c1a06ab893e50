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

package http

import (
	"github.com/cloudwego/hertz/pkg/app/server"
	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"

	"graphrag-platform/internal/api/http/middleware"
)

// Router HTTP 路由器
type Router struct {
	handler    *Handler
	middleware *middleware.Middleware
}

// NewRouter 创建路由器
func NewRouter(handler *Handler, mw *middleware.Middleware) *Router {
	return &Router{handler: handler, middleware: mw}
}

// Build 装配 Hertz server，额外的 server.Option（如链路追踪）透传
func (r *Router) Build(addr string, opts ...hertzconfig.Option) *server.Hertz {
	h := server.Default(append([]hertzconfig.Option{server.WithHostPorts(addr)}, opts...)...)

	h.Use(r.middleware.RequestLog())
	h.Use(r.middleware.CORS())

	api := h.Group("/api")
	api.GET("/health", r.handler.HealthCheck)
	api.GET("/system/metrics", r.handler.SystemMetrics)

	gr := h.Group("/graphrag")
	gr.POST("/query", r.middleware.RateLimit(), r.handler.Query)
	gr.POST("/chunks", r.handler.EnqueueChunks)
	gr.GET("/review", r.handler.PendingReviews)
	gr.POST("/review/:id", r.handler.ResolveReview)
	gr.GET("/entities/:id", r.handler.GetEntity)

	fb := gr.Group("/feedback")
	fb.POST("/merge", r.handler.MergeFeedback)
	fb.POST("/correct", r.handler.CorrectFeedback)
	fb.POST("/unlink", r.handler.UnlinkFeedback)

	return h
}
