package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	apihttp "graphrag-platform/internal/api/http"
	"graphrag-platform/internal/api/http/middleware"
	"graphrag-platform/internal/app"
	"graphrag-platform/internal/feedback"
	"graphrag-platform/internal/resolve/retrieval"
	"graphrag-platform/internal/storage/vector"
	"graphrag-platform/pkg/config"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用（装配问答器、反馈服务、HTTP Router/Handler/Middleware）
type App struct {
	bootstrap    *app.Bootstrap
	router       *apihttp.Router
	hertz        *server.Hertz
	otelProvider otelProviderShutdown
}

// NewApp 创建 API 应用（由 cmd/api 调用）
func NewApp(bootstrap *app.Bootstrap) (*App, error) {
	cfg := bootstrap.Config
	if cfg == nil {
		cfg = &config.Config{}
	}

	// LLM 与 Embedding 均可缺省：无 LLM 时结论走确定性拼接，
	// 无 Embedder 时检索只用关键词/别名/图三类来源
	llmClient, err := app.NewLLMClientFromConfig(cfg)
	if err != nil {
		bootstrap.Logger.Warn("LLM 客户端初始化失败，问答结论将使用确定性拼接", "error", err.Error())
	}
	embedder, err := app.NewEmbedderFromConfig(cfg, bootstrap.CacheStore)
	if err != nil {
		bootstrap.Logger.Warn("Embedder 初始化失败，检索将不使用向量来源", "error", err.Error())
		embedder = nil
	}
	if embedder != nil && bootstrap.VectorStore != nil {
		for _, name := range []string{vector.EntityIndex, vector.ClaimIndex} {
			if err := vector.EnsureIndex(context.Background(), bootstrap.VectorStore, name, embedder.Dimension(), "cosine"); err != nil {
				bootstrap.Logger.Warn("创建向量索引失败（首次写入时可能再创建）", "index", name, "error", err.Error())
			}
		}
	}

	answerer := retrieval.NewAnswerer(retrieval.Options{
		Store:    bootstrap.GraphStore,
		Vector:   bootstrap.VectorStore,
		Embedder: embedder,
		LLM:      llmClient,
		Cfg:      cfg.Resolver,
		Logger:   bootstrap.Logger,
	})
	feedbackSvc := feedback.NewService(bootstrap.GraphStore, bootstrap.FeedbackLog, bootstrap.FeedbackQueue, bootstrap.Logger)
	handler := apihttp.NewHandler(answerer, bootstrap.ChunkStore, feedbackSvc, bootstrap.GraphStore, bootstrap.Logger)
	mw := middleware.NewMiddleware(cfg.API.CORS, cfg.API.RateLimitRPS, bootstrap.Logger)

	return &App{
		bootstrap: bootstrap,
		router:    apihttp.NewRouter(handler, mw),
	}, nil
}

// Run 启动 HTTP 服务，addr 如 ":8080"
func (a *App) Run(addr string) error {
	a.bootstrap.Logger.Info("API 服务启动", "addr", addr)

	// 使用 Hertz slog 扩展，与 bootstrap 日志配置对齐
	output := os.Stdout
	if a.bootstrap.Config != nil && a.bootstrap.Config.Log.File != "" {
		f, err := os.OpenFile(a.bootstrap.Config.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		output = f
	}
	levelVar := &slog.LevelVar{}
	if a.bootstrap.Config != nil {
		switch a.bootstrap.Config.Log.Level {
		case "debug":
			levelVar.Set(slog.LevelDebug)
		case "warn":
			levelVar.Set(slog.LevelWarn)
		case "error":
			levelVar.Set(slog.LevelError)
		default:
			levelVar.Set(slog.LevelInfo)
		}
	} else {
		levelVar.Set(slog.LevelInfo)
	}
	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	))

	// 可选：启用链路追踪（OpenTelemetry）
	if a.bootstrap.Config != nil && a.bootstrap.Config.Monitoring.Tracing.Enable {
		tracing := a.bootstrap.Config.Monitoring.Tracing
		serviceName := tracing.ServiceName
		if serviceName == "" {
			serviceName = "graphrag-api"
		}
		exportEndpoint := tracing.ExportEndpoint
		if exportEndpoint == "" {
			exportEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		}
		if exportEndpoint != "" {
			opts := []provider.Option{
				provider.WithServiceName(serviceName),
				provider.WithExportEndpoint(exportEndpoint),
			}
			if tracing.Insecure {
				opts = append(opts, provider.WithInsecure())
			}
			a.otelProvider = provider.NewOpenTelemetryProvider(opts...)
			tracerOpt, tracerCfg := hertztracing.NewServerTracer()
			a.hertz = a.router.Build(addr, tracerOpt)
			a.hertz.Use(hertztracing.ServerMiddleware(tracerCfg))
			a.bootstrap.Logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", exportEndpoint)
		} else {
			a.hertz = a.router.Build(addr)
		}
	} else {
		a.hertz = a.router.Build(addr)
	}
	return a.hertz.Run()
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (a *App) Shutdown(ctx context.Context) error {
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			return err
		}
	}
	return a.bootstrap.Close()
}
