// Copyright 2026 fanjia1024
// OpenTelemetry integration for distributed tracing

package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// OTelConfig OpenTelemetry 配置
type OTelConfig struct {
	ServiceName    string
	ExportEndpoint string
	Insecure       bool
}

// InitTracer 初始化 OpenTelemetry tracer
func InitTracer(config OTelConfig) (*sdktrace.TracerProvider, error) {
	ctx := context.Background()

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(config.ExportEndpoint),
	}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	return tp, nil
}

// StartResolveSpan 开始一次解析请求 span（用例：coreference | linking | retrieval）
func StartResolveSpan(ctx context.Context, usecase string, requestID string) (context.Context, trace.Span) {
	tracer := otel.Tracer("graphrag")
	ctx, span := tracer.Start(ctx, "resolve."+usecase,
		trace.WithAttributes(
			attribute.String("resolve.usecase", usecase),
			attribute.String("resolve.request_id", requestID),
		),
	)
	return ctx, span
}

// StartAdapterSpan 开始单个候选源 span
func StartAdapterSpan(ctx context.Context, source string) (context.Context, trace.Span) {
	tracer := otel.Tracer("graphrag")
	ctx, span := tracer.Start(ctx, "adapter.generate",
		trace.WithAttributes(
			attribute.String("adapter.source", source),
		),
	)
	return ctx, span
}
