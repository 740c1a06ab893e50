package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API/Worker 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		AdapterDuration, AdapterFailTotal,
		DecisionTotal, ExpansionHitTotal,
		LLMTokensTotal, RateLimitWaitSeconds,
		ChunkResolveDuration, WorkerBusy,
	)
}

// AdapterDuration 候选源生成耗时（秒），按用例与来源区分
var AdapterDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "graphrag_adapter_duration_seconds",
		Help:    "候选源生成耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"usecase", "source"},
)

// AdapterFailTotal 候选源失败/超时总数（失败只降级为空集，不中断请求）
var AdapterFailTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "graphrag_adapter_fail_total",
		Help: "候选源失败/超时总数",
	},
	[]string{"usecase", "source", "reason"}, // error | timeout | panic
)

// DecisionTotal 决策总数（按用例与决策档位）
var DecisionTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "graphrag_decision_total",
		Help: "决策总数（按档位）",
	},
	[]string{"usecase", "decision"}, // accept | review | nil | rewrite | local | alias_only | skip
)

// ExpansionHitTotal 图先验扩展召回的证据条数
var ExpansionHitTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "graphrag_expansion_hit_total",
		Help: "图先验扩展召回的证据条数",
	},
)

// LLMTokensTotal LLM 调用 token 数
var LLMTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "graphrag_llm_tokens_total",
		Help: "LLM 调用 token 总数",
	},
	[]string{"direction"}, // input | output
)

// RateLimitWaitSeconds 限流等待时间（秒）
var RateLimitWaitSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "graphrag_rate_limit_wait_seconds",
		Help:    "限流等待时间（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"kind", "provider"},
)

// ChunkResolveDuration 单个 chunk 指代消解 + 链接的端到端耗时（秒）
var ChunkResolveDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "graphrag_chunk_resolve_duration_seconds",
		Help:    "单个 chunk 解析端到端耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
)

// WorkerBusy 当前正在处理的 chunk 数（每 Worker）
var WorkerBusy = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "graphrag_worker_busy",
		Help: "当前正在处理的 chunk 数",
	},
	[]string{"worker_id"},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
