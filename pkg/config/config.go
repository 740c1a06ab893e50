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

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"graphrag-platform/pkg/secrets"
)

// Config 应用配置结构体
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Resolver   ResolverConfig   `mapstructure:"resolver"`
	Model      ModelConfig      `mapstructure:"model"`
	RateLimits RateLimitsConfig `mapstructure:"rate_limits"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port    int        `mapstructure:"port"`
	Host    string     `mapstructure:"host"`
	Timeout string     `mapstructure:"timeout"`
	CORS    CORSConfig `mapstructure:"cors"`
	// RateLimitRPS >0 时对查询接口启用限流
	RateLimitRPS int `mapstructure:"rate_limit_rps"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// WorkerConfig Worker 服务配置（批量 chunk 解析）
type WorkerConfig struct {
	Concurrency  int    `mapstructure:"concurrency"`   // 同时处理的 chunk 数上限，<=0 默认 4
	BatchSize    int    `mapstructure:"batch_size"`    // 每次从 chunk 存储认领的数量，<=0 默认 16
	PollInterval string `mapstructure:"poll_interval"` // 轮询间隔，如 "2s"
}

// ResolverConfig 解析引擎配置：三个用例共享同一条管线，各自持有权重与阈值表
type ResolverConfig struct {
	AdapterTimeout      string             `mapstructure:"adapter_timeout"`       // 单个候选源超时，空则 5s
	TopN                int                `mapstructure:"top_n"`                 // 融合排序后保留的候选数，<=0 默认 20
	AmbiguityEpsilon    float64            `mapstructure:"ambiguity_epsilon"`     // top-2 分差小于该值时转 review
	VectorMinSimilarity float64            `mapstructure:"vector_min_similarity"` // 向量候选最低相似度，<=0 默认 0.75
	GraphMaxHops        int                `mapstructure:"graph_max_hops"`        // 图候选源最大跳数，<=0 默认 2
	RelationWhitelist   []string           `mapstructure:"relation_whitelist"`    // 图游走允许的关系类型
	RelationBonus       map[string]float64 `mapstructure:"relation_bonus"`        // 高价值关系乘性加成，如 supports: 1.2
	ExpansionDiscount   float64            `mapstructure:"expansion_discount"`    // 图先验扩展命中折扣，<=0 默认 0.7
	TypePenalty         float64            `mapstructure:"type_penalty"`          // 类型不匹配特征惩罚值，<=0 默认 0.3
	Coreference         CoreferenceConfig  `mapstructure:"coreference"`
	Linking             LinkingConfig      `mapstructure:"linking"`
	Retrieval           RetrievalConfig    `mapstructure:"retrieval"`
}

// WeightTable 一个用例的融合权重表：来源权重 + 特征权重（无需归一化，分数只作比较）
type WeightTable struct {
	Sources  map[string]float64 `mapstructure:"sources"`
	Features map[string]float64 `mapstructure:"features"`
}

// CoreferenceConfig 指代消解（chunk 内）配置
type CoreferenceConfig struct {
	Weights         WeightTable `mapstructure:"weights"`
	LLMEnabled      bool        `mapstructure:"llm_enabled"`
	LLMRetry        int         `mapstructure:"llm_retry"`   // 重试预算（不含首次），<0 默认 2
	LLMTimeout      string      `mapstructure:"llm_timeout"` // 空则 10s
	RewriteCoverage float64     `mapstructure:"rewrite_coverage"`
	RewriteConflict float64     `mapstructure:"rewrite_conflict"`
	LocalCoverage   float64     `mapstructure:"local_coverage"`
	LocalConflict   float64     `mapstructure:"local_conflict"`
	AliasCoverage   float64     `mapstructure:"alias_coverage"`
}

// TypeThreshold 实体链接按期望类型的阈值对
type TypeThreshold struct {
	AcceptAt float64 `mapstructure:"accept_at"`
	ReviewAt float64 `mapstructure:"review_at"`
}

// LinkingConfig 实体链接配置
type LinkingConfig struct {
	Weights         WeightTable              `mapstructure:"weights"`
	DefaultAcceptAt float64                  `mapstructure:"default_accept_at"`
	DefaultReviewAt float64                  `mapstructure:"default_review_at"`
	TypeThresholds  map[string]TypeThreshold `mapstructure:"type_thresholds"`
}

// RetrievalConfig 证据检索配置
type RetrievalConfig struct {
	Weights     WeightTable `mapstructure:"weights"`
	TopK        int         `mapstructure:"top_k"`        // <=0 默认 5
	CaveatBelow float64     `mapstructure:"caveat_below"` // 单条证据置信度低于该值时附加 caveat，<=0 默认 0.7
}

// ModelConfig 模型配置
type ModelConfig struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
}

// LLMConfig LLM 模型配置
type LLMConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// EmbeddingConfig Embedding 模型配置
type EmbeddingConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig 模型提供商配置
type ProviderConfig struct {
	APIKey  string               `mapstructure:"api_key"`
	BaseURL string               `mapstructure:"base_url"`
	Models  map[string]ModelInfo `mapstructure:"models"`
}

// ModelInfo 模型信息
type ModelInfo struct {
	Name        string  `mapstructure:"name"`
	Temperature float64 `mapstructure:"temperature"`
	Dimension   int     `mapstructure:"dimension"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// DefaultsConfig 默认模型配置
type DefaultsConfig struct {
	LLM       string `mapstructure:"llm"`
	Embedding string `mapstructure:"embedding"`
}

// RateLimitsConfig LLM 限流配置（按 provider）
type RateLimitsConfig struct {
	LLM map[string]LLMRateLimitConfig `mapstructure:"llm"`
}

// LLMRateLimitConfig 单个 LLM Provider 的限流配置
type LLMRateLimitConfig struct {
	TokensPerMinute   int     `mapstructure:"tokens_per_minute"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Graph  GraphConfig  `mapstructure:"graph"`
	Chunks ChunksConfig `mapstructure:"chunks"`
	Vector VectorConfig `mapstructure:"vector"`
	Cache  CacheConfig  `mapstructure:"cache"`
}

// GraphConfig 图数据库配置
type GraphConfig struct {
	Type     string `mapstructure:"type"` // memory | postgres
	DSN      string `mapstructure:"dsn"`  // type=postgres 时必填
	PoolSize int    `mapstructure:"pool_size"`
}

// ChunksConfig chunk 提供方存储配置
type ChunksConfig struct {
	Type string `mapstructure:"type"` // memory | postgres
	DSN  string `mapstructure:"dsn"`
}

// VectorConfig 向量索引配置（memory 为内置内存实现）
type VectorConfig struct {
	Type       string `mapstructure:"type"`
	Collection string `mapstructure:"collection"` // 默认索引名，空则 "default"
}

// CacheConfig 缓存配置（embedding 记忆化等）
type CacheConfig struct {
	Type       string `mapstructure:"type"` // memory | redis
	Addr       string `mapstructure:"addr"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TTL        string `mapstructure:"ttl"`         // 空则 1h
	MaxEntries int    `mapstructure:"max_entries"` // memory 后端的容量上限，<=0 默认 10000
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	if err := replaceEnvVars(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// replaceEnvVars 解析配置中形如 ${ENV_VAR} 的 API Key，
// 默认从环境变量 secret store 取值（vault 部署用 GRAPHRAG_SECRETS_PROVIDER=vault）
func replaceEnvVars(config *Config) error {
	store := secretStore()
	expand := func(providers map[string]ProviderConfig) {
		for provider, providerConfig := range providers {
			if strings.HasPrefix(providerConfig.APIKey, "$") {
				key := strings.TrimPrefix(strings.TrimSuffix(providerConfig.APIKey, "}"), "${")
				if val, err := store.Get(context.Background(), key); err == nil && val != "" {
					providerConfig.APIKey = val
					providers[provider] = providerConfig
				}
			}
		}
	}
	expand(config.Model.LLM.Providers)
	expand(config.Model.Embedding.Providers)
	return nil
}

// secretStore API Key 的解析来源；vault 初始化失败时回退环境变量
func secretStore() secrets.Store {
	if os.Getenv("GRAPHRAG_SECRETS_PROVIDER") == "vault" {
		store, err := secrets.NewStore(secrets.Config{
			Provider: "vault",
			Config: map[string]string{
				"address":     os.Getenv("VAULT_ADDR"),
				"token":       os.Getenv("VAULT_TOKEN"),
				"path_prefix": os.Getenv("VAULT_PATH_PREFIX"),
			},
		})
		if err == nil {
			return store
		}
	}
	return secrets.NewEnvStore()
}

// LoadAPIConfig 加载 API 配置（仅 configs/api.yaml）
func LoadAPIConfig() (*Config, error) {
	return LoadConfig("configs/api.yaml")
}

// LoadAPIConfigWithModel 加载 API 配置并合并 model 配置，便于 API 使用 LLM/Embedding
func LoadAPIConfigWithModel() (*Config, error) {
	cfg, err := LoadConfig("configs/api.yaml")
	if err != nil {
		return nil, err
	}
	modelCfg, err := LoadConfig("configs/model.yaml")
	if err == nil {
		cfg.Model = modelCfg.Model
	}
	return cfg, nil
}

// LoadWorkerConfigWithModel 加载 Worker 配置并合并 model 配置。
// model 路径解析为与 worker 配置同目录（configs/），避免 cwd 导致 model.yaml 未加载。
func LoadWorkerConfigWithModel() (*Config, error) {
	cfg, err := LoadConfig("configs/worker.yaml")
	if err != nil {
		return nil, err
	}
	modelPath := "configs/model.yaml"
	if absWorker, errAbs := filepath.Abs("configs/worker.yaml"); errAbs == nil {
		modelPath = filepath.Join(filepath.Dir(absWorker), "model.yaml")
	}
	modelCfg, err := LoadConfig(modelPath)
	if err == nil {
		cfg.Model = modelCfg.Model
	}
	return cfg, nil
}
