package app

import (
	"fmt"
	"strings"
	"time"

	"graphrag-platform/internal/model/embedding"
	"graphrag-platform/internal/model/llm"
	"graphrag-platform/internal/storage/cache"
	"graphrag-platform/pkg/config"
)

// NewLLMClientFromConfig 根据 config.Model 的 defaults.llm 创建 LLM 客户端
// （如 "qwen.qwen_plus"）。配置了 rate_limits 时包一层限流客户端。
func NewLLMClientFromConfig(cfg *config.Config) (llm.Client, error) {
	if cfg == nil || cfg.Model.Defaults.LLM == "" {
		return nil, nil
	}
	provider, modelKey, err := parseDefaultKey(cfg.Model.Defaults.LLM)
	if err != nil {
		return nil, err
	}
	pc, ok := cfg.Model.LLM.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("LLM provider %q 未配置", provider)
	}
	mi, ok := pc.Models[modelKey]
	if !ok {
		return nil, fmt.Errorf("LLM model %q 未在 provider %q 中配置", modelKey, provider)
	}
	if pc.APIKey == "" {
		return nil, fmt.Errorf("LLM provider %q 的 api_key 未配置", provider)
	}
	client, err := llm.NewClient(provider, mi.Name, pc.APIKey, pc.BaseURL)
	if err != nil {
		return nil, err
	}
	if len(cfg.RateLimits.LLM) > 0 {
		return llm.NewRateLimitedClient(client, llm.NewRateLimiterFromConfig(cfg.RateLimits)), nil
	}
	return client, nil
}

// NewEmbedderFromConfig 根据 config.Model 的 defaults.embedding 创建 Embedder。
// cacheStore 不为 nil 时包一层记忆化，避免重复向量化消耗配额。
func NewEmbedderFromConfig(cfg *config.Config, cacheStore cache.Store) (embedding.Embedder, error) {
	if cfg == nil || cfg.Model.Defaults.Embedding == "" {
		return nil, nil
	}
	provider, modelKey, err := parseDefaultKey(cfg.Model.Defaults.Embedding)
	if err != nil {
		return nil, err
	}
	pc, ok := cfg.Model.Embedding.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("Embedding provider %q 未配置", provider)
	}
	mi, ok := pc.Models[modelKey]
	if !ok {
		return nil, fmt.Errorf("Embedding model %q 未在 provider %q 中配置", modelKey, provider)
	}
	dimension := mi.Dimension
	if dimension <= 0 {
		dimension = 1536
	}
	embedder, err := embedding.NewEmbedder(provider, pc, mi.Name, dimension)
	if err != nil {
		return nil, err
	}
	if cacheStore != nil {
		ttl := parseDuration(cfg.Storage.Cache.TTL, time.Hour)
		return embedding.NewCachedEmbedder(embedder, cacheStore, ttl), nil
	}
	return embedder, nil
}

func parseDefaultKey(key string) (provider, modelKey string, err error) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("default key 格式应为 provider.model_key，如 qwen.qwen_plus，当前: %q", key)
	}
	return parts[0], parts[1], nil
}

// parseDuration 解析时长字符串，无效或空时返回 defaultVal
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
