package embedding

import (
	"context"
	"fmt"

	"graphrag-platform/pkg/config"
)

// Embedder 向量化接口
type Embedder interface {
	// Embed 对文本做向量化，返回与 texts 一一对应的向量
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	// Model 返回模型名称
	Model() string
	// Dimension 返回向量维度
	Dimension() int
}

// NewEmbedder 按配置创建 Embedder（OpenAI 兼容端点共用一个实现）
func NewEmbedder(provider string, cfg config.ProviderConfig, model string, dimension int) (Embedder, error) {
	switch provider {
	case "openai", "qwen", "":
		return NewOpenAIEmbedder(cfg.APIKey, cfg.BaseURL, model, dimension), nil
	default:
		return nil, fmt.Errorf("不支持的 embedding 提供商: %s", provider)
	}
}
