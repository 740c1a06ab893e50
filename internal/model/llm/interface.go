package llm

import (
	"context"
)

// Client LLM 客户端接口。消解引擎用它做指代改写兜底与答案生成。
type Client interface {
	// Generate 生成文本
	Generate(prompt string, options GenerateOptions) (string, error)
	// GenerateWithContext 使用上下文生成文本
	GenerateWithContext(ctx context.Context, prompt string, options GenerateOptions) (string, error)
	// Chat 聊天
	Chat(messages []Message, options GenerateOptions) (string, error)
	// ChatWithContext 使用上下文聊天
	ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error)
	// Model 返回模型名称
	Model() string
	// Provider 返回提供商名称
	Provider() string
	// SetModel 设置模型
	SetModel(model string)
	// SetAPIKey 设置 API Key
	SetAPIKey(apiKey string)
}

// GenerateOptions 生成选项
type GenerateOptions struct {
	Temperature float64  `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
	TopP        float64  `json:"top_p"`
	Stop        []string `json:"stop"`
	// JSONMode 要求模型输出合法 JSON（OpenAI 兼容端点的 response_format）
	JSONMode bool `json:"json_mode"`
}

// Message 聊天消息
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// NewClient 创建 LLM 客户端；qwen 等 OpenAI 兼容提供商通过 baseURL 走同一实现
func NewClient(provider, model, apiKey, baseURL string) (Client, error) {
	switch provider {
	case "openai", "qwen", "deepseek", "":
		return NewOpenAIClientWithBaseURL(provider, model, apiKey, baseURL)
	default:
		return NewOpenAIClientWithBaseURL(provider, model, apiKey, baseURL)
	}
}
