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
	"testing"
	"time"
)

// fakeClient 测试用的固定回复客户端
type fakeClient struct {
	reply string
	calls int
}

func (f *fakeClient) Generate(prompt string, options GenerateOptions) (string, error) {
	return f.GenerateWithContext(context.Background(), prompt, options)
}

func (f *fakeClient) GenerateWithContext(ctx context.Context, prompt string, options GenerateOptions) (string, error) {
	f.calls++
	return f.reply, nil
}

func (f *fakeClient) Chat(messages []Message, options GenerateOptions) (string, error) {
	return f.ChatWithContext(context.Background(), messages, options)
}

func (f *fakeClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	f.calls++
	return f.reply, nil
}

func (f *fakeClient) Model() string    { return "fake" }
func (f *fakeClient) Provider() string { return "fake" }
func (f *fakeClient) SetModel(string)  {}
func (f *fakeClient) SetAPIKey(string) {}

func TestRateLimiterConcurrencyCap(t *testing.T) {
	l := NewRateLimiter(map[string]LimitConfig{
		"fake": {MaxConcurrent: 1},
	}, nil)
	ctx := context.Background()

	if err := l.Wait(ctx, "fake", 10); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	// 并发 slot 已满，第二次 Wait 应阻塞到超时
	timeoutCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := l.Wait(timeoutCtx, "fake", 10); err == nil {
		t.Fatal("并发上限下第二次 Wait 应超时")
	}

	l.Release("fake")
	if err := l.Wait(ctx, "fake", 10); err != nil {
		t.Fatalf("Release 后 Wait: %v", err)
	}
}

func TestRateLimiterUnknownProviderUsesDefaults(t *testing.T) {
	l := NewRateLimiter(nil, &LimitConfig{MaxConcurrent: 2})
	ctx := context.Background()

	if err := l.Wait(ctx, "unknown", 1); err != nil {
		t.Fatalf("未配置的 provider 应回退默认配置: %v", err)
	}
	l.Release("unknown")
}

func TestRateLimiterTokenAccounting(t *testing.T) {
	l := NewRateLimiter(map[string]LimitConfig{"fake": {}}, nil)
	l.RecordTokenUsage("fake", 128)
	l.RecordTokenUsage("fake", 64)
	if got := l.UsedThisMinute("fake"); got != 192 {
		t.Fatalf("UsedThisMinute = %d, 期望 192", got)
	}
}

func TestRateLimitedClientPassThrough(t *testing.T) {
	inner := &fakeClient{reply: "好的"}
	c := NewRateLimitedClient(inner, nil)

	got, err := c.ChatWithContext(context.Background(), []Message{{Role: "user", Content: "你好"}}, GenerateOptions{})
	if err != nil {
		t.Fatalf("ChatWithContext: %v", err)
	}
	if got != "好的" || inner.calls != 1 {
		t.Fatalf("透传失败: %q calls=%d", got, inner.calls)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := estimateTokens("", 0); got != 1 {
		t.Fatalf("空输入至少 1 token, got %d", got)
	}
	if got := estimateTokens("abcdefgh", 100); got != 102 {
		t.Fatalf("estimateTokens = %d, 期望 102", got)
	}
}
