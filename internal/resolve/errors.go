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

package resolve

import (
	"errors"
)

// 管线错误分类。除启动期配置错误（pkg/config.ErrConfiguration）外
// 都是可恢复的：失败的来源当作空结果，管线始终产出合法的低置信结果。
var (
	// ErrSourceUnavailable 单个候选源失败，该来源本轮不贡献候选
	ErrSourceUnavailable = errors.New("候选源不可用")
	// ErrUpstreamTimeout LLM / embedding 调用超出预算，走回退
	ErrUpstreamTimeout = errors.New("上游调用超时")
	// ErrAmbiguousDecision top-2 融合分差在 epsilon 内，转 review
	ErrAmbiguousDecision = errors.New("决策存在歧义")
	// ErrMalformedResponse LLM 输出不符合约定格式，丢弃并按来源不可用处理
	ErrMalformedResponse = errors.New("上游响应格式非法")
)
