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
	"errors"
	"fmt"
	"time"
)

// ErrConfiguration 配置错误：仅在启动时致命，请求期不得出现
var ErrConfiguration = errors.New("配置错误")

// Validate 校验解析引擎相关配置。权重表与阈值表的问题必须在启动时暴露，
// 不允许在请求中途才发现（请求期一律降级，不抛配置错误）。
func (c *Config) Validate() error {
	r := &c.Resolver

	if r.AdapterTimeout != "" {
		if _, err := time.ParseDuration(r.AdapterTimeout); err != nil {
			return fmt.Errorf("%w: resolver.adapter_timeout %q 非法: %v", ErrConfiguration, r.AdapterTimeout, err)
		}
	}
	if r.AmbiguityEpsilon < 0 {
		return fmt.Errorf("%w: resolver.ambiguity_epsilon 不可为负", ErrConfiguration)
	}
	if r.VectorMinSimilarity < 0 || r.VectorMinSimilarity > 1 {
		return fmt.Errorf("%w: resolver.vector_min_similarity 必须在 [0,1]", ErrConfiguration)
	}
	if r.ExpansionDiscount < 0 || r.ExpansionDiscount > 1 {
		return fmt.Errorf("%w: resolver.expansion_discount 必须在 [0,1]", ErrConfiguration)
	}
	if r.TypePenalty < 0 || r.TypePenalty > 1 {
		return fmt.Errorf("%w: resolver.type_penalty 必须在 [0,1]", ErrConfiguration)
	}

	if err := validateWeights("resolver.coreference.weights", r.Coreference.Weights); err != nil {
		return err
	}
	if err := validateWeights("resolver.linking.weights", r.Linking.Weights); err != nil {
		return err
	}
	if err := validateWeights("resolver.retrieval.weights", r.Retrieval.Weights); err != nil {
		return err
	}

	if err := validateThreshold("resolver.linking.default", r.Linking.DefaultAcceptAt, r.Linking.DefaultReviewAt); err != nil {
		return err
	}
	for typ, th := range r.Linking.TypeThresholds {
		if err := validateThreshold("resolver.linking.type_thresholds."+typ, th.AcceptAt, th.ReviewAt); err != nil {
			return err
		}
	}

	cr := r.Coreference
	if cr.RewriteCoverage < 0 || cr.RewriteCoverage > 1 ||
		cr.LocalCoverage < 0 || cr.LocalCoverage > 1 ||
		cr.AliasCoverage < 0 || cr.AliasCoverage > 1 {
		return fmt.Errorf("%w: resolver.coreference 覆盖率阈值必须在 [0,1]", ErrConfiguration)
	}
	if cr.LLMTimeout != "" {
		if _, err := time.ParseDuration(cr.LLMTimeout); err != nil {
			return fmt.Errorf("%w: resolver.coreference.llm_timeout %q 非法: %v", ErrConfiguration, cr.LLMTimeout, err)
		}
	}

	if c.Retrieval().CaveatBelow < 0 || c.Retrieval().CaveatBelow > 1 {
		return fmt.Errorf("%w: resolver.retrieval.caveat_below 必须在 [0,1]", ErrConfiguration)
	}
	return nil
}

// Retrieval 返回检索配置（便于 Validate 之外的调用方取默认）
func (c *Config) Retrieval() RetrievalConfig {
	return c.Resolver.Retrieval
}

// validateWeights 权重不要求归一化，但必须有限且非负
func validateWeights(path string, w WeightTable) error {
	for name, v := range w.Sources {
		if v < 0 {
			return fmt.Errorf("%w: %s.sources.%s 不可为负", ErrConfiguration, path, name)
		}
	}
	for name, v := range w.Features {
		if v < 0 {
			return fmt.Errorf("%w: %s.features.%s 不可为负", ErrConfiguration, path, name)
		}
	}
	return nil
}

func validateThreshold(path string, acceptAt, reviewAt float64) error {
	if acceptAt < 0 || reviewAt < 0 {
		return fmt.Errorf("%w: %s 阈值不可为负", ErrConfiguration, path)
	}
	if acceptAt != 0 && reviewAt > acceptAt {
		return fmt.Errorf("%w: %s review_at(%v) 不可大于 accept_at(%v)", ErrConfiguration, path, reviewAt, acceptAt)
	}
	return nil
}
