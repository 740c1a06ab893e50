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
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
api:
  port: 9000
  host: "127.0.0.1"
resolver:
  adapter_timeout: "3s"
  top_n: 10
  linking:
    default_accept_at: 0.85
    default_review_at: 0.6
    type_thresholds:
      person:
        accept_at: 0.9
        review_at: 0.7
log:
  level: "debug"
`
	path := filepath.Join(dir, "test.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port: got %d", cfg.API.Port)
	}
	if cfg.Resolver.AdapterTimeout != "3s" {
		t.Errorf("Resolver.AdapterTimeout: got %q", cfg.Resolver.AdapterTimeout)
	}
	th, ok := cfg.Resolver.Linking.TypeThresholds["person"]
	if !ok {
		t.Fatalf("TypeThresholds: person 缺失")
	}
	if th.AcceptAt != 0.9 || th.ReviewAt != 0.7 {
		t.Errorf("TypeThresholds person: got %+v", th)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidate_InvalidThreshold(t *testing.T) {
	cfg := &Config{}
	cfg.Resolver.Linking.DefaultAcceptAt = 0.6
	cfg.Resolver.Linking.DefaultReviewAt = 0.8
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate: review_at > accept_at 应报错")
	}
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("Validate: 期望 ErrConfiguration，got %v", err)
	}
}

func TestValidate_InvalidTimeout(t *testing.T) {
	cfg := &Config{}
	cfg.Resolver.AdapterTimeout = "not-a-duration"
	if err := cfg.Validate(); !errors.Is(err, ErrConfiguration) {
		t.Errorf("Validate: 期望 ErrConfiguration，got %v", err)
	}
}

func TestValidate_NegativeWeight(t *testing.T) {
	cfg := &Config{}
	cfg.Resolver.Linking.Weights = WeightTable{Sources: map[string]float64{"vector": -1}}
	if err := cfg.Validate(); !errors.Is(err, ErrConfiguration) {
		t.Errorf("Validate: 期望 ErrConfiguration，got %v", err)
	}
}
