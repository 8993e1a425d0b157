// Copyright 2025 The senseai Authors
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
package mock

import (
	"sync/atomic"

	"github.com/codefulcrum/senseai/ai"
)

// MockProvider pairs a MockEmbedder with a MockGenerator and records Close.
type MockProvider struct {
	embedder  *MockEmbedder
	generator *MockGenerator
	closes    atomic.Int32
}

// NewMockProvider returns a provider with deterministic embeddings and
// canned answers. Type-assert to *MockProvider to reach the test hooks.
func NewMockProvider() ai.AIProvider {
	return &MockProvider{
		embedder:  NewMockEmbedder(),
		generator: NewMockGenerator(),
	}
}

func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

func (p *MockProvider) AnswerGenerator() ai.AnswerGenerator {
	return p.generator
}

func (p *MockProvider) Close() error {
	p.closes.Add(1)
	return nil
}

// Closed reports whether Close has been called at least once.
func (p *MockProvider) Closed() bool {
	return p.closes.Load() > 0
}

func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

func (p *MockProvider) GetMockGenerator() *MockGenerator {
	return p.generator
}
