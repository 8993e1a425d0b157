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


// Package ai provides abstractions for the AI services senseai depends on.
//
// Two capabilities are consumed as black boxes:
//
//   - Embedder: turns chunk and question text into vectors
//   - AnswerGenerator: condenses follow-up questions and writes grounded answers
//
// AIProvider bundles both so they share configuration and lifecycle.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible APIs through langchaingo
//   - ai/mock: deterministic test doubles
//
// Public constructors in ai/openai return interface types. The mock package
// returns concrete types so tests can inject behavior and count calls;
// mock.NewMockProvider returns the interface and exposes GetMockEmbedder and
// GetMockGenerator for assertions.
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithAPIKey(os.Getenv("SENSEAI_API_KEY")))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
package ai
