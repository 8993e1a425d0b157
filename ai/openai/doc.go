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


// Package openai embeds fragments and answers questions through OpenAI or an
// OpenAI-compatible server such as Ollama or vLLM, using langchaingo.
//
// Hosts are normalized to end in /v1. An empty API key is sent as "none",
// which local servers accept.
//
//	provider, err := openai.NewProvider(ai.NewConfig(
//	    ai.WithHost("http://localhost:11434"),
//	    ai.WithEmbeddingModel("nomic-embed-text"),
//	    ai.WithChatModel("llama3.1"),
//	))
//	if err != nil {
//	    return err
//	}
//	defer provider.Close()
package openai
