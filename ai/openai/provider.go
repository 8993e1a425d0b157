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
package openai

import (
	"log/slog"
	"net/http"

	"github.com/codefulcrum/senseai/ai"
)

// Provider serves embeddings and answers from OpenAI-compatible endpoints.
// Both services share one HTTP client so Close can drop pooled connections.
type Provider struct {
	embedder  *Embedder
	generator *Generator
	client    *http.Client
	logger    *slog.Logger
}

// NewProvider validates config and builds the embedder and generator.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client := &http.Client{}
	embedder, err := newEmbedder(config, client)
	if err != nil {
		return nil, err
	}
	generator, err := newGenerator(config, client)
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("component", "openai-provider")
	logger.Debug("created provider",
		"embedding_host", config.EmbeddingHost, "embedding_model", config.EmbeddingModel,
		"chat_host", config.ChatHost, "chat_model", config.ChatModel)

	return &Provider{
		embedder:  embedder,
		generator: generator,
		client:    client,
		logger:    logger,
	}, nil
}

func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

func (p *Provider) AnswerGenerator() ai.AnswerGenerator {
	return p.generator
}

// Close drops idle connections held by the shared client.
func (p *Provider) Close() error {
	p.logger.Debug("closing provider")
	p.client.CloseIdleConnections()
	return nil
}
