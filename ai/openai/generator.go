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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/codefulcrum/senseai/ai"
	"github.com/codefulcrum/senseai/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrNoChoices is returned when the model response carries no choices.
var ErrNoChoices = errors.New("model returned no choices")

// Generator implements ai.AnswerGenerator using OpenAI-compatible chat APIs.
type Generator struct {
	client      llms.Model
	temperature float64
	logger      *slog.Logger
}

func newGenerator(config *ai.Config, client *http.Client) (*Generator, error) {
	llm, err := openai.New(
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken(config.Token()),
		openai.WithModel(config.ChatModel),
		openai.WithHTTPClient(client),
	)
	if err != nil {
		return nil, err
	}

	return &Generator{
		client:      llm,
		temperature: config.Temperature,
		logger:      slog.Default().With("component", "openai-generator"),
	}, nil
}

// CondenseQuestion rewrites question into a standalone question.
func (g *Generator) CondenseQuestion(ctx context.Context, question string, history []core.Exchange) (string, error) {
	transcript := formatHistory(history)
	if transcript == "" {
		return question, nil
	}

	prompt := fmt.Sprintf(condenseQuestionTemplate, transcript, question)
	standalone, err := g.complete(ctx, []llms.MessageContent{
		textMessage(llms.ChatMessageTypeHuman, prompt),
	})
	if err != nil {
		g.logger.Error("failed to condense question", "err", err)
		return "", err
	}

	standalone = strings.TrimSpace(standalone)
	if standalone == "" {
		return question, nil
	}
	g.logger.Debug("condensed question", "original", question, "standalone", standalone)
	return standalone, nil
}

// GenerateAnswer answers question from the fragments. Every fragment passed
// in is placed in the prompt, so all of them are reported as sources.
func (g *Generator) GenerateAnswer(ctx context.Context, question string, fragments []core.Fragment, history []core.Exchange) (*ai.Answer, error) {
	content := make([]llms.MessageContent, 0, len(history)*2+2)
	content = append(content, textMessage(llms.ChatMessageTypeSystem,
		fmt.Sprintf(answerSystemTemplate, formatContext(fragments))))

	for _, ex := range history {
		if ex.Input != "" {
			content = append(content, textMessage(llms.ChatMessageTypeHuman, ex.Input))
		}
		if ex.Output != "" {
			content = append(content, textMessage(llms.ChatMessageTypeAI, ex.Output))
		}
	}
	content = append(content, textMessage(llms.ChatMessageTypeHuman, question))

	text, err := g.complete(ctx, content)
	if err != nil {
		g.logger.Error("failed to generate answer", "fragments", len(fragments), "err", err)
		return nil, err
	}

	return &ai.Answer{
		Text:    strings.TrimSpace(text),
		Sources: fragments,
	}, nil
}

func (g *Generator) complete(ctx context.Context, content []llms.MessageContent) (string, error) {
	response, err := g.client.GenerateContent(ctx, content, llms.WithTemperature(g.temperature))
	if err != nil {
		return "", err
	}
	if len(response.Choices) < 1 {
		return "", ErrNoChoices
	}
	return response.Choices[0].Content, nil
}

func textMessage(role llms.ChatMessageType, text string) llms.MessageContent {
	return llms.MessageContent{
		Role: role,
		Parts: []llms.ContentPart{
			llms.TextPart(text),
		},
	}
}
