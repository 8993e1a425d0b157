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


package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/codefulcrum/senseai/ai"
	"github.com/codefulcrum/senseai/conversation"
	"github.com/codefulcrum/senseai/ingestion"
	"github.com/codefulcrum/senseai/session"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	defaults := ai.DefaultConfig()
	policy := session.DefaultPolicy()
	retry := ingestion.DefaultRetryPolicy()

	return &cli.App{
		Name:  "senseai",
		Usage: "Chat with documents and web pages",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Usage:   "Directory holding the database, uploads and vector indexes",
				Value:   "./data",
				EnvVars: []string{"SENSEAI_DATA_DIR"},
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "API key for the embedding and chat services",
				EnvVars: []string{"SENSEAI_API_KEY", "OPENAI_API_KEY"},
			},
			&cli.StringFlag{
				Name:    "embedding-host",
				Usage:   "Embedding service host URL",
				Value:   defaults.EmbeddingHost,
				EnvVars: []string{"SENSEAI_EMBEDDING_HOST"},
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name",
				Value: defaults.EmbeddingModel,
			},
			&cli.StringFlag{
				Name:    "chat-host",
				Usage:   "Chat service host URL",
				Value:   defaults.ChatHost,
				EnvVars: []string{"SENSEAI_CHAT_HOST"},
			},
			&cli.StringFlag{
				Name:  "chat-model",
				Usage: "Chat model name",
				Value: defaults.ChatModel,
			},
			&cli.Float64Flag{
				Name:  "temperature",
				Usage: "Answer sampling temperature",
				Value: defaults.Temperature,
			},
			&cli.DurationFlag{
				Name:  "session-ttl",
				Usage: "How long a session accepts messages after creation",
				Value: policy.TTL,
			},
			&cli.IntFlag{
				Name:  "max-messages",
				Usage: "Messages accepted per session",
				Value: policy.MaxMessages,
			},
			&cli.DurationFlag{
				Name:  "call-timeout",
				Usage: "Timeout for each embedding, chat or fetch call (0 disables)",
				Value: 2 * time.Minute,
			},
			&cli.IntFlag{
				Name:  "max-retries",
				Usage: "Maximum attempts for failed embedding calls",
				Value: retry.MaxAttempts,
			},
			&cli.DurationFlag{
				Name:  "retry-delay",
				Usage: "Base delay for exponential backoff",
				Value: retry.BaseDelay,
			},
			&cli.IntFlag{
				Name:  "retrieval-k",
				Usage: "Fragments retrieved per question",
				Value: conversation.DefaultRetrievalK,
			},
			&cli.BoolFlag{
				Name:  "strict-load",
				Usage: "Fail on undecodable persisted session state instead of skipping it",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Aliases: []string{"a"},
						Usage:   "Listen address",
						Value:   ":8000",
						EnvVars: []string{"SENSEAI_ADDR"},
					},
					&cli.BoolFlag{
						Name:  "background",
						Usage: "Ingest uploads in the background and respond immediately",
						Value: true,
					},
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Background ingestion workers (0 uses half the CPUs)",
					},
					&cli.Int64Flag{
						Name:  "max-upload-bytes",
						Usage: "Largest accepted upload",
						Value: 64 << 20,
					},
				},
			},
			{
				Name:      "add-file",
				Usage:     "Register and ingest a document",
				ArgsUsage: "<path>",
				Action:    addFileCommand,
				Flags:     []cli.Flag{ownerFlag()},
			},
			{
				Name:      "add-url",
				Usage:     "Register and ingest a web page",
				ArgsUsage: "<url>",
				Action:    addURLCommand,
				Flags:     []cli.Flag{ownerFlag()},
			},
			{
				Name:   "list",
				Usage:  "List registered content",
				Action: listCommand,
				Flags:  []cli.Flag{ownerFlag()},
			},
			{
				Name:      "delete",
				Usage:     "Delete content together with its session",
				ArgsUsage: "<id>",
				Action:    deleteCommand,
				Flags:     []cli.Flag{ownerFlag()},
			},
			{
				Name:      "reprocess",
				Usage:     "Re-run ingestion from the retained source",
				ArgsUsage: "<id>",
				Action:    reprocessCommand,
				Flags:     []cli.Flag{ownerFlag()},
			},
			{
				Name:   "reindex",
				Usage:  "Re-run ingestion for all content, e.g. after changing the embedding model",
				Action: reindexCommand,
				Flags:  []cli.Flag{ownerFlag()},
			},
			{
				Name:      "chat",
				Usage:     "Ask questions about one content item",
				ArgsUsage: "<id>",
				Action:    chatCommand,
				Flags: []cli.Flag{
					ownerFlag(),
					&cli.StringFlag{
						Name:    "message",
						Aliases: []string{"m"},
						Usage:   "Ask a single question instead of reading questions from stdin",
					},
				},
			},
		},
	}
}

func ownerFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "owner",
		Aliases: []string{"o"},
		Usage:   "Owner tag (device id) to act as",
	}
}

func setupLogger(c *cli.Context) error {
	level, err := parseLevel(c.String("log-level"))
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", strings.ToLower(s))
	}
}
