package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/codefulcrum/senseai"
	"github.com/codefulcrum/senseai/ai"
	"github.com/codefulcrum/senseai/ai/openai"
	"github.com/codefulcrum/senseai/conversation"
	"github.com/codefulcrum/senseai/core"
	"github.com/codefulcrum/senseai/httpapi"
	"github.com/codefulcrum/senseai/ingestion"
	"github.com/codefulcrum/senseai/session"
	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
)

var _ httpapi.Service = (*senseai.App)(nil)

// newProvider builds the AI provider; tests replace it with a mock.
var newProvider = func(cfg *ai.Config) (ai.AIProvider, error) {
	return openai.NewProvider(cfg)
}

// openApp opens the App described by the global flags.
func openApp(c *cli.Context, extra ...senseai.Option) (*senseai.App, error) {
	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithChatHost(c.String("chat-host")),
		ai.WithChatModel(c.String("chat-model")),
		ai.WithAPIKey(c.String("api-key")),
		ai.WithTemperature(c.Float64("temperature")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	policy := session.Policy{
		TTL:         c.Duration("session-ttl"),
		MaxMessages: c.Int("max-messages"),
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if c.Int("max-retries") <= 0 {
		return nil, fmt.Errorf("max-retries must be greater than 0")
	}
	if c.Int("retrieval-k") <= 0 {
		return nil, fmt.Errorf("retrieval-k must be greater than 0")
	}

	provider, err := newProvider(aiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI provider: %w", err)
	}

	opts := []senseai.Option{
		senseai.WithAIProvider(provider),
		senseai.WithPolicy(policy),
		senseai.WithStrictLoad(c.Bool("strict-load")),
		senseai.WithIngestionOptions(
			ingestion.WithRetry(c.Int("max-retries"), c.Duration("retry-delay")),
			ingestion.WithCallTimeout(c.Duration("call-timeout")),
		),
		senseai.WithEngineOptions(
			conversation.WithRetrievalK(c.Int("retrieval-k")),
			conversation.WithCallTimeout(c.Duration("call-timeout")),
		),
	}
	opts = append(opts, extra...)

	app, err := senseai.New(c.Context, c.String("data-dir"), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open data directory: %w", err)
	}
	return app, nil
}

// withProgress reports embedding progress on stderr for one-shot commands.
func withProgress() senseai.Option {
	return senseai.WithIngestionOptions(ingestion.WithProgress(ingestion.NewProgressTracker(os.Stderr).Report))
}

func requireArg(c *cli.Context, name string) (string, error) {
	arg := strings.TrimSpace(c.Args().First())
	if arg == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return arg, nil
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !strings.EqualFold(c.String("log-level"), "debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	extra := []senseai.Option{senseai.WithBackgroundIngestion(c.Bool("background"))}
	if size := c.Int("pool-size"); size > 0 {
		extra = append(extra, senseai.WithIngestionOptions(ingestion.WithPoolSize(size)))
	}
	app, err := openApp(c, extra...)
	if err != nil {
		return err
	}
	defer app.Close()

	server, err := httpapi.NewServer(app, httpapi.WithMaxUploadBytes(c.Int64("max-upload-bytes")))
	if err != nil {
		return err
	}
	return server.Run(ctx, c.String("addr"))
}

func addFileCommand(c *cli.Context) error {
	path, err := requireArg(c, "path")
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	app, err := openApp(c, withProgress())
	if err != nil {
		return err
	}
	defer app.Close()

	item, err := app.RegisterFile(c.Context, filepath.Base(path), f, c.String("owner"))
	if err != nil {
		return err
	}
	printItems(c.App.Writer, []*core.ContentItem{item})
	return ingestionResult(item)
}

func addURLCommand(c *cli.Context) error {
	rawURL, err := requireArg(c, "url")
	if err != nil {
		return err
	}

	app, err := openApp(c, withProgress())
	if err != nil {
		return err
	}
	defer app.Close()

	item, err := app.RegisterURL(c.Context, rawURL, c.String("owner"))
	if err != nil {
		return err
	}
	printItems(c.App.Writer, []*core.ContentItem{item})
	return ingestionResult(item)
}

// ingestionResult turns a failed ingestion into a non-zero exit.
func ingestionResult(item *core.ContentItem) error {
	if item.Status == core.StatusFailed {
		return fmt.Errorf("%w: %s", core.ErrIngestionFailed, item.LastError)
	}
	return nil
}

func listCommand(c *cli.Context) error {
	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	items, err := app.ListContent(c.Context, c.String("owner"))
	if err != nil {
		return err
	}
	printItems(c.App.Writer, items)
	return nil
}

func deleteCommand(c *cli.Context) error {
	id, err := requireArg(c, "id")
	if err != nil {
		return err
	}

	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.DeleteContent(c.Context, id, c.String("owner")); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "deleted %s\n", id)
	return nil
}

func reprocessCommand(c *cli.Context) error {
	id, err := requireArg(c, "id")
	if err != nil {
		return err
	}

	app, err := openApp(c, withProgress())
	if err != nil {
		return err
	}
	defer app.Close()

	item, err := app.Reprocess(c.Context, id, c.String("owner"))
	if err != nil {
		return err
	}
	printItems(c.App.Writer, []*core.ContentItem{item})
	return nil
}

func reindexCommand(c *cli.Context) error {
	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	start := time.Now()
	done := 0
	res, err := app.ReprocessAll(c.Context, c.String("owner"), func(item *core.ContentItem, err error) {
		done++
		status := "ready"
		if err != nil {
			status = "failed: " + err.Error()
		}
		fmt.Fprintf(c.App.ErrWriter, "[%d] %s %s\n", done, item.Name, status)
	})
	if err != nil {
		return err
	}

	elapsed := time.Since(start)
	fmt.Fprintf(c.App.Writer, "Reindexed %d items in %s (%d ready, %d failed)\n",
		res.Total, elapsed.Round(time.Millisecond), res.Ready, len(res.Failed))
	if len(res.Failed) > 0 {
		return fmt.Errorf("%w: %s", core.ErrIngestionFailed, strings.Join(res.Failed, ", "))
	}
	return nil
}

func chatCommand(c *cli.Context) error {
	id, err := requireArg(c, "id")
	if err != nil {
		return err
	}

	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	owner := c.String("owner")
	if err := app.CreateSession(c.Context, id, owner); err != nil {
		return err
	}

	if msg := c.String("message"); msg != "" {
		_, err := ask(c.Context, app, c.App.Writer, id, owner, msg)
		return err
	}

	scanner := bufio.NewScanner(c.App.Reader)
	fmt.Fprint(c.App.Writer, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Fprint(c.App.Writer, "> ")
			continue
		}
		terminal, err := ask(c.Context, app, c.App.Writer, id, owner, line)
		if err != nil {
			return err
		}
		if terminal {
			return nil
		}
		fmt.Fprint(c.App.Writer, "> ")
	}
	return scanner.Err()
}

// ask runs one turn, prints the reply and reports whether the session ended.
func ask(ctx context.Context, app *senseai.App, w io.Writer, id, owner, message string) (bool, error) {
	result, err := app.Chat(ctx, conversation.Request{SessionID: id, Message: message, Owner: owner})
	if err != nil {
		if errors.Is(err, core.ErrEmptyMessage) {
			return false, nil
		}
		return false, err
	}

	fmt.Fprintln(w, result.Content)
	for _, src := range result.Sources {
		fmt.Fprintf(w, "  [%s] %s\n", sourceLabel(src), snippet(src.Content, 80))
	}
	fmt.Fprintf(w, "(%d messages left, session ends in %s)\n",
		result.MessagesRemaining, result.SessionExpiresIn.Round(time.Second))
	return result.Terminal, nil
}

func sourceLabel(f core.Fragment) string {
	label := f.Metadata["source"]
	if page, ok := f.Metadata["page"]; ok {
		label += " p." + page
	}
	return label
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func printItems(w io.Writer, items []*core.ContentItem) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tSIZE\tOWNER\tSTATUS\tCREATED")
	for _, item := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			item.ID, item.Name, item.Type, item.Size, item.Owner, item.Status,
			item.CreatedAt.Local().Format(time.DateTime))
	}
	tw.Flush()
}
