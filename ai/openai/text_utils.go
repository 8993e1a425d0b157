package openai

import (
	"strings"

	"github.com/codefulcrum/senseai/core"
)

// formatHistory renders exchanges as "Human:"/"Assistant:" lines, skipping
// empty sides.
func formatHistory(history []core.Exchange) string {
	var sb strings.Builder
	for _, ex := range history {
		if ex.Input != "" {
			sb.WriteString("Human: ")
			sb.WriteString(ex.Input)
			sb.WriteString("\n")
		}
		if ex.Output != "" {
			sb.WriteString("Assistant: ")
			sb.WriteString(ex.Output)
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// formatContext joins fragment contents with blank lines.
func formatContext(fragments []core.Fragment) string {
	parts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		text := strings.TrimSpace(f.Content)
		if text == "" {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n")
}
