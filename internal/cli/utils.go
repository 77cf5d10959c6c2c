// Package cli provides output formatting and an HTTP client for the Shiori CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/hyperjump/shiori/internal/indexer"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a --output flag value to a format.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteQueryResults writes retrieval results to w in the given format.
func WriteQueryResults(w io.Writer, response *models.QueryResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	if len(response.Results) == 0 {
		fmt.Fprintf(w, "No notes matched %q\n", response.Query)
		return nil
	}
	fmt.Fprintf(w, "\nFound %d result(s) for %q\n\n", len(response.Results), response.Query)
	for i, r := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "[%d] %s (chunk %d/%d) | Score: %.4f\n",
			i+1, r.FilePath, r.ChunkIndex+1, r.TotalChunks, r.Score)
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(strings.TrimSpace(r.Text), 300))
	}
	return nil
}

// WriteChatResponse writes an answer followed by a one-line run summary.
func WriteChatResponse(w io.Writer, response *models.ChatResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintln(w, strings.TrimSpace(response.Message.Content))
	fmt.Fprintf(w, "\n[%s after %d turn(s), %d search(es), %d tokens]\n",
		response.State, response.Turns, response.ToolCalls, response.Usage.TotalTokens)
	return nil
}

// WriteReport writes the outcome of an index build.
func WriteReport(w io.Writer, report *indexer.Report, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "Indexed %d of %d file(s) into %d chunk(s) in %s\n",
		report.Indexed, report.Files, report.Chunks, report.Duration.Round(time.Millisecond))
	if report.Skipped > 0 {
		fmt.Fprintf(w, "Skipped %d empty file(s)\n", report.Skipped)
	}
	if report.Dropped > 0 {
		fmt.Fprintf(w, "Dropped %d chunk(s) with zero embeddings\n", report.Dropped)
	}
	if len(report.Failed) > 0 {
		fmt.Fprintf(w, "Failed %d file(s):\n", len(report.Failed))
		for _, f := range report.Failed {
			fmt.Fprintf(w, "  %s: %v\n", f.Path, f.Err)
		}
	}
	return nil
}

// WriteStatus writes a status document. Text output is one key per line.
func WriteStatus(w io.Writer, status map[string]interface{}, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	writeFlat(w, "", status)
	return nil
}

func writeFlat(w io.Writer, prefix string, m map[string]interface{}) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		name := k
		if prefix != "" {
			name = prefix + "." + k
		}
		if nested, ok := m[k].(map[string]interface{}); ok {
			writeFlat(w, name, nested)
			continue
		}
		fmt.Fprintf(w, "%-32s %v\n", name+":", m[k])
	}
}
