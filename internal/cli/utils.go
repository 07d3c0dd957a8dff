// Package cli provides CLI utilities for pdfsearch.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/hyperjump/pdfsearch/internal/models"
	"github.com/hyperjump/pdfsearch/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat returns the format named by s.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text or json)", s)
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	if len(response.Results) == 0 {
		msg := response.Message
		if msg == "" {
			msg = "no results found"
		}
		fmt.Fprintf(w, "\n%s for %q (%dms)\n", msg, response.Query, response.QueryTime)
		return nil
	}
	source := "engine"
	if response.Cached {
		source = "cache"
	}
	fmt.Fprintf(w, "\nFound %d results for %q in %dms (%s)\n\n", response.Total, response.Query, response.QueryTime, source)
	for i, result := range response.Results {
		writeOneResult(w, i+1, result)
	}
	return nil
}

func writeOneResult(w io.Writer, rank int, result models.SearchResult) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Score: %.4f | Category: %s\n", rank, result.Score, result.Category)
	fmt.Fprintf(w, "Title: %s\n", result.Title)
	if result.Description != "" {
		fmt.Fprintf(w, "%s\n", utils.TruncateWords(result.Description, 30))
	}
	fmt.Fprintf(w, "Download: %s\n", result.DownloadURL)
	fmt.Fprintln(w)
}

// WriteUploadResult writes the outcome of an upload.
func WriteUploadResult(w io.Writer, res *UploadResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintln(w, res.Message)
	fmt.Fprintf(w, "ID:       %s\n", res.ID)
	fmt.Fprintf(w, "Filename: %s\n", res.Filename)
	fmt.Fprintf(w, "Download: %s\n", res.DownloadURL)
	if res.Ticket != nil {
		fmt.Fprintf(w, "Ticket:   %s (%s, %d attempts)\n", res.Ticket.ID, res.Ticket.Status, res.Ticket.Attempts)
		if res.Ticket.LastError != "" {
			fmt.Fprintf(w, "Error:    %s\n", res.Ticket.LastError)
		}
	}
	return nil
}

// WriteStatus writes a status document as returned by the status endpoint.
func WriteStatus(w io.Writer, status map[string]interface{}, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	keys := make([]string, 0, len(status))
	for k := range status {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%-18s %s\n", k+":", formatStatusValue(k, status[k]))
	}
	return nil
}

func formatStatusValue(key string, v interface{}) string {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%v", k, val[k])
		}
		if len(parts) == 0 {
			return "-"
		}
		return strings.Join(parts, " ")
	case float64:
		if key == "disk_usage_bytes" && val >= 0 {
			return humanize.Bytes(uint64(val))
		}
		return fmt.Sprintf("%.0f", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
