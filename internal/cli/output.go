// Package cli formats classification results, disease lists and status for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/medmatch/internal/models"
	"github.com/hyperjump/medmatch/internal/ranking"
	"github.com/hyperjump/medmatch/pkg/utils"
)

// OutputFormat selects text or JSON output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json".
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteClassification writes a classification response. Text output adds a
// confidence label per result; JSON output is the API response unchanged.
func WriteClassification(w io.Writer, resp *models.ClassificationResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	if len(resp.Results) == 0 {
		fmt.Fprintf(w, "\nNo diseases to compare against (%dms)\n", resp.QueryTime)
		return nil
	}
	fmt.Fprintf(w, "\n%d candidate diseases in %dms\n\n", len(resp.Results), resp.QueryTime)
	for i, r := range resp.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "#%d %s | Score: %.4f (%s)\n", i+1, r.DiseaseName, r.Score, ranking.ConfidenceLabel(r.Score))
		fmt.Fprintf(w, "Best phrase: %s\n", r.BestPhrase)
	}
	fmt.Fprintln(w)
	return nil
}

// WriteDiseases writes the catalog listing.
func WriteDiseases(w io.Writer, diseases []models.Disease, format OutputFormat) error {
	if format == OutputJSON {
		if diseases == nil {
			diseases = []models.Disease{}
		}
		return writeJSON(w, map[string]interface{}{"diseases": diseases})
	}
	fmt.Fprintf(w, "%d diseases\n", len(diseases))
	for _, d := range diseases {
		first := strings.SplitN(strings.TrimSpace(d.Description), "\n", 2)[0]
		fmt.Fprintf(w, "  [%d] %s: %s\n", d.ID, d.Name, utils.Truncate(first, 60))
	}
	return nil
}

// WriteStatus writes a status map. Text output lists keys in sorted order.
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
		if nested, ok := status[k].(map[string]interface{}); ok {
			fmt.Fprintf(w, "%s:\n", k)
			sub := make([]string, 0, len(nested))
			for nk := range nested {
				sub = append(sub, nk)
			}
			sort.Strings(sub)
			for _, nk := range sub {
				fmt.Fprintf(w, "  %s: %v\n", nk, nested[nk])
			}
			continue
		}
		fmt.Fprintf(w, "%s: %v\n", k, status[k])
	}
	return nil
}
