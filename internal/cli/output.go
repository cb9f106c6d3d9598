// Package cli provides output and HTTP helpers for the skfed subcommands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/skfed/internal/assistant"
	"github.com/hyperjump/skfed/internal/importer"
	"github.com/hyperjump/skfed/internal/models"
	"github.com/hyperjump/skfed/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// WriteAnswer writes an assistant answer. With showContext the serialized context block is
// printed before the reply (text) or the whole answer is encoded (json); otherwise json
// output has the same shape as the HTTP success body.
func WriteAnswer(w io.Writer, ans *assistant.Answer, format OutputFormat, showContext bool) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if showContext {
			return enc.Encode(ans)
		}
		return enc.Encode(models.ChatResponse{Response: ans.Response})
	}
	if showContext {
		fmt.Fprintln(w, "--- Context ---")
		if ans.ContextBlock == "" {
			fmt.Fprintln(w, "(no data)")
		} else {
			fmt.Fprint(w, ans.ContextBlock)
		}
		fmt.Fprintln(w, "--- Response ---")
	}
	fmt.Fprintln(w, ans.Response)
	return nil
}

// WriteImportResult prints an import summary and each skipped row.
func WriteImportResult(w io.Writer, path string, res *importer.Result) {
	fmt.Fprintf(w, "Imported %s: %d event(s), %d announcement(s), %d registration(s)\n",
		path, res.Events, res.Announcements, res.Registrations)
	for _, skip := range res.Skipped {
		fmt.Fprintf(w, "  skipped %s row %d: %s\n", skip.Sheet, skip.Row, utils.Truncate(skip.Err, 120))
	}
}
