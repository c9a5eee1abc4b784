package main

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/chakssp/convergd/pkg/identity"
	"github.com/chakssp/convergd/pkg/normalize"
)

var resolveQuery string

// lookupCmd resolves an external identifier to a normalized confidence
var lookupCmd = &cobra.Command{
	Use:   "lookup <external-id>",
	Short: "Look up the normalized confidence for an external identifier",
	Long: `Look up the normalized confidence for an external identifier against
the daemon's current identity mapping.

The lookup tries exact, normalized, and fuzzy matching in order. An
unmatched identifier reports a zero score with match kind "none".

Examples:
  cvg lookup doc-42
  cvg lookup report-final.md`,
	Args: cobra.ExactArgs(1),
	RunE: runLookup,
}

func runLookup(cmd *cobra.Command, args []string) error {
	var conf normalize.NormalizedConfidence
	if err := getJSON("/api/v1/confidence/"+url.PathEscape(args[0]), &conf); err != nil {
		return err
	}
	return printJSON(conf)
}

// ResolveResponse matches internal/server handlers.
type ResolveResponse struct {
	Records     int `json:"records"`
	Keys        int `json:"keys"`
	MappingSize int `json:"mapping_size"`
}

// resolveCmd rebuilds the daemon's identity mapping
var resolveCmd = &cobra.Command{
	Use:   "resolve [records.json]",
	Short: "Rebuild the identity mapping from external records",
	Long: `Rebuild the daemon's identity mapping from external search records.

The input is a JSON document with a record list, or a bare record array:

  {
    "records": [
      {"external_id": "doc-1", "raw_score": 28.5, "payload": {"fileName": "report.md"}}
    ]
  }

With --from-search the candidates are pulled from the daemon's vector
store instead of the input.

Examples:
  cvg resolve records.json
  cat records.json | cvg resolve -
  cvg resolve --from-search "quarterly strategy"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveQuery, "from-search", "", "resolve from a vector search instead of input records")
}

type resolveInput struct {
	Records    []identity.ExternalRecord `json:"records,omitempty"`
	FromSearch string                    `json:"from_search,omitempty"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	input := resolveInput{FromSearch: resolveQuery}

	if resolveQuery == "" {
		content, err := readInput(args)
		if err != nil {
			return err
		}

		var doc resolveInput
		if err := json.Unmarshal(content, &doc); err == nil && len(doc.Records) > 0 {
			input.Records = doc.Records
		} else if err := json.Unmarshal(content, &input.Records); err != nil {
			return fmt.Errorf("input is neither a record document nor a record array: %w", err)
		}
	}

	var resp ResolveResponse
	if err := postJSON("/api/v1/identity/resolve", input, &resp); err != nil {
		return err
	}
	return printJSON(resp)
}
