// Package filter applies jq expressions to provider responses for the CLI's --jq flag.
package filter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"
)

// Apply runs expression against data. An empty expression returns data unchanged.
// A single result is returned as is; several results are returned as a slice.
func Apply(data any, expression string) (any, error) {
	expression = normalize(expression)
	if expression == "" {
		return data, nil
	}

	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}

	results, err := run(query, data)
	if err != nil {
		// Listings wrap their items in "results"; let ".[]" style queries reach them.
		if items, ok := listingItems(data, expression); ok {
			if fallback, fallbackErr := run(query, items); fallbackErr == nil {
				return collapse(fallback), nil
			}
		}
		return nil, err
	}
	return collapse(results), nil
}

// ApplyToJSON applies expression to raw JSON and returns the indented result.
func ApplyToJSON(raw []byte, expression string) ([]byte, error) {
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	result, err := Apply(data, expression)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(result, "", "  ")
}

// normalize undoes zsh's escaping of "!" inside single quotes.
func normalize(expression string) string {
	return strings.TrimSpace(strings.ReplaceAll(expression, `\!`, `!`))
}

func run(query *gojq.Query, data any) ([]any, error) {
	iter := query.Run(data)

	var results []any
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return nil, fmt.Errorf("filter error: %w", err)
		}
		results = append(results, v)
	}
	return results, nil
}

func collapse(results []any) any {
	if len(results) == 1 {
		return results[0]
	}
	return results
}

func listingItems(data any, expression string) ([]any, bool) {
	if !strings.HasPrefix(expression, ".[]") && !strings.HasPrefix(expression, "[.[]") {
		return nil, false
	}
	m, ok := data.(map[string]any)
	if !ok {
		return nil, false
	}
	items, ok := m["results"].([]any)
	return items, ok
}
