package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

var outputFormat string

// printStructured writes v as JSON or YAML when -o asks for it. It reports
// false for text output so the caller can print its own table.
func printStructured(w io.Writer, v any) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(outputFormat)) {
	case "", "text":
		return false, nil
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return true, fmt.Errorf("formatting output as JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return true, err
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, fmt.Errorf("formatting output as YAML: %w", err)
		}
		return true, enc.Close()
	default:
		return true, fmt.Errorf("unsupported output format %q (use text, json or yaml)", outputFormat)
	}
}
