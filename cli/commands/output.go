package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// render writes v in the selected output format. text is called for the
// text format.
func render(w io.Writer, format string, v interface{}, text func() error) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		out, err := toYAML(v)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	default:
		return text()
	}
}

// toYAML encodes v through its JSON form so custom MarshalJSON methods and
// json tags shape the YAML document too.
func toYAML(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode output: %w", err)
	}
	var doc interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to encode output: %w", err)
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode output: %w", err)
	}
	return out, nil
}
