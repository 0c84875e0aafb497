package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/PentesterFlow/PanelProbe/pkg/prober"
)

// parseHeaders turns key=value (or "Key: value") pairs into a header map.
func parseHeaders(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		sep := "="
		if c := strings.Index(pair, ":"); c >= 0 {
			if e := strings.Index(pair, "="); e < 0 || c < e {
				sep = ":"
			}
		}
		key, value, ok := strings.Cut(pair, sep)
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid header %q, want key=value", pair)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}

// parseSteps parses type=ep1,ep2 step definitions.
func parseSteps(defs []string) ([]prober.Step, error) {
	out := make([]prober.Step, 0, len(defs))
	for _, def := range defs {
		typ, list, ok := strings.Cut(def, "=")
		typ = strings.TrimSpace(typ)
		if !ok || typ == "" {
			return nil, fmt.Errorf("invalid step %q, want type=endpoint[,endpoint]", def)
		}
		step := prober.Step{Type: typ}
		for _, ep := range strings.Split(list, ",") {
			if ep = strings.TrimSpace(ep); ep != "" {
				step.Endpoints = append(step.Endpoints, ep)
			}
		}
		if len(step.Endpoints) == 0 {
			return nil, fmt.Errorf("step %q has no endpoints", typ)
		}
		out = append(out, step)
	}
	return out, nil
}

// parsePayload decodes a JSON object payload. Empty input means none.
func parsePayload(raw string) (map[string]interface{}, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("invalid --payload: %w", err)
	}
	return out, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
