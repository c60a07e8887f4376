package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ozadari/unipop/internal/application/commands"
	"github.com/ozadari/unipop/internal/domain/graph"
)

// parseWhere parses key:op:value. Set operators take comma separated values
// and range operators take low,high.
func parseWhere(exprs []string) ([]graph.Predicate, error) {
	preds := make([]graph.Predicate, 0, len(exprs))
	for _, expr := range exprs {
		parts := strings.SplitN(expr, ":", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid --where %q (want key:op:value)", expr)
		}
		op := graph.Operator(parts[1])
		var raw string
		if len(parts) == 3 {
			raw = parts[2]
		}

		var value any
		switch op {
		case graph.OpExists, graph.OpNotExists:
		case graph.OpWithin, graph.OpWithout:
			items := strings.Split(raw, ",")
			list := make([]any, len(items))
			for i, item := range items {
				list[i] = parseScalar(item)
			}
			value = list
		case graph.OpBetween, graph.OpInside, graph.OpOutside:
			low, high, ok := strings.Cut(raw, ",")
			if !ok {
				return nil, fmt.Errorf("invalid --where %q (%s wants low,high)", expr, op)
			}
			value = []any{parseScalar(low), parseScalar(high)}
		default:
			value = parseScalar(raw)
		}
		preds = append(preds, graph.Has(parts[0], op, value))
	}
	return preds, nil
}

// parseScalar turns numbers and booleans into their Go values; anything
// else stays a string.
func parseScalar(s string) any {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// parseEndpoint parses ID:LABEL.
func parseEndpoint(flag, s string) (commands.Endpoint, error) {
	id, label, ok := strings.Cut(s, ":")
	if !ok || id == "" || label == "" {
		return commands.Endpoint{}, fmt.Errorf("invalid --%s %q (want ID:LABEL)", flag, s)
	}
	return commands.Endpoint{ID: id, Label: label}, nil
}

// parseProps parses repeated k=v flags.
func parseProps(kvs []string) (map[string]any, error) {
	if len(kvs) == 0 {
		return nil, nil
	}
	props := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --prop %q (want key=value)", kv)
		}
		props[k] = parseScalar(v)
	}
	return props, nil
}

func render(w io.Writer, format string, v any) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}
