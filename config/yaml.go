package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v3"
)

// YAML is a kong configuration loader. Keys are flag names in snake_case or kebab-case:
//
//	url: https://example.com
//	exclude: [/private, /logout]
//	runner: async
//	head_fallback: true
func YAML(r io.Reader) (kong.Resolver, error) {
	values := map[string]any{}
	if err := yaml.NewDecoder(r).Decode(&values); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse yaml config: %w", err)
	}

	return kong.ResolverFunc(func(kctx *kong.Context, parent *kong.Path, flag *kong.Flag) (any, error) {
		for _, key := range []string{strings.ReplaceAll(flag.Name, "-", "_"), flag.Name} {
			if v, ok := values[key]; ok {
				return flagValue(v), nil
			}
		}
		return nil, nil
	}), nil
}

// flagValue renders a YAML value the way it would be typed on the command line.
func flagValue(v any) string {
	switch v := v.(type) {
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, ",")
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
