package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// keyValueFlag collects repeatable key=value flags.
type keyValueFlag map[string]string

func (kv *keyValueFlag) String() string {
	if kv == nil || len(*kv) == 0 {
		return ""
	}
	var pairs []string
	for _, key := range sortedKeys(*kv) {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, (*kv)[key]))
	}
	return strings.Join(pairs, ", ")
}

func (kv *keyValueFlag) Set(value string) error {
	parts := strings.SplitN(value, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	key := strings.TrimSpace(parts[0])
	if key == "" {
		return fmt.Errorf("attribute key is empty in %q", value)
	}
	if *kv == nil {
		*kv = keyValueFlag{}
	}
	(*kv)[key] = parts[1]
	return nil
}

func (kv *keyValueFlag) Type() string { return "key=value" }

// buildAttributes merges the attributes file with --set overrides. The
// overrides win.
func buildAttributes(configFile string, overrides keyValueFlag) (map[string]any, error) {
	attrs := map[string]any{}
	if path := strings.TrimSpace(configFile); path != "" {
		fileAttrs, err := readAttributesFile(path)
		if err != nil {
			return nil, err
		}
		for key, value := range fileAttrs {
			attrs[key] = value
		}
	}
	for key, value := range overrides {
		attrs[key] = value
	}
	return attrs, nil
}

// readAttributesFile reads a YAML (or JSON, which YAML accepts) mapping.
func readAttributesFile(path string) (map[string]any, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open config file %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory, expected a file", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("config file %s is empty", path)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return raw, nil
}
