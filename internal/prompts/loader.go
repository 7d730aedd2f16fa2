// Package prompts holds the prompt texts sent to the parsing service. Each
// embedded JSON file is a flat object of named prompts.
package prompts

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"text/template"
)

//go:embed *.json
var promptFiles embed.FS

// Set is the decoded content of one prompt file
type Set map[string]string

var sets sync.Map // file name -> Set

// Load decodes an embedded prompt file. Files are read once.
func Load(file string) (Set, error) {
	if cached, ok := sets.Load(file); ok {
		return cached.(Set), nil
	}

	data, err := promptFiles.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", file, err)
	}
	var set Set
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", file, err)
	}

	actual, _ := sets.LoadOrStore(file, set)
	return actual.(Set), nil
}

// Keys lists the prompt names in sorted order
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Render fills the {{.Name}} fields of a prompt. Every field the prompt
// references must be present in data.
func (s Set) Render(key string, data map[string]any) (string, error) {
	text, ok := s[key]
	if !ok {
		return "", fmt.Errorf("prompt %q not found", key)
	}

	tmpl, err := template.New(key).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("prompt %q: %w", key, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("prompt %q: %w", key, err)
	}
	return buf.String(), nil
}

// MustRender loads file and renders key, panicking on failure. It is meant
// for the prompts embedded in this package, which are covered by tests.
func MustRender(file, key string, data map[string]any) string {
	set, err := Load(file)
	if err == nil {
		var out string
		if out, err = set.Render(key, data); err == nil {
			return out
		}
	}
	panic(fmt.Sprintf("failed to load prompt: %v", err))
}
