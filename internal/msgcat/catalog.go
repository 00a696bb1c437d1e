// Package msgcat holds user-facing text keyed by dotted paths such as
// "error.not_your_turn". Embedded English defaults load first; YAML files in
// an override directory replace individual keys.
package msgcat

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/template"

	yaml "gopkg.in/yaml.v3"
)

//go:embed messages.en.yaml
var defaults []byte

// Catalog is immutable after New.
type Catalog struct {
	tpl map[string]*template.Template
}

func New(overrideDir string) (*Catalog, error) {
	entries, err := parse("messages.en.yaml", defaults)
	if err != nil {
		return nil, err
	}
	if dir := strings.TrimSpace(overrideDir); dir != "" {
		over, err := loadDir(dir)
		if err != nil {
			return nil, err
		}
		for k, v := range over {
			entries[k] = v
		}
	}
	c := &Catalog{tpl: make(map[string]*template.Template, len(entries))}
	for key, text := range entries {
		t, err := template.New(key).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", key, err)
		}
		c.tpl[key] = t
	}
	return c, nil
}

// loadDir reads every .yaml/.yml file in name order. A key defined by two
// files is an error.
func loadDir(dir string) (map[string]string, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read message dir: %w", err)
	}
	var names []string
	for _, de := range des {
		ext := strings.ToLower(filepath.Ext(de.Name()))
		if !de.IsDir() && (ext == ".yaml" || ext == ".yml") {
			names = append(names, de.Name())
		}
	}
	slices.Sort(names)

	out := make(map[string]string)
	origin := make(map[string]string)
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		entries, err := parse(name, raw)
		if err != nil {
			return nil, err
		}
		for k, v := range entries {
			if prev, dup := origin[k]; dup {
				return nil, fmt.Errorf("message %s defined in both %s and %s", k, prev, name)
			}
			origin[k] = name
			out[k] = v
		}
	}
	return out, nil
}

func parse(name string, raw []byte) (map[string]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	out := make(map[string]string)
	if len(doc.Content) == 0 {
		return out, nil
	}
	if err := collect(doc.Content[0], "", out); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

func collect(n *yaml.Node, prefix string, out map[string]string) error {
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			if prefix != "" {
				key = prefix + "." + key
			}
			if err := collect(n.Content[i+1], key, out); err != nil {
				return err
			}
		}
		return nil
	case yaml.ScalarNode:
		if prefix == "" {
			return fmt.Errorf("line %d: bare value without key", n.Line)
		}
		if n.Tag == "!!null" {
			return nil
		}
		out[prefix] = n.Value
		return nil
	default:
		return fmt.Errorf("line %d: %s must be a string or mapping", n.Line, prefix)
	}
}

// Render executes the template stored under key. Missing keys and missing
// template fields are errors.
func (c *Catalog) Render(key string, data any) (string, error) {
	t, ok := c.tpl[strings.TrimSpace(key)]
	if !ok {
		return "", fmt.Errorf("message not found: %s", key)
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Error returns the text for an error code, falling back to error.internal
// and finally to the code itself.
func (c *Catalog) Error(code string, data any) string {
	if c == nil {
		return code
	}
	for _, key := range []string{"error." + code, "error.internal"} {
		if s, err := c.Render(key, data); err == nil && s != "" {
			return s
		}
	}
	return code
}
