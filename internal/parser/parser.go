// Package parser extracts and composes YAML frontmatter for vault notes.
package parser

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/othala/internal/models"
)

// knownKeys are frontmatter fields with typed representations; anything
// else is preserved verbatim in Frontmatter.Extra.
var knownKeys = map[string]struct{}{
	"title": {}, "type": {}, "status": {}, "tags": {},
	"aliases": {}, "code": {}, "folder": {},
}

// Result holds the output of parsing a markdown note.
type Result struct {
	Frontmatter models.Frontmatter
	Body        string
}

// Parse splits raw note bytes into frontmatter and body. Tags and
// aliases are normalized to trimmed string lists regardless of how the
// source stored them. Invalid YAML falls back to treating the whole
// input as body; Parse never fails on malformed metadata.
func Parse(data []byte) (*Result, error) {
	raw, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}
	return &Result{Frontmatter: Decode(raw), Body: body}, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the markdown body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]any, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		// No closing delimiter: treat everything as body.
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var raw map[string]any
	if err := yaml.Unmarshal(yamlBlock, &raw); err != nil {
		// Invalid YAML: fall back to body only.
		return nil, string(data), nil
	}

	return raw, body, nil
}

// Decode converts a raw frontmatter map into the typed Frontmatter,
// normalizing tags and aliases and keeping unknown keys in Extra.
func Decode(raw map[string]any) models.Frontmatter {
	fm := models.Frontmatter{
		Title:   stringValue(raw["title"]),
		Type:    stringValue(raw["type"]),
		Status:  stringValue(raw["status"]),
		Tags:    NormalizeList(raw["tags"]),
		Aliases: NormalizeList(raw["aliases"]),
		Code:    stringValue(raw["code"]),
		Folder:  stringValue(raw["folder"]),
	}
	for k, v := range raw {
		if _, known := knownKeys[k]; known {
			continue
		}
		if fm.Extra == nil {
			fm.Extra = make(map[string]any)
		}
		fm.Extra[k] = v
	}
	return fm
}

// NormalizeList coerces a frontmatter value into a list of trimmed,
// non-empty strings. Accepts a YAML list, a comma-separated string, or
// a single scalar. Normalizing an already-normalized list is a no-op.
func NormalizeList(value any) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case []string:
		var out []string
		for _, item := range v {
			if s := strings.TrimSpace(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []any:
		var out []string
		for _, item := range v {
			if item == nil {
				continue
			}
			if s := strings.TrimSpace(stringValue(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if strings.Contains(v, ",") {
			var out []string
			for _, part := range strings.Split(v, ",") {
				if s := strings.TrimSpace(part); s != "" {
					out = append(out, s)
				}
			}
			return out
		}
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
		return nil
	default:
		if s := strings.TrimSpace(stringValue(value)); s != "" {
			return []string{s}
		}
		return nil
	}
}

// Compose renders a note back to bytes: frontmatter block (known keys
// in a fixed order, extras sorted) followed by the body. An empty
// frontmatter produces the bare body.
func Compose(fm models.Frontmatter, body string) ([]byte, error) {
	doc := &yaml.Node{Kind: yaml.MappingNode}

	appendPair := func(key string, value any) error {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: key}
		valNode := &yaml.Node{}
		if err := valNode.Encode(value); err != nil {
			return fmt.Errorf("parser: encode %s: %w", key, err)
		}
		doc.Content = append(doc.Content, keyNode, valNode)
		return nil
	}

	ordered := []struct {
		key   string
		value any
		skip  bool
	}{
		{"title", fm.Title, fm.Title == ""},
		{"type", fm.Type, fm.Type == ""},
		{"status", fm.Status, fm.Status == ""},
		{"tags", fm.Tags, len(fm.Tags) == 0},
		{"aliases", fm.Aliases, len(fm.Aliases) == 0},
		{"code", fm.Code, fm.Code == ""},
		{"folder", fm.Folder, fm.Folder == ""},
	}
	for _, field := range ordered {
		if field.skip {
			continue
		}
		if err := appendPair(field.key, field.value); err != nil {
			return nil, err
		}
	}

	extraKeys := make([]string, 0, len(fm.Extra))
	for k := range fm.Extra {
		extraKeys = append(extraKeys, k)
	}
	sort.Strings(extraKeys)
	for _, k := range extraKeys {
		if err := appendPair(k, fm.Extra[k]); err != nil {
			return nil, err
		}
	}

	if len(doc.Content) == 0 {
		return []byte(body), nil
	}

	yamlBytes, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("parser: marshal frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(yamlBytes)
	buf.WriteString("---\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprintf("%v", v)
	}
}
