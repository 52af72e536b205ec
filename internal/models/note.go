// Package models defines the domain types for Othala.
package models

import "time"

// Frontmatter is the structured metadata header of a note. Known keys
// get typed fields; everything else lands in Extra so a parse/compose
// round trip preserves fields the automation does not understand.
type Frontmatter struct {
	Title   string         `yaml:"title,omitempty"`
	Type    string         `yaml:"type,omitempty"`
	Status  string         `yaml:"status,omitempty"`
	Tags    []string       `yaml:"tags,omitempty"`
	Aliases []string       `yaml:"aliases,omitempty"`
	Code    string         `yaml:"code,omitempty"`
	Folder  string         `yaml:"folder,omitempty"`
	Extra   map[string]any `yaml:"-"`
}

// ExtraString returns the Extra value for key as a string, or "" when
// the key is absent or holds a non-string value.
func (f *Frontmatter) ExtraString(key string) string {
	if f.Extra == nil {
		return ""
	}
	s, _ := f.Extra[key].(string)
	return s
}

// Note represents a parsed markdown file in the vault. Path is always
// relative to the vault root.
type Note struct {
	Path        string
	Frontmatter Frontmatter
	Body        string
}

// ValidationResult is one file's quality-scan outcome. Emitted only
// when Score > 0; Reasons follow rule evaluation order.
type ValidationResult struct {
	Path    string   `json:"path"`
	Score   int      `json:"score"`
	Reasons []string `json:"reasons"`
}

// RegistryEntry is one code-registry row: a note under the managed
// folders that declares a project code. Name is the filename stem and
// Folder is the parent directory of the declaring note.
type RegistryEntry struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Folder string `json:"folder"`
}

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
