// Package state persists per-file remediation history and enforces the
// proposal cooldown window.
package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/storage"
)

// DefaultCooldownDays is the window during which a previously proposed
// note is suppressed from re-proposal.
const DefaultCooldownDays = 7

// FileRecord is the persisted history for one note path.
type FileRecord struct {
	LastScanned  string `json:"last_scanned,omitempty"`
	LastProposed string `json:"last_proposed,omitempty"`
	LastScore    int    `json:"last_score,omitempty"`
}

// document is the on-disk shape: one JSON document per vault.
type document struct {
	LastRun string                `json:"last_run"`
	Files   map[string]FileRecord `json:"files"`
}

// Tracker loads, queries, and saves the history document. A malformed
// or missing document is repaired to an empty default on load; the
// tracker always yields a usable structure.
type Tracker struct {
	store  storage.Provider
	path   string
	logger *slog.Logger
	doc    document
}

// NewTracker loads the history document at path (relative to the vault
// root), repairing whatever it finds.
func NewTracker(store storage.Provider, path string, logger *slog.Logger) *Tracker {
	t := &Tracker{store: store, path: path, logger: logger}
	t.doc = t.load()
	return t
}

func (t *Tracker) load() document {
	doc := document{Files: make(map[string]FileRecord)}

	data, err := t.store.Read(t.path)
	if err != nil {
		return doc
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.logger.Warn("state: malformed history document, starting fresh",
			slog.String("path", t.path), slog.String("error", err.Error()))
		return doc
	}

	if msg, ok := raw["last_run"]; ok {
		var lastRun string
		if err := json.Unmarshal(msg, &lastRun); err == nil {
			doc.LastRun = lastRun
		}
	}

	if msg, ok := raw["files"]; ok {
		var files map[string]json.RawMessage
		if err := json.Unmarshal(msg, &files); err == nil {
			for p, entry := range files {
				var rec FileRecord
				if err := json.Unmarshal(entry, &rec); err != nil {
					// Unusable entry, coerce to empty.
					rec = FileRecord{}
				}
				doc.Files[p] = rec
			}
		}
	}

	return doc
}

// Save writes the history document back to the vault, stamping
// last_run with the current time.
func (t *Tracker) Save() error {
	t.doc.LastRun = time.Now().Format(time.RFC3339)
	data, err := json.MarshalIndent(t.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("state: marshal history: %w", err)
	}
	if err := t.store.Write(t.path, data); err != nil {
		return fmt.Errorf("state: save history: %w", err)
	}
	return nil
}

// InCooldown reports whether the path had a proposal generated within
// the last `days` days. Missing records and unparseable timestamps
// fail open toward re-scanning.
func (t *Tracker) InCooldown(rel string, days int) bool {
	rec, ok := t.doc.Files[rel]
	if !ok || rec.LastProposed == "" {
		return false
	}
	last, err := time.Parse(time.RFC3339, rec.LastProposed)
	if err != nil {
		return false
	}
	return time.Since(last) < time.Duration(days)*24*time.Hour
}

// Record marks that a proposal was generated for the path just now.
// Both last_scanned and last_proposed are set: recording implies a
// proposal was actually produced, not merely considered.
func (t *Tracker) Record(rel string, score int) {
	now := time.Now().Format(time.RFC3339)
	t.doc.Files[rel] = FileRecord{
		LastScanned:  now,
		LastProposed: now,
		LastScore:    score,
	}
}

// Filter drops candidates whose path is inside the cooldown window.
func (t *Tracker) Filter(candidates []models.ValidationResult, days int) []models.ValidationResult {
	var out []models.ValidationResult
	for _, c := range candidates {
		if t.InCooldown(c.Path, days) {
			t.logger.Debug("state: cooldown active", slog.String("path", c.Path))
			continue
		}
		out = append(out, c)
	}
	return out
}
