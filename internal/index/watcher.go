package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/storage"
	"github.com/starford/othala/internal/vault"
)

// EventCallback is called after a watcher-driven catalogue change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, path string)

// reconcileDelay debounces the post-rename reconciliation pass so a
// burst of rename events triggers a single sweep.
const reconcileDelay = 200 * time.Millisecond

// watcher bundles the state shared by the event handlers.
type watcher struct {
	db     *DB
	store  storage.Provider
	root   string
	logger *slog.Logger
	cb     EventCallback
	fsw    *fsnotify.Watcher
}

// Watch starts an fsnotify watcher on the vault root and processes file
// change events until ctx is cancelled. It calls cb (if non-nil) after
// each successful catalogue mutation.
//
// Denylisted directories (inbox, system area, tool internals such as
// .git) are neither watched nor catalogued, matching the walk rules the
// rest of the pipeline uses. New directories created at runtime are
// added to the watch list under the same rule. Rename events trigger a
// debounced reconciliation pass that realigns the catalogue with disk.
func Watch(ctx context.Context, db *DB, store storage.Provider, vaultRoot string, logger *slog.Logger, cb EventCallback) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	w := &watcher{db: db, store: store, root: vaultRoot, logger: logger, cb: cb, fsw: fsw}
	if err := w.watchTree(vaultRoot); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", vaultRoot))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time
	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
			return
		}
		reconcileTimer.Reset(reconcileDelay)
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			w.reconcile()

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if w.handle(ev) {
				scheduleReconcile()
			}

		case watchErr, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// rel converts an absolute event path to a vault-relative slash path.
// The second return is false for paths outside the root or under a
// denylisted directory; those events are dropped at the door.
func (w *watcher) rel(abs string) (string, bool) {
	r, err := filepath.Rel(w.root, abs)
	if err != nil {
		return "", false
	}
	r = filepath.ToSlash(r)
	if vault.IsExcluded(r) {
		return "", false
	}
	return r, true
}

// handle processes one fsnotify event and reports whether a
// reconciliation pass should be scheduled.
func (w *watcher) handle(ev fsnotify.Event) bool {
	rel, ok := w.rel(ev.Name)
	if !ok {
		return false
	}

	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.watchTree(ev.Name); err != nil {
				w.logger.Warn("watcher: add new dir failed",
					slog.String("path", rel),
					slog.String("error", err.Error()))
			} else {
				w.logger.Debug("watcher: watching new dir", slog.String("path", rel))
			}
			// A directory moved into the vault may already hold notes.
			w.indexTree(ev.Name)
			return false
		}
	}

	if !strings.HasSuffix(rel, ".md") {
		return false
	}

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		kind := "updated"
		if ev.Op&fsnotify.Create != 0 {
			kind = "created"
		}
		w.indexPath(rel, kind)

	case ev.Op&fsnotify.Remove != 0:
		w.removePath(rel)

	case ev.Op&fsnotify.Rename != 0:
		// fsnotify fires Rename on the OLD path only; the new path
		// arrives as a separate Create event if it lands in a watched
		// dir. Drop the old entry now and sweep for stragglers.
		w.removePath(rel)
		return true
	}
	return false
}

// indexPath reads and upserts one note, firing the callback on success.
func (w *watcher) indexPath(rel, kind string) {
	data, err := w.store.Read(rel)
	if err != nil {
		w.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if err := indexFile(w.db, rel, data); err != nil {
		w.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
	if w.cb != nil {
		w.cb(kind, rel)
	}
}

// removePath drops one note from the catalogue, firing the callback on
// success.
func (w *watcher) removePath(rel string) {
	if err := w.db.DeleteNote(rel); err != nil {
		w.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("watcher: deleted", slog.String("path", rel))
	if w.cb != nil {
		w.cb("deleted", rel)
	}
}

// reconcile realigns the catalogue with disk after renames: entries
// whose file is gone are removed, files whose checksum disagrees with
// the catalogue are re-indexed. The walk applies the same denylist as
// Sync, so entries that were renamed INTO an excluded directory fall
// out of the catalogue here.
func (w *watcher) reconcile() {
	checksums, err := w.db.AllChecksums()
	if err != nil {
		w.logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string)
	err = vault.WalkNotes(w.store, []string{""}, func(m models.NoteMetadata) {
		disk[m.Path] = m.Checksum
	})
	if err != nil {
		w.logger.Warn("reconcile: walk failed", slog.String("error", err.Error()))
		return
	}

	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := w.db.DeleteNote(p); err == nil {
			w.logger.Debug("reconcile: removed stale", slog.String("path", p))
			if w.cb != nil {
				w.cb("deleted", p)
			}
		}
	}

	for p, cs := range disk {
		if checksums[p] == cs {
			continue
		}
		data, err := w.store.Read(p)
		if err != nil {
			continue
		}
		if err := indexFile(w.db, p, data); err == nil {
			w.logger.Debug("reconcile: indexed new", slog.String("path", p))
			if w.cb != nil {
				w.cb("created", p)
			}
		}
	}
}

// watchTree adds dir and its subdirectories to the watch list,
// skipping denylisted trees entirely.
func (w *watcher) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if _, ok := w.rel(path); !ok {
			return fs.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// indexTree catalogues any notes already present under a directory that
// just appeared (for example a folder moved into the vault).
func (w *watcher) indexTree(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, ok := w.rel(path)
		if !ok {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(rel, ".md") {
			return nil
		}
		w.indexPath(rel, "created")
		return nil
	})
}
