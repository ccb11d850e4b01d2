package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

var watchedExtensions = []string{".txt", ".md"}

// Watcher keeps the index in sync with a directory of text documents. The file
// name is the document id.
type Watcher struct {
	index *Index
	dir   string
	log   *zap.Logger
}

func NewWatcher(index *Index, dir string, log *zap.Logger) *Watcher {
	return &Watcher{index: index, dir: dir, log: log}
}

func isWatched(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range watchedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// IngestDir ingests every watched file currently in the directory.
func (w *Watcher) IngestDir(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !isWatched(e.Name()) {
			continue
		}
		w.ingestFile(ctx, filepath.Join(w.dir, e.Name()))
	}
	return nil
}

// Run watches the directory until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return err
	}
	w.log.Info("watching knowledge directory", zap.String("dir", w.dir))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !isWatched(ev.Name) {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				w.ingestFile(ctx, ev.Name)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				if err := w.index.Remove(ctx, filepath.Base(ev.Name)); err != nil {
					w.log.Error("remove knowledge document", zap.String("path", ev.Name), zap.Error(err))
				}
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("knowledge watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) ingestFile(ctx context.Context, path string) {
	b, err := os.ReadFile(path)
	if err != nil {
		w.log.Warn("read knowledge document", zap.String("path", path), zap.Error(err))
		return
	}
	res, err := w.index.Ingest(ctx, Document{ID: filepath.Base(path), Text: string(b)})
	if err != nil {
		w.log.Error("ingest knowledge document", zap.String("path", path), zap.Error(err))
		return
	}
	if res.Skipped {
		w.log.Debug("knowledge document unchanged", zap.String("path", path))
	}
}
