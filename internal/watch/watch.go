// Package watch tails an inbox directory and feeds newly dropped transcript
// files into a handler. It is a thin shell: reading, renaming, and event
// plumbing live here, all processing belongs to the handler.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// processedSuffix marks files that have been handed off.
const processedSuffix = ".processed"

// Handler consumes one dropped file's contents.
type Handler func(ctx context.Context, raw string, source string) error

// Watcher watches a single inbox directory.
type Watcher struct {
	dir     string
	handler Handler
	logger  *zap.Logger
}

// New creates a watcher over dir.
func New(dir string, handler Handler, logger *zap.Logger) (*Watcher, error) {
	if handler == nil {
		return nil, errors.New("watch: handler is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch: %s is not a directory", dir)
	}
	return &Watcher{dir: dir, handler: handler, logger: logger.Named("watch")}, nil
}

// eligible reports whether a file name is an inbox transcript: a visible
// .txt, .md, or .json file that has not been processed already.
func eligible(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if strings.HasSuffix(base, processedSuffix) {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".txt", ".md", ".json":
		return true
	}
	return false
}

// Run processes files already in the inbox, then blocks handling events
// until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("watch: failed to list inbox: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !eligible(e.Name()) {
			continue
		}
		w.process(ctx, filepath.Join(w.dir, e.Name()))
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch: failed to watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching inbox", zap.String("dir", w.dir))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !eligible(event.Name) {
				continue
			}
			w.process(ctx, event.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("inbox watch error", zap.Error(err))
		}
	}
}

// process hands one file to the handler and renames it out of the inbox on
// success. Failures are logged and leave the file in place for retry.
func (w *Watcher) process(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("failed to read inbox file",
			zap.String("path", path), zap.Error(err))
		return
	}

	if err := w.handler(ctx, string(data), path); err != nil {
		w.logger.Error("failed to process inbox file",
			zap.String("path", path), zap.Error(err))
		return
	}

	if err := os.Rename(path, path+processedSuffix); err != nil {
		w.logger.Warn("failed to mark inbox file processed",
			zap.String("path", path), zap.Error(err))
		return
	}
	w.logger.Info("inbox file processed", zap.String("path", path))
}
