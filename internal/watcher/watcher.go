// Package watcher monitors a directory for new documents and enriches
// them as they arrive.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dhalloran/pagesense/internal/dom"
)

// Handler processes one newly arrived document file.
type Handler func(ctx context.Context, path string) error

// settleDelay gives the writer time to finish before we read the file.
const settleDelay = 500 * time.Millisecond

// Watcher drives a Handler from filesystem create events. Each file is
// its own document with its own pipeline run, so files may be handled
// concurrently up to maxConcurrent without violating the
// one-run-per-document rule.
type Watcher struct {
	inputDir  string
	handler   Handler
	log       *slog.Logger
	fsw       *fsnotify.Watcher
	semaphore chan struct{}
	wg        sync.WaitGroup
}

func New(inputDir string, handler Handler, log *slog.Logger, maxConcurrent int) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(inputDir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("add watch path: %w", err)
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &Watcher{
		inputDir:  inputDir,
		handler:   handler,
		log:       log,
		fsw:       fsw,
		semaphore: make(chan struct{}, maxConcurrent),
	}, nil
}

// Start blocks, dispatching handler calls until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	w.log.Info("watching for documents", "dir", w.inputDir)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("waiting for in-flight documents")
			w.wg.Wait()
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Op&fsnotify.Create != fsnotify.Create {
				continue
			}
			if !dom.IsSupported(event.Name) {
				w.log.Debug("ignoring unsupported file", "path", event.Name)
				continue
			}
			w.log.Info("new document detected", "path", event.Name)
			time.Sleep(settleDelay)

			select {
			case w.semaphore <- struct{}{}:
				w.wg.Add(1)
				go func(path string) {
					defer w.wg.Done()
					defer func() { <-w.semaphore }()
					if err := w.handler(ctx, path); err != nil {
						w.log.Error("failed to process document", "path", path, "error", err)
					}
				}(event.Name)
			case <-ctx.Done():
				return ctx.Err()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.log.Error("watcher error", "error", err)
		}
	}
}

// Stop closes the underlying filesystem watcher.
func (w *Watcher) Stop() error {
	return w.fsw.Close()
}
