// Package inbox ingests PDFs dropped into a watched directory.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/pdfsearch/internal/extract"
	"github.com/hyperjump/pdfsearch/internal/ingest"
	"github.com/hyperjump/pdfsearch/internal/models"
)

const (
	defaultDebounce = 400 * time.Millisecond
	// RejectedSuffix is appended to files the upload pipeline refused.
	RejectedSuffix = ".rejected"
)

// Uploader runs the upload pipeline for one file.
type Uploader interface {
	Upload(ctx context.Context, u ingest.Upload) (*ingest.Result, error)
}

// Inbox watches one directory and uploads every PDF written to it.
type Inbox struct {
	dir      string
	category string
	uploads  Uploader
	debounce time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	pending  map[string]*time.Timer
	watcher  *fsnotify.Watcher
	ctx      context.Context
	inflight sync.WaitGroup
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(i *Inbox) { i.logger = l }
}

// WithCategory sets the category given to ingested files.
func WithCategory(category string) Option {
	return func(i *Inbox) { i.category = category }
}

// WithDebounce sets how long a file must be quiet before it is ingested.
func WithDebounce(d time.Duration) Option {
	return func(i *Inbox) { i.debounce = d }
}

// New returns an inbox over dir. Call Start to begin watching.
func New(dir string, uploads Uploader, opts ...Option) *Inbox {
	i := &Inbox{
		dir:      filepath.Clean(dir),
		category: models.DefaultCategory,
		uploads:  uploads,
		debounce: defaultDebounce,
		logger:   zap.NewNop(),
		pending:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Dir returns the watched directory.
func (i *Inbox) Dir() string {
	return i.dir
}

// Start creates the directory if needed, starts watching it and schedules the PDFs already
// present. It returns once the watch is established; ingestion runs until ctx is cancelled
// or Stop is called.
func (i *Inbox) Start(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.started {
		return nil
	}
	if err := os.MkdirAll(i.dir, 0755); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(i.dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", i.dir, err)
	}
	i.watcher = w
	i.ctx = ctx
	i.started = true

	entries, err := os.ReadDir(i.dir)
	if err != nil {
		i.logger.Warn("inbox: list existing files failed", zap.String("dir", i.dir), zap.Error(err))
	}
	for _, e := range entries {
		if !e.IsDir() && isPDF(e.Name()) {
			i.scheduleLocked(filepath.Join(i.dir, e.Name()))
		}
	}
	i.logger.Info("Inbox watching", zap.String("dir", i.dir), zap.Int("existing", len(i.pending)))

	go i.run(ctx)
	return nil
}

func (i *Inbox) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			i.Stop()
			return
		case <-i.done:
			return
		case ev, ok := <-i.watcher.Events:
			if !ok {
				return
			}
			i.handleEvent(ev)
		case err, ok := <-i.watcher.Errors:
			if !ok {
				return
			}
			i.logger.Warn("inbox watcher error", zap.Error(err))
		}
	}
}

func (i *Inbox) handleEvent(ev fsnotify.Event) {
	if filepath.Dir(ev.Name) != i.dir || !isPDF(ev.Name) {
		return
	}
	i.logger.Debug("inbox event", zap.String("op", ev.Op.String()), zap.String("path", ev.Name))
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		i.mu.Lock()
		i.scheduleLocked(ev.Name)
		i.mu.Unlock()
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		i.mu.Lock()
		if t, ok := i.pending[ev.Name]; ok {
			t.Stop()
			delete(i.pending, ev.Name)
		}
		i.mu.Unlock()
	}
}

// scheduleLocked (re)arms the debounce timer for path. Callers hold i.mu.
func (i *Inbox) scheduleLocked(path string) {
	select {
	case <-i.done:
		return
	default:
	}
	if t, ok := i.pending[path]; ok {
		t.Stop()
	}
	i.pending[path] = time.AfterFunc(i.debounce, func() {
		i.mu.Lock()
		delete(i.pending, path)
		select {
		case <-i.done:
			i.mu.Unlock()
			return
		default:
		}
		ctx := i.ctx
		i.inflight.Add(1)
		i.mu.Unlock()
		defer i.inflight.Done()
		if err := i.Process(ctx, path); err != nil {
			i.logger.Error("inbox: ingest failed", zap.String("path", path), zap.Error(err))
		}
	})
}

// Process uploads the file at path. On success the file is removed. When the pipeline
// rejects the file it is renamed with RejectedSuffix and nil is returned; other failures
// leave the file in place for the next start and are returned.
func (i *Inbox) Process(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	base := filepath.Base(path)
	res, err := i.uploads.Upload(ctx, ingest.Upload{
		Filename: base,
		File:     f,
		Metadata: ingest.Metadata{
			Title:    strings.TrimSuffix(base, filepath.Ext(base)),
			Category: i.category,
		},
	})
	_ = f.Close()

	if err != nil {
		if !rejected(err) {
			return err
		}
		i.logger.Warn("inbox: file rejected", zap.String("path", path), zap.Error(err))
		if rerr := os.Rename(path, path+RejectedSuffix); rerr != nil {
			return fmt.Errorf("mark rejected: %w", rerr)
		}
		return nil
	}

	i.logger.Info("inbox: file ingested", zap.String("path", path), zap.String("id", res.ID))
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove ingested file: %w", err)
	}
	return nil
}

// Stop stops watching and waits for in-flight uploads. Pending files are left on disk.
func (i *Inbox) Stop() {
	i.stopOnce.Do(func() {
		i.mu.Lock()
		close(i.done)
		for path, t := range i.pending {
			t.Stop()
			delete(i.pending, path)
		}
		w := i.watcher
		i.mu.Unlock()
		if w != nil {
			_ = w.Close()
		}
		i.inflight.Wait()
	})
}

// rejected reports whether err is a validation failure that retrying cannot fix.
func rejected(err error) bool {
	return errors.Is(err, ingest.ErrMissingFile) ||
		errors.Is(err, ingest.ErrUnsupportedFormat) ||
		errors.Is(err, ingest.ErrPayloadTooLarge) ||
		errors.Is(err, ingest.ErrUnreadableContent) ||
		errors.Is(err, extract.ErrMalformedDocument)
}

func isPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
