// Package watch reloads a file when it changes on disk.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gabrielmiguelok/formwizard/pkg/logging"
)

// Option configures a File.
type Option func(*File)

// WithDebounce sets how long changes must settle before a reload.
func WithDebounce(d time.Duration) Option {
	return func(f *File) {
		f.debounce = d
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(f *File) {
		f.logger = l
	}
}

// File watches a single file. The parent directory is watched so editors
// that save by renaming a temporary file are followed.
type File struct {
	path     string
	debounce time.Duration
	logger   logging.Logger
	fsw      *fsnotify.Watcher
}

// New starts watching path.
func New(path string, opts ...Option) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	f := &File{
		path:     abs,
		debounce: 200 * time.Millisecond,
		logger:   logging.NopLogger{},
		fsw:      fsw,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Run calls onChange with the new contents after every settled change until
// ctx ends or the watcher is closed. Read failures are logged and skipped.
func (f *File) Run(ctx context.Context, onChange func([]byte)) error {
	timer := time.NewTimer(f.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-f.fsw.Events:
			if !ok {
				return nil
			}
			if !f.relevant(event) {
				continue
			}
			timer.Reset(f.debounce)

		case err, ok := <-f.fsw.Errors:
			if !ok {
				return nil
			}
			f.logger.Error("file watcher error", logging.String("path", f.path), logging.Err(err))

		case <-timer.C:
			data, err := os.ReadFile(f.path)
			if err != nil {
				f.logger.Warn("reading changed file", logging.String("path", f.path), logging.Err(err))
				continue
			}
			onChange(data)
		}
	}
}

func (f *File) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != f.path || isEditorNoise(event.Name) {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}

// Close stops watching.
func (f *File) Close() error {
	return f.fsw.Close()
}

// isEditorNoise matches swap and backup files written next to the target.
func isEditorNoise(path string) bool {
	name := filepath.Base(path)
	return strings.HasSuffix(name, ".swp") ||
		strings.HasSuffix(name, "~") ||
		(strings.HasPrefix(name, "#") && strings.HasSuffix(name, "#"))
}
