package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Base serves the current portfolio and its rendered context, and can swap
// both atomically when the backing file changes.
type Base struct {
	current atomic.Pointer[snapshot]
	path    string
}

type snapshot struct {
	portfolio *Portfolio
	rendered  string
}

// NewBase returns a Base loaded from path, or from the embedded portfolio
// when path is empty.
func NewBase(path string) (*Base, error) {
	b := &Base{path: path}
	p := Default()
	if path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		p = loaded
	}
	b.set(p)
	return b, nil
}

func (b *Base) set(p *Portfolio) {
	b.current.Store(&snapshot{portfolio: p, rendered: p.Render()})
}

// Portfolio returns the current portfolio.
func (b *Base) Portfolio() *Portfolio {
	return b.current.Load().portfolio
}

// Context returns the rendered portfolio context.
func (b *Base) Context() string {
	return b.current.Load().rendered
}

// Reload re-reads the backing file. Invalid content keeps the previous data.
func (b *Base) Reload() error {
	if b.path == "" {
		return nil
	}
	p, err := LoadFile(b.path)
	if err != nil {
		return err
	}
	b.set(p)
	return nil
}

// Watch reloads the portfolio whenever its file is written or replaced.
// It returns once the watcher is installed; reloading stops with ctx.
func (b *Base) Watch(ctx context.Context) error {
	if b.path == "" {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory so editors that replace the file are still seen.
	dir := filepath.Dir(b.path)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Clean(b.path)
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := b.Reload(); err != nil {
					slog.Warn("Portfolio reload failed, keeping previous data", "path", b.path, "error", err)
					continue
				}
				slog.Info("Portfolio reloaded", "path", b.path)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("Portfolio watcher error", "error", err)
			}
		}
	}()
	return nil
}
