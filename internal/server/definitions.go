package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/goliatone/go-customfields/pkg/schema"
)

const reloadDelay = 100 * time.Millisecond

// Definitions serves the definitions of a directory and can reload them when
// the files change. A reload that fails to parse keeps the previous set.
type Definitions struct {
	mu     sync.RWMutex
	store  *schema.Store
	dir    string
	logger *slog.Logger
}

// NewDefinitions wraps an already loaded store.
func NewDefinitions(store *schema.Store, logger *slog.Logger) *Definitions {
	if logger == nil {
		logger = slog.Default()
	}
	if store == nil {
		store, _ = schema.NewStore()
	}
	return &Definitions{store: store, logger: logger}
}

// LoadDefinitions parses every definition file under dir.
func LoadDefinitions(dir string, logger *slog.Logger) (*Definitions, error) {
	d := NewDefinitions(nil, logger)
	d.dir = dir
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload parses the directory again and swaps the result in.
func (d *Definitions) Reload() error {
	if d.dir == "" {
		return nil
	}
	store, err := schema.LoadFS(os.DirFS(d.dir))
	if err != nil {
		return fmt.Errorf("server: load definitions: %w", err)
	}
	d.mu.Lock()
	d.store = store
	d.mu.Unlock()
	d.logger.Info("server: definitions loaded", "dir", d.dir, "count", len(store.IDs()))
	return nil
}

// Definition returns the definition with id.
func (d *Definitions) Definition(id string) (schema.Definition, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.store.Definition(id)
}

// IDs returns the known definition ids, sorted.
func (d *Definitions) IDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.store.IDs()
}

// Watch reloads the definitions whenever a definition file under the
// directory changes, until ctx is done.
func (d *Definitions) Watch(ctx context.Context) error {
	if d.dir == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dirs := []string{d.dir}
	_ = filepath.WalkDir(d.dir, func(path string, entry os.DirEntry, err error) error {
		if err == nil && entry.IsDir() && path != d.dir {
			dirs = append(dirs, path)
		}
		return nil
	})
	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return err
		}
	}

	go func() {
		defer func() { _ = w.Close() }()
		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if !schema.IsDefinitionFile(event.Name) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.NewTimer(reloadDelay)
				fire = timer.C
			case <-fire:
				fire = nil
				if err := d.Reload(); err != nil {
					d.logger.WarnContext(ctx, "server: definitions reload failed, keeping previous set", "error", err)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				d.logger.WarnContext(ctx, "server: error watching definitions", "error", err)
			}
		}
	}()
	return nil
}
