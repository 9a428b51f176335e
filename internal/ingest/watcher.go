package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

type WatchConfig struct {
	Roots       []string      // directories to watch (recursive)
	Exclude     []string      // directories whose files are never reported, e.g. the output folder
	InitialScan bool          // if true, walk roots and emit existing files
	Debounce    time.Duration // coalesce rapid create/write/rename bursts
	Logger      *slog.Logger
}

// StartWatcher reports supported documents appearing under the roots. Both channels
// are closed once ctx is done.
func StartWatcher(ctx context.Context, cfg WatchConfig) (<-chan string, <-chan error, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		logger.Error("watcher start failed: no roots provided")
		return nil, nil, errors.New("no roots provided")
	}
	exclude := make([]string, 0, len(cfg.Exclude))
	for _, e := range cfg.Exclude {
		if abs, err := filepath.Abs(e); err == nil {
			exclude = append(exclude, abs)
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}

	var initial []string
	addDir := func(root string) error {
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if excluded(path, exclude) {
					return filepath.SkipDir
				}
				return w.Add(path)
			}
			if cfg.InitialScan && wanted(path, exclude) {
				initial = append(initial, path)
			}
			return nil
		})
	}
	for _, r := range cfg.Roots {
		if err := addDir(r); err != nil {
			logger.Error("failed to add root directory", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}
	logger.Info("watcher started", "roots", cfg.Roots, "initial", len(initial))

	evCh := make(chan string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("watcher close failed", "error", err)
			}
		}()

		p := newPending()
		for _, path := range initial {
			p.add(path)
		}
		if !p.flush(ctx, evCh) {
			return
		}

		var (
			timer  *time.Timer
			timerC <-chan time.Time
		)
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Op&fsnotify.Create == fsnotify.Create && !excluded(e.Name, exclude) {
					// Only directories can be added; files fail and are ignored.
					_ = w.Add(e.Name)
				}
				if !wanted(e.Name, exclude) || e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				p.add(e.Name)
				if cfg.Debounce <= 0 {
					if !p.flush(ctx, evCh) {
						return
					}
					continue
				}
				if timer == nil {
					timer = time.NewTimer(cfg.Debounce)
				} else {
					timer.Reset(cfg.Debounce)
				}
				timerC = timer.C
			case <-timerC:
				timerC = nil
				if !p.flush(ctx, evCh) {
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

// pending keeps paths in arrival order without duplicates.
type pending struct {
	order []string
	set   map[string]struct{}
}

func newPending() *pending {
	return &pending{set: map[string]struct{}{}}
}

func (p *pending) add(path string) {
	if _, ok := p.set[path]; ok {
		return
	}
	p.set[path] = struct{}{}
	p.order = append(p.order, path)
}

func (p *pending) flush(ctx context.Context, out chan<- string) bool {
	for _, path := range p.order {
		select {
		case out <- path:
		case <-ctx.Done():
			return false
		}
	}
	p.order = p.order[:0]
	clear(p.set)
	return true
}

func wanted(path string, exclude []string) bool {
	return AllowedExt(filepath.Ext(path)) && !IsHidden(path) && !excluded(filepath.Dir(path), exclude)
}

func excluded(path string, exclude []string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, e := range exclude {
		if abs == e || strings.HasPrefix(abs, e+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
