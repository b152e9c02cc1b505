// Package watcher keeps the index in step with study material on disk.
// Created and modified files are re-ingested after a quiet period; removed files
// have their chunks deleted.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/studybuddy/internal/fileid"
	"github.com/hyperjump/studybuddy/pkg/utils"
)

// DefaultDebounce is how long a file must stay quiet before it is synced.
const DefaultDebounce = 400 * time.Millisecond

// DefaultExtensions are the document types ingested from watched directories.
var DefaultExtensions = []string{".pdf", ".docx", ".txt"}

// Syncer re-ingests a file, replacing any chunks it produced earlier.
type Syncer interface {
	SyncFile(ctx context.Context, path string) (int, error)
}

// Remover deletes every chunk carrying a file id.
type Remover interface {
	DeleteByFileID(ctx context.Context, fileID string) (int, error)
}

// Config selects what to watch.
type Config struct {
	Directories []string
	// Extensions filters files by suffix, case-insensitively. Empty means DefaultExtensions.
	Extensions []string
	Recursive  bool
	Debounce   time.Duration
}

// Watcher watches directories and syncs matching files into the index.
type Watcher struct {
	cfg     Config
	syncer  Syncer
	remover Remover
	logger  *zap.Logger

	mu      sync.Mutex
	fs      *fsnotify.Watcher
	pending map[string]*time.Timer
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger. Nil means no logging.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = utils.OrNop(l) }
}

// New creates a Watcher. Call Start to begin watching.
func New(cfg Config, syncer Syncer, remover Remover, opts ...Option) *Watcher {
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultExtensions
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	dirs := make([]string, 0, len(cfg.Directories))
	for _, d := range cfg.Directories {
		if abs, err := filepath.Abs(d); err == nil {
			d = abs
		}
		dirs = append(dirs, filepath.Clean(d))
	}
	cfg.Directories = dirs

	w := &Watcher{
		cfg:     cfg,
		syncer:  syncer,
		remover: remover,
		logger:  zap.NewNop(),
		pending: make(map[string]*time.Timer),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Directories returns the watched root directories.
func (w *Watcher) Directories() []string {
	return append([]string(nil), w.cfg.Directories...)
}

// Start registers the directories, creating missing ones, and begins handling
// events until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fs != nil {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, root := range w.cfg.Directories {
		if err := os.MkdirAll(root, 0o755); err != nil {
			_ = fsw.Close()
			return err
		}
		if err := w.addTree(fsw, root); err != nil {
			_ = fsw.Close()
			return err
		}
	}
	w.fs = fsw
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.logger.Info("watching directories",
		zap.Strings("directories", w.cfg.Directories),
		zap.Strings("extensions", w.cfg.Extensions),
		zap.Bool("recursive", w.cfg.Recursive))

	w.wg.Add(1)
	go w.run(w.ctx, fsw)
	return nil
}

// Stop ends watching, drops pending syncs and waits for in-flight work.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.fs == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	_ = w.fs.Close()
	w.fs = nil
	w.cancel()
	w.mu.Unlock()
	w.wg.Wait()
}

// SyncExisting ingests every matching file already under the watched directories.
// It returns the number of files synced.
func (w *Watcher) SyncExisting(ctx context.Context) int {
	n := 0
	for _, root := range w.cfg.Directories {
		n += w.syncTree(ctx, root)
	}
	return n
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	w.logger.Debug("watch event", zap.String("op", ev.Op.String()), zap.String("path", path))

	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			w.handleNewDirectory(ctx, path)
			return
		}
		if w.matches(path) {
			w.schedule(ctx, path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancelPending(path)
		if w.matches(path) {
			w.remove(ctx, path)
		}
	}
}

// handleNewDirectory watches a directory that appeared under a root and ingests its files.
func (w *Watcher) handleNewDirectory(ctx context.Context, dir string) {
	if !w.cfg.Recursive {
		return
	}
	w.mu.Lock()
	fsw := w.fs
	w.mu.Unlock()
	if fsw == nil {
		return
	}
	if err := w.addTree(fsw, dir); err != nil {
		w.logger.Warn("watch new directory failed", zap.String("path", dir), zap.Error(err))
	}
	w.syncTree(ctx, dir)
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, root string) error {
	if !w.cfg.Recursive {
		return fsw.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) syncTree(ctx context.Context, root string) int {
	n := 0
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("walk failed", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.IsDir() {
			if path != root && !w.cfg.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if w.matches(path) && w.sync(ctx, path) {
			n++
		}
		return nil
	})
	return n
}

// schedule syncs path once it has been quiet for the debounce period.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fs == nil {
		return
	}
	if t, ok := w.pending[path]; ok && t.Stop() {
		w.wg.Done()
	}
	w.wg.Add(1)
	w.pending[path] = time.AfterFunc(w.cfg.Debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.sync(ctx, path)
	})
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
}

func (w *Watcher) sync(ctx context.Context, path string) bool {
	n, err := w.syncer.SyncFile(ctx, path)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			w.logger.Warn("sync file failed", zap.String("path", path), zap.Error(err))
		}
		return false
	}
	w.logger.Info("synced file", zap.String("path", path), zap.Int("chunks", n))
	return true
}

func (w *Watcher) remove(ctx context.Context, path string) {
	n, err := w.remover.DeleteByFileID(ctx, fileid.ForPath(path))
	if err != nil {
		w.logger.Warn("remove file chunks failed", zap.String("path", path), zap.Error(err))
		return
	}
	w.logger.Info("removed file", zap.String("path", path), zap.Int("chunks", n))
}

func (w *Watcher) matches(path string) bool {
	return MatchExtension(path, w.cfg.Extensions)
}

// MatchExtension reports whether path ends in one of extensions, with or without the dot.
func MatchExtension(path string, extensions []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return false
	}
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}
