// Package ortenv installs the ONNX inference facility once its runtime library is
// present, watching for the library file with fsnotify when it is not there yet.
package ortenv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/vecta/internal/embedding"
)

const defaultDebounce = 400 * time.Millisecond

// BuildFunc constructs the facility once the runtime library is usable.
type BuildFunc func() (embedding.Facility, error)

// Installer puts a facility into a slot when the runtime library at libPath exists.
// Loaders polling the slot pick it up as soon as it is installed.
type Installer struct {
	slot     *embedding.FacilitySlot
	libPath  string
	build    BuildFunc
	debounce time.Duration
	logger   *zap.Logger

	mu        sync.Mutex
	watcher   *fsnotify.Watcher
	timer     *time.Timer
	installed bool
	done      chan struct{}
	stopOnce  sync.Once
}

// Option configures an Installer.
type Option func(*Installer)

// WithLogger sets a logger for install events.
func WithLogger(l *zap.Logger) Option {
	return func(i *Installer) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithDebounce sets how long the library file must be quiet before installing.
func WithDebounce(d time.Duration) Option {
	return func(i *Installer) {
		if d >= 0 {
			i.debounce = d
		}
	}
}

// NewInstaller creates an installer. An empty libPath means the runtime needs no
// library file and the facility is installed on Start.
func NewInstaller(slot *embedding.FacilitySlot, libPath string, build BuildFunc, opts ...Option) *Installer {
	if libPath != "" {
		libPath = filepath.Clean(libPath)
	}
	i := &Installer{
		slot:     slot,
		libPath:  libPath,
		build:    build,
		debounce: defaultDebounce,
		logger:   zap.NewNop(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Start installs the facility right away if the library exists, otherwise it watches
// the library's directory until the file appears, ctx is cancelled or Stop is called.
func (i *Installer) Start(ctx context.Context) error {
	if i.build == nil || i.slot == nil {
		return errors.New("ortenv: installer needs a slot and a build function")
	}
	if i.libPath == "" || fileExists(i.libPath) {
		return i.install()
	}

	dir := filepath.Dir(i.libPath)
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return err
	}
	i.mu.Lock()
	i.watcher = w
	i.mu.Unlock()
	i.logger.Info("waiting for inference runtime", zap.String("library", i.libPath))

	// The file may have landed between the check and the watch.
	if fileExists(i.libPath) {
		i.schedule()
	}
	go i.run(ctx, w)
	return nil
}

func (i *Installer) run(ctx context.Context, w *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			i.Stop()
			return
		case <-i.done:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != i.libPath {
				continue
			}
			i.logger.Debug("runtime library event", zap.String("op", ev.Op.String()), zap.String("path", ev.Name))
			if ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Rename) {
				i.schedule()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			if err != nil {
				i.logger.Debug("runtime watcher error", zap.Error(err))
			}
		}
	}
}

func (i *Installer) schedule() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.installed {
		return
	}
	if i.timer != nil {
		i.timer.Stop()
	}
	i.timer = time.AfterFunc(i.debounce, func() {
		if !fileExists(i.libPath) {
			return
		}
		if err := i.install(); err == nil {
			i.Stop()
		}
	})
}

func (i *Installer) install() error {
	i.mu.Lock()
	if i.installed {
		i.mu.Unlock()
		return nil
	}
	i.mu.Unlock()

	f, err := i.build()
	if err != nil {
		i.logger.Warn("inference runtime not usable", zap.String("library", i.libPath), zap.Error(err))
		return err
	}

	i.mu.Lock()
	i.installed = true
	i.mu.Unlock()
	i.slot.Install(f)
	i.logger.Info("inference facility installed", zap.String("library", i.libPath))
	return nil
}

// Installed reports whether the facility has been installed.
func (i *Installer) Installed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.installed
}

// Stop stops watching. It is safe to call more than once.
func (i *Installer) Stop() {
	i.mu.Lock()
	if i.timer != nil && !i.installed {
		i.timer.Stop()
	}
	w := i.watcher
	i.watcher = nil
	i.mu.Unlock()
	if w != nil {
		_ = w.Close()
	}
	i.stopOnce.Do(func() { close(i.done) })
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
