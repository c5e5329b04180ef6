package config

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ReloadObserver is told about every reload attempt.
type ReloadObserver interface {
	ObserveReload(err error)
}

// Holder provides thread-safe access to configuration with hot reload support.
type Holder struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	logger   zerolog.Logger
	observer ReloadObserver
	watcher  *fsnotify.Watcher
	onChange []func(*Config)
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewHolder creates a new config holder and loads the initial configuration.
func NewHolder(path string, logger zerolog.Logger) (*Holder, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}

	return &Holder{
		config: cfg,
		path:   absPath,
		logger: logger,
		stopCh: make(chan struct{}),
	}, nil
}

// NewStaticHolder wraps an already loaded configuration. It has no file,
// so Reload and WatchFile fail.
func NewStaticHolder(cfg *Config, logger zerolog.Logger) *Holder {
	return &Holder{
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// SetLogger replaces the logger. The holder is usually created before the
// logging config it carries has been applied.
func (h *Holder) SetLogger(logger zerolog.Logger) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logger = logger
}

// SetObserver reports reloads to o.
func (h *Holder) SetObserver(o ReloadObserver) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observer = o
}

// Get returns the current configuration (thread-safe).
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config
}

// Path returns the absolute config file path, empty for static holders.
func (h *Holder) Path() string { return h.path }

// Reload reloads the configuration from disk.
// Returns error if loading fails (keeps old config).
func (h *Holder) Reload() error {
	if h.path == "" {
		return fmt.Errorf("reload config: no config file")
	}
	h.logger.Info().Str("path", h.path).Msg("reloading configuration")

	newCfg, err := Load(h.path)

	h.mu.RLock()
	observer := h.observer
	h.mu.RUnlock()
	if observer != nil {
		observer.ObserveReload(err)
	}

	if err != nil {
		h.logger.Error().Err(err).Msg("config reload failed, keeping old config")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	oldCfg := h.config
	h.config = newCfg
	callbacks := append(([]func(*Config))(nil), h.onChange...)
	h.mu.Unlock()

	h.logChanges(oldCfg, newCfg)

	for _, fn := range callbacks {
		fn(newCfg)
	}

	h.logger.Info().Msg("configuration reloaded successfully")
	return nil
}

// OnChange registers a callback to be called when config changes.
func (h *Holder) OnChange(fn func(*Config)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = append(h.onChange, fn)
}

// WatchFile starts watching the config file, and the definitions path when
// schema.watch is set. Changes to either trigger a reload.
func (h *Holder) WatchFile() error {
	if h.path == "" {
		return fmt.Errorf("watch config: no config file")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	h.watcher = watcher

	// Watch the directory (more reliable for editors that do atomic saves)
	if err := watcher.Add(filepath.Dir(h.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	defs := h.definitionsPath()
	if defs != "" {
		dir := defs
		if info, err := os.Stat(defs); err == nil && !info.IsDir() {
			dir = filepath.Dir(defs)
		}
		if dir != filepath.Dir(h.path) {
			if err := watcher.Add(dir); err != nil {
				watcher.Close()
				return fmt.Errorf("watch definitions: %w", err)
			}
		}
	}

	go h.watchLoop(defs)

	h.logger.Info().Str("path", h.path).Str("definitions", defs).Msg("watching config for changes")
	return nil
}

func (h *Holder) definitionsPath() string {
	cfg := h.Get()
	if !cfg.Schema.Watch || cfg.Schema.Definitions == "" {
		return ""
	}
	abs, err := filepath.Abs(cfg.Schema.Definitions)
	if err != nil {
		return ""
	}
	return abs
}

// WatchSignals starts listening for SIGHUP to trigger reload.
func (h *Holder) WatchSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	go func() {
		for {
			select {
			case <-sigCh:
				h.logger.Info().Msg("received SIGHUP, reloading config")
				if err := h.Reload(); err != nil {
					h.logger.Error().Err(err).Msg("SIGHUP reload failed")
				}
			case <-h.stopCh:
				signal.Stop(sigCh)
				return
			}
		}
	}()

	h.logger.Info().Msg("listening for SIGHUP to reload config")
}

// Stop stops watching for file changes and signals.
func (h *Holder) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		if h.watcher != nil {
			h.watcher.Close()
		}
	})
}

func (h *Holder) watchLoop(defs string) {
	for {
		select {
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if !h.relevant(event.Name, defs) {
				continue
			}

			// React to write or create (atomic save = create)
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			h.logger.Debug().
				Str("event", event.Op.String()).
				Str("file", event.Name).
				Msg("watched file changed")

			if err := h.Reload(); err != nil {
				h.logger.Error().Err(err).Msg("file watch reload failed")
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Msg("file watcher error")

		case <-h.stopCh:
			return
		}
	}
}

// relevant reports whether a change to name concerns the config file or a
// YAML file under the definitions path.
func (h *Holder) relevant(name, defs string) bool {
	if filepath.Clean(name) == h.path {
		return true
	}
	if defs == "" {
		return false
	}
	name = filepath.Clean(name)
	if name == defs {
		return true
	}
	ext := filepath.Ext(name)
	return strings.HasPrefix(name, defs+string(filepath.Separator)) && (ext == ".yaml" || ext == ".yml")
}

func (h *Holder) logChanges(old, new *Config) {
	if old.Logging.Level != new.Logging.Level {
		h.logger.Info().
			Str("old", old.Logging.Level).
			Str("new", new.Logging.Level).
			Msg("log level changed")
	}

	if old.Schema.Definitions != new.Schema.Definitions {
		h.logger.Info().
			Str("old", old.Schema.Definitions).
			Str("new", new.Schema.Definitions).
			Msg("definitions path changed")
	}

	for _, field := range changedNonReloadable(old, new) {
		h.logger.Warn().Str("field", field).Msg("setting changed but requires a restart")
	}
}

func changedNonReloadable(old, new *Config) []string {
	var changed []string
	if old.Server.Host != new.Server.Host {
		changed = append(changed, "server.host")
	}
	if old.Server.Port != new.Server.Port {
		changed = append(changed, "server.port")
	}
	if old.Database.Driver != new.Database.Driver {
		changed = append(changed, "database.driver")
	}
	if old.Database.DSN != new.Database.DSN {
		changed = append(changed, "database.dsn")
	}
	if old.Queue.Adapter != new.Queue.Adapter {
		changed = append(changed, "queue.adapter")
	}
	return changed
}

// ReloadableFields returns which fields can be changed without restart.
func ReloadableFields() []string {
	return []string{
		"schema.definitions",
		"logging.level",
	}
}

// NonReloadableFields returns which fields require a restart.
func NonReloadableFields() []string {
	return []string{
		"server.host",
		"server.port",
		"database.driver",
		"database.dsn",
		"queue.adapter",
	}
}
