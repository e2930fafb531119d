// Package config loads the engine's YAML configuration file and watches it
// for changes, grounded on the teacher's HotReloadSystem
// (engine/internal/runtime/runtime.go): an fsnotify watcher on the config
// directory, filtered to the exact file path, feeding a channel of parsed
// File values.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// File is the on-disk shape of spec.md §6's configuration surface:
// influxdb.*, logging.*, pushover.* plus the engine-level scheduling knobs
// SPEC_FULL.md's expansion adds.
type File struct {
	Engine struct {
		TickIntervalSeconds          float64 `yaml:"tick_interval_seconds"`
		MaxInFlight                  int     `yaml:"max_in_flight"`
		SNMPCollectorIntervalSeconds float64 `yaml:"snmp_collector_interval_seconds"`
		ProbeTimeoutSeconds          float64 `yaml:"probe_timeout_seconds"`
	} `yaml:"engine"`

	InfluxDB struct {
		Enabled bool   `yaml:"enabled"`
		URL     string `yaml:"url"`
		Token   string `yaml:"token"`
		Org     string `yaml:"org"`
		Bucket  string `yaml:"bucket"`
	} `yaml:"influxdb"`

	Logging struct {
		Level     string `yaml:"level"`
		FilePath  string `yaml:"file_path"`
		Retention int    `yaml:"retention_lines"`
	} `yaml:"logging"`

	Pushover struct {
		Enabled           bool   `yaml:"enabled"`
		Token             string `yaml:"token"`
		UserKey           string `yaml:"user_key"`
		Priority          int    `yaml:"priority"`
		MaintenanceMode   bool   `yaml:"maintenance_mode"`
		ThrottlingEnabled bool   `yaml:"throttling_enabled"`
		AlertThreshold    int    `yaml:"alert_threshold"`
		AlertWindow       int    `yaml:"alert_window"`
		MessageTemplate   string `yaml:"message_template"`
	} `yaml:"pushover"`
}

// Load reads and parses path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &f, nil
}

// Watcher hot-reloads a config file, grounded on the teacher's
// HotReloadSystem: an fsnotify watch on the containing directory, filtered
// to Write and Create events on the exact file.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher

	mu        sync.Mutex
	isWatching bool
}

// NewWatcher constructs a Watcher for path without starting it.
func NewWatcher(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	return &Watcher{path: path, watcher: fw}, nil
}

// Watch starts watching the config file's directory and returns a channel
// of successfully reloaded Files and a channel of errors (parse failures or
// watcher errors). Both channels close when ctx is cancelled or Stop is
// called.
func (w *Watcher) Watch(ctx context.Context) (<-chan *File, <-chan error) {
	reloads := make(chan *File, 4)
	errs := make(chan error, 4)

	w.mu.Lock()
	if w.isWatching {
		w.mu.Unlock()
		close(reloads)
		close(errs)
		return reloads, errs
	}
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		w.mu.Unlock()
		errs <- fmt.Errorf("watch config dir %s: %w", dir, err)
		close(reloads)
		close(errs)
		return reloads, errs
	}
	w.isWatching = true
	w.mu.Unlock()

	go func() {
		defer close(reloads)
		defer close(errs)
		// debounce: editors commonly emit several Write events for one
		// logical save; settle briefly before reloading.
		var pending *time.Timer
		for {
			select {
			case ev, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(100*time.Millisecond, func() {
					f, err := Load(w.path)
					if err != nil {
						errs <- err
						return
					}
					reloads <- f
				})
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				errs <- err
			case <-ctx.Done():
				return
			}
		}
	}()

	return reloads, errs
}

// Stop tears down the underlying fsnotify watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.isWatching {
		return nil
	}
	w.isWatching = false
	return w.watcher.Close()
}
