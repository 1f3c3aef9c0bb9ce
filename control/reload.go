// control/reload.go
// Author: momentics <momentics@gmail.com>
//
// Config reload hooks, triggered by the server programs on SIGHUP.

package control

import (
	"sync"

	"github.com/rs/zerolog"
)

// Reloader re-reads a config file and hands the result to registered hooks.
type Reloader struct {
	mu    sync.Mutex
	path  string
	hooks []func(Config)
}

// NewReloader returns a reloader for path. An empty path makes Reload a no-op.
func NewReloader(path string) *Reloader {
	return &Reloader{path: path}
}

// RegisterHook adds a listener called with every successfully loaded config.
func (r *Reloader) RegisterHook(fn func(Config)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

// Reload loads the file and runs the hooks synchronously in registration
// order. Hooks are not called when loading fails.
func (r *Reloader) Reload() (Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.path == "" {
		return DefaultConfig(), nil
	}
	cfg, err := LoadConfig(r.path)
	if err != nil {
		return cfg, err
	}
	for _, fn := range r.hooks {
		fn(cfg)
	}
	return cfg, nil
}

// LevelHook applies the reloaded log level process-wide.
func LevelHook(cfg Config) {
	if lvl, err := ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
}
