// Package converter holds the adapters that reach the externally
// supplied MML conversion unit: an in-process loader for a Go plugin
// and a subprocess runner for the standalone-executable form.
package converter

import (
	"fmt"
	"plugin"
	"sync"

	"github.com/parrot/core/internal/infrastructure/logger"
	"github.com/parrot/core/internal/ports"
)

// PluginLoader opens the conversion unit's shared object at most once
// per process. The outcome, success or failure, is cached: a broken
// unit is not re-opened on every request, and once loaded the plugin is
// shared read-only for the process lifetime.
type PluginLoader struct {
	path   string
	logger *logger.Logger

	once sync.Once
	unit ports.ConversionUnit
	err  error
}

// NewPluginLoader creates a loader for the shared object at path.
func NewPluginLoader(path string, logger *logger.Logger) *PluginLoader {
	return &PluginLoader{
		path:   path,
		logger: logger.WithComponent("converter"),
	}
}

// Load opens the plugin on first use and returns the cached handle (or
// the cached load error) afterwards.
func (l *PluginLoader) Load() (ports.ConversionUnit, error) {
	l.once.Do(func() {
		p, err := plugin.Open(l.path)
		if err != nil {
			l.err = fmt.Errorf("loading conversion unit %s: %w", l.path, err)
			l.logger.Warnw("Conversion unit not loadable; only the subprocess fallback remains",
				"path", l.path,
				"error", err,
			)
			return
		}
		l.logger.Infow("Conversion unit loaded", "path", l.path)
		l.unit = &pluginUnit{p: p}
	})
	return l.unit, l.err
}

// pluginUnit adapts *plugin.Plugin to ports.ConversionUnit.
type pluginUnit struct {
	p *plugin.Plugin
}

func (u *pluginUnit) Lookup(name string) (any, error) {
	sym, err := u.p.Lookup(name)
	if err != nil {
		return nil, err
	}
	return any(sym), nil
}
