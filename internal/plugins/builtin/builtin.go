// Package builtin registers the plugins compiled into weedhost.
package builtin

import (
	"github.com/danmuck/weedcore/internal/plugins"
	"github.com/danmuck/weedcore/internal/plugins/audiovol"
	"github.com/danmuck/weedcore/internal/plugins/blend"
)

func All() []plugins.Plugin {
	return []plugins.Plugin{blend.Plugin(), audiovol.Plugin()}
}

// Register adds every built-in plugin to r.
func Register(r *plugins.Registry) error {
	for _, p := range All() {
		if err := r.Register(p); err != nil {
			return err
		}
	}
	return nil
}

// Registry returns a fresh registry holding the built-in plugins.
func Registry() *plugins.Registry {
	r := plugins.NewRegistry()
	if err := Register(r); err != nil {
		panic(err)
	}
	return r
}
