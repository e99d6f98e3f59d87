// Package plugins keeps the set of plugins a host can load. A plugin is
// a name and a single setup entry point; everything else it offers is
// discovered from the plant graph setup returns.
package plugins

import (
	"github.com/danmuck/weedcore/internal/bootstrap"
	"github.com/danmuck/weedcore/internal/weed"
)

// Setup negotiates with the host through boot and returns the plugin
// info plant, or NoPlant when the plugin cannot run on this host.
type Setup func(boot bootstrap.Bootstrap) weed.Handle

type Plugin struct {
	Name        string
	Description string
	Setup       Setup
}
