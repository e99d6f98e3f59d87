package config

import (
	"github.com/danmuck/weedcore/internal/bootstrap"
	"github.com/danmuck/weedcore/internal/weed"
	"github.com/danmuck/weedcore/internal/weed/alloc"
)

// HostOptions builds the bootstrap options for one plugin's host. Each
// plugin gets its own allocator so budgets stay separate.
func (c HostConfig) HostOptions(plugin string) bootstrap.HostOptions {
	limit := c.Memory.MaxBytes
	if p := c.Plugin(plugin); p.MaxBytes > 0 {
		limit = p.MaxBytes
	}
	var flags int32
	if c.LinearGamma {
		flags |= weed.HostSupportsLinearGamma
	}
	if c.PremultAlpha {
		flags |= weed.HostSupportsPremultAlpha
	}
	return bootstrap.HostOptions{
		ABI:       c.ABI,
		API:       c.API,
		Name:      c.Name,
		Version:   c.Version,
		Flags:     flags,
		Verbosity: c.Verbosity,
		Allocator: alloc.NewPool(limit),
	}
}
