// Package host runs plugins. Each plugin gets its own bootstrap host,
// arena and allocator; the runtime loads plugins from a registry, checks
// what they describe, and drives filter instances.
package host

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/danmuck/weedcore/internal/bootstrap"
	"github.com/danmuck/weedcore/internal/config"
	"github.com/danmuck/weedcore/internal/logging"
	"github.com/danmuck/weedcore/internal/observability"
	"github.com/danmuck/weedcore/internal/plugins"
	"github.com/danmuck/weedcore/internal/weed"
	"github.com/danmuck/weedcore/internal/weed/schema"
	"github.com/rs/zerolog"
)

var (
	ErrUnknownPlugin   = errors.New("host: unknown plugin")
	ErrUnknownFilter   = errors.New("host: unknown filter")
	ErrAmbiguousFilter = errors.New("host: filter name matches several plugins")
	ErrUnknownInstance = errors.New("host: unknown instance")
	ErrUnknownParam    = errors.New("host: unknown parameter")
	ErrParamRange      = errors.New("host: parameter value out of range")
	ErrPluginPanic     = errors.New("host: plugin panicked")
)

type PluginState string

const (
	StateLoaded   PluginState = "loaded"
	StateDisabled PluginState = "disabled"
	StateFailed   PluginState = "failed"
)

// Plugin is the runtime record of one registered plugin.
type Plugin struct {
	Name           string      `json:"name" yaml:"name"`
	Description    string      `json:"description,omitempty" yaml:"description,omitempty"`
	State          PluginState `json:"state" yaml:"state"`
	Error          string      `json:"error,omitempty" yaml:"error,omitempty"`
	ABI            int32       `json:"abi,omitempty" yaml:"abi,omitempty"`
	API            int32       `json:"api,omitempty" yaml:"api,omitempty"`
	PackageVersion int32       `json:"package_version,omitempty" yaml:"package_version,omitempty"`
	Filters        []string    `json:"filters" yaml:"filters"`
	Skipped        []string    `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	BytesInUse     int         `json:"bytes_in_use" yaml:"bytes_in_use"`

	host *bootstrap.Host
	info weed.Handle
}

// Filter is a loaded filter class.
type Filter struct {
	Key         string   `json:"key" yaml:"key"`
	Name        string   `json:"name" yaml:"name"`
	Author      string   `json:"author" yaml:"author"`
	Version     int32    `json:"version" yaml:"version"`
	Flags       int32    `json:"flags" yaml:"flags"`
	Plugin      string   `json:"plugin" yaml:"plugin"`
	Category    Category `json:"category" yaml:"category"`
	Subcategory Category `json:"subcategory,omitempty" yaml:"subcategory,omitempty"`
	InChannels  int      `json:"in_channels" yaml:"in_channels"`
	OutChannels int      `json:"out_channels" yaml:"out_channels"`
	InParams    []string `json:"in_params" yaml:"in_params"`
	OutParams   []string `json:"out_params" yaml:"out_params"`
	Active      int      `json:"active_instances" yaml:"active_instances"`

	p *Plugin
	h weed.Handle
}

// Runtime owns every loaded plugin. It is safe for concurrent use; calls
// into plugins are serialised.
type Runtime struct {
	mu        sync.RWMutex
	cfg       config.HostConfig
	registry  *plugins.Registry
	plugins   map[string]*Plugin
	filters   map[string]*Filter
	instances map[string]*Instance
	logger    zerolog.Logger
}

func New(cfg config.HostConfig, registry *plugins.Registry) *Runtime {
	return &Runtime{
		cfg:       cfg,
		registry:  registry,
		plugins:   make(map[string]*Plugin),
		filters:   make(map[string]*Filter),
		instances: make(map[string]*Instance),
		logger:    logging.Component("host"),
	}
}

// Config returns the configuration the runtime was built with.
func (r *Runtime) Config() config.HostConfig { return r.cfg }

// LoadAll loads every registered plugin. A plugin that fails is recorded
// as failed and does not stop the others.
func (r *Runtime) LoadAll() {
	for _, p := range r.registry.All() {
		if _, err := r.Load(p.Name); err != nil {
			r.logger.Warn().Err(err).Str("plugin", p.Name).Msg("plugin not loaded")
		}
	}
}

// Load runs one plugin's setup against a fresh host. The returned record
// is also kept when loading fails.
func (r *Runtime) Load(name string) (*Plugin, error) {
	reg, ok := r.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlugin, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.plugins[name]; ok && old.State == StateLoaded {
		return old, nil
	}

	p := &Plugin{Name: reg.Name, Description: reg.Description, Filters: []string{}}
	r.plugins[name] = p
	if !r.cfg.Plugin(name).IsEnabled() {
		p.State = StateDisabled
		observability.RecordPluginLoad(name, string(StateDisabled))
		r.logger.Info().Str("plugin", name).Msg("plugin disabled by config")
		return p, nil
	}

	if err := r.load(p, reg.Setup); err != nil {
		p.State = StateFailed
		p.Error = err.Error()
		observability.RecordPluginLoad(name, string(StateFailed))
		return p, fmt.Errorf("load %s: %w", name, err)
	}
	p.State = StateLoaded
	p.BytesInUse = p.host.Arena().Allocator().InUse()
	observability.RecordPluginLoad(name, string(StateLoaded))
	observability.SetAllocBytes(name, p.BytesInUse)
	r.logger.Info().
		Str("plugin", name).
		Int32("abi", p.ABI).Int32("api", p.API).
		Int("filters", len(p.Filters)).
		Int("skipped", len(p.Skipped)).
		Msg("plugin loaded")
	return p, nil
}

func (r *Runtime) load(p *Plugin, setup plugins.Setup) error {
	p.host = bootstrap.NewHost(r.cfg.HostOptions(p.Name))
	a := p.host.Arena()

	var info weed.Handle
	if err := guard(func() { info = setup(p.host.Bootstrap()) }); err != nil {
		return err
	}
	if info.IsZero() {
		return fmt.Errorf("setup returned no plugin info: %w", weed.ErrPluginInvalid)
	}
	p.info = info
	p.ABI, p.API = p.host.Versions()
	if err := schema.ValidateType(a, info, weed.PlantPluginInfo); err != nil {
		return fmt.Errorf("%w: %w", weed.ErrPluginInvalid, err)
	}
	_ = a.Get(info, weed.LeafVersion, 0, &p.PackageVersion)

	v, err := a.Value(info, weed.LeafFilters)
	if err != nil {
		return err
	}
	var loaded []*Filter
	seen := make(map[string]bool)
	for i, h := range v.(weed.PlantRefs) {
		f, err := r.inspect(p, h)
		if err == nil {
			if _, dup := r.filters[f.Key]; dup || seen[f.Key] {
				err = fmt.Errorf("duplicate filter %q", f.Key)
			}
		}
		if err != nil {
			p.Skipped = append(p.Skipped, fmt.Sprintf("filter %d: %v", i, err))
			r.logger.Warn().Err(err).Str("plugin", p.Name).Int("filter", i).Msg("filter skipped")
			continue
		}
		seen[f.Key] = true
		loaded = append(loaded, f)
	}
	if len(loaded) == 0 {
		return fmt.Errorf("no usable filters: %w", weed.ErrPluginInvalid)
	}
	for _, f := range loaded {
		r.filters[f.Key] = f
		p.Filters = append(p.Filters, f.Key)
	}
	return nil
}

// inspect validates a filter class and the templates it lists.
func (r *Runtime) inspect(p *Plugin, h weed.Handle) (*Filter, error) {
	a := p.host.Arena()
	if err := schema.ValidateType(a, h, weed.PlantFilterClass); err != nil {
		return nil, fmt.Errorf("%w: %w", weed.ErrFilterInvalid, err)
	}
	f := &Filter{Plugin: p.Name, p: p, h: h, InParams: []string{}, OutParams: []string{}}
	_ = a.Get(h, weed.LeafName, 0, &f.Name)
	_ = a.Get(h, weed.LeafAuthor, 0, &f.Author)
	_ = a.Get(h, weed.LeafVersion, 0, &f.Version)
	_ = a.Get(h, weed.LeafFlags, 0, &f.Flags)
	f.Key = filterKey(p.Name, f.Name)

	inChans, err := templateList(a, h, weed.LeafInChanTmpls, weed.PlantChannelTemplate)
	if err != nil {
		return nil, err
	}
	outChans, err := templateList(a, h, weed.LeafOutChanTmpls, weed.PlantChannelTemplate)
	if err != nil {
		return nil, err
	}
	inParams, err := templateList(a, h, weed.LeafInParamTmpls, weed.PlantParameterTemplate)
	if err != nil {
		return nil, err
	}
	outParams, err := templateList(a, h, weed.LeafOutParamTmpls, weed.PlantParameterTemplate)
	if err != nil {
		return nil, err
	}

	videoIn, transition := false, false
	for _, ch := range inChans {
		if !isOptional(a, ch) {
			f.InChannels++
		}
		var audio bool
		_ = a.Get(ch, weed.LeafIsAudio, 0, &audio)
		videoIn = videoIn || !audio
	}
	for _, ch := range outChans {
		if !isOptional(a, ch) {
			f.OutChannels++
		}
	}
	for _, pt := range inParams {
		f.InParams = append(f.InParams, plantName(a, pt))
		var tr bool
		_ = a.Get(pt, weed.LeafIsTransition, 0, &tr)
		transition = transition || tr
	}
	for _, pt := range outParams {
		f.OutParams = append(f.OutParams, plantName(a, pt))
	}
	f.Category = Categorise(f.Flags, f.InChannels, f.OutChannels)
	f.Subcategory = Subcategorise(f.Category, videoIn, transition)
	return f, nil
}

// templateList reads an optional list leaf and validates every entry.
func templateList(a *weed.Arena, h weed.Handle, key string, want int32) ([]weed.Handle, error) {
	v, err := a.Value(h, key)
	if err := weed.Optional(err); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", weed.ErrFilterInvalid, key, err)
	}
	if v == nil {
		return nil, nil
	}
	refs, ok := v.(weed.PlantRefs)
	if !ok {
		return nil, fmt.Errorf("%w: %s: %w", weed.ErrFilterInvalid, key, weed.ErrWrongSeedType)
	}
	for _, t := range refs {
		if err := schema.ValidateType(a, t, want); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", weed.ErrFilterInvalid, key, err)
		}
	}
	return refs, nil
}

func isOptional(a *weed.Arena, ch weed.Handle) bool {
	var flags int32
	_ = a.Get(ch, weed.LeafFlags, 0, &flags)
	return flags&weed.ChannelOptional != 0
}

func plantName(a *weed.Arena, h weed.Handle) string {
	var name string
	_ = a.Get(h, weed.LeafName, 0, &name)
	return name
}

// filterKey turns "chroma blend" from plugin blend into blend.chroma-blend.
func filterKey(plugin, name string) string {
	var b strings.Builder
	b.WriteString(plugin)
	b.WriteByte('.')
	dash := false
	for _, c := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteRune(c)
			dash = false
		case !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// guard turns a plugin panic into an error.
func guard(fn func()) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrPluginPanic, rec)
		}
	}()
	fn()
	return nil
}

// Plugins returns a snapshot of every plugin record, ordered by name.
func (r *Runtime) Plugins() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Runtime) Plugin(name string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	if !ok {
		return Plugin{}, fmt.Errorf("%w: %s", ErrUnknownPlugin, name)
	}
	return *p, nil
}

// Filters returns a snapshot of every loaded filter, ordered by key.
func (r *Runtime) Filters() []Filter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Filter, 0, len(r.filters))
	for _, f := range r.filters {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (r *Runtime) Filter(ref string) (Filter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, err := r.lookup(ref)
	if err != nil {
		return Filter{}, err
	}
	return *f, nil
}

// lookup accepts a filter key or, when unambiguous, a filter name.
func (r *Runtime) lookup(ref string) (*Filter, error) {
	if f, ok := r.filters[ref]; ok {
		return f, nil
	}
	var found *Filter
	for _, f := range r.filters {
		if f.Name != ref {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%w: %q", ErrAmbiguousFilter, ref)
		}
		found = f
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, ref)
	}
	return found, nil
}

// Close deinitialises every live instance.
func (r *Runtime) Close() error {
	r.mu.Lock()
	ids := make([]string, 0, len(r.instances))
	for id := range r.instances {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	var errs []error
	for _, id := range ids {
		if err := r.Deinit(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
