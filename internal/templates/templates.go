// Package templates builds the descriptor plants a plugin hands back
// from setup: filter classes, channel templates, parameter templates and
// their gui plants. Every builder goes through the plugin's bound Core,
// so the host allocator is charged for everything built here.
package templates

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/danmuck/weedcore/internal/binding"
	"github.com/danmuck/weedcore/internal/weed"
)

var ErrNoGUI = errors.New("templates: plant type cannot carry a gui")

// Builder wraps a bound Core with the template helpers.
type Builder struct {
	c *binding.Core
}

func New(c *binding.Core) *Builder { return &Builder{c: c} }

// Core returns the binding the builder writes through.
func (b *Builder) Core() *binding.Core { return b.c }

// plant collects the writes for one plant and keeps the first error.
type plant struct {
	c     *binding.Core
	h     weed.Handle
	extra []weed.Handle
	err   error
}

func (b *Builder) start(plantType int32) *plant {
	h, err := b.c.New(plantType)
	return &plant{c: b.c, h: h, err: err}
}

func (p *plant) set(key string, v weed.Value) {
	if p.err != nil {
		return
	}
	p.err = p.c.Set(p.h, key, v)
}

func (p *plant) setOn(h weed.Handle, key string, v weed.Value) {
	if p.err != nil {
		return
	}
	p.err = p.c.Set(h, key, v)
}

// gui creates the gui plant and links it in.
func (p *plant) gui() weed.Handle {
	if p.err != nil {
		return weed.NoPlant
	}
	g, err := p.c.New(weed.PlantGUI)
	if err != nil {
		p.err = err
		return weed.NoPlant
	}
	p.extra = append(p.extra, g)
	p.set(weed.LeafGUI, weed.PlantRefs{g})
	return g
}

// done returns the plant, or frees what was built and returns the first
// error. Hosts below the free capability keep the partial plants until
// the plugin is discarded.
func (p *plant) done(what string) (weed.Handle, error) {
	if p.err == nil {
		return p.h, nil
	}
	for _, h := range append(p.extra, p.h) {
		if !h.IsZero() {
			_ = p.c.FreePlant(h)
		}
	}
	return weed.NoPlant, fmt.Errorf("%s: %w", what, p.err)
}

// ChannelTemplate describes a video channel. Palettes, when given, are
// stored on the template and override the filter class list.
func (b *Builder) ChannelTemplate(name string, flags int32, palettes ...int32) (weed.Handle, error) {
	p := b.start(weed.PlantChannelTemplate)
	p.set(weed.LeafName, weed.Strings{name})
	p.set(weed.LeafFlags, weed.Int32s{flags})
	if len(palettes) > 0 {
		p.set(weed.LeafPaletteList, weed.Int32s(trimPalettes(palettes)))
	}
	return p.done("channel template " + name)
}

func (b *Builder) AudioChannelTemplate(name string, flags int32) (weed.Handle, error) {
	p := b.start(weed.PlantChannelTemplate)
	p.set(weed.LeafName, weed.Strings{name})
	p.set(weed.LeafFlags, weed.Int32s{flags})
	p.set(weed.LeafIsAudio, weed.Booleans{true})
	return p.done("audio channel template " + name)
}

// trimPalettes cuts the list at the first PaletteEnd.
func trimPalettes(palettes []int32) []int32 {
	if i := slices.Index(palettes, weed.PaletteEnd); i >= 0 {
		return palettes[:i]
	}
	return palettes
}

// Filter is the input to FilterClass. Template lists may be empty; they
// are still stored, with no elements.
type Filter struct {
	Name     string
	Author   string
	Version  int32
	Flags    int32
	Palettes []int32

	Init    weed.InitFunc
	Process weed.ProcessFunc
	Deinit  weed.DeinitFunc

	InChannels  []weed.Handle
	OutChannels []weed.Handle
	InParams    []weed.Handle
	OutParams   []weed.Handle
}

// FilterClass builds a filter class plant. Nil entry points are left out.
func (b *Builder) FilterClass(f Filter) (weed.Handle, error) {
	if f.Name == "" {
		return weed.NoPlant, fmt.Errorf("filter class: %w", weed.ErrFilterInvalid)
	}
	p := b.start(weed.PlantFilterClass)
	p.set(weed.LeafName, weed.Strings{f.Name})
	p.set(weed.LeafAuthor, weed.Strings{f.Author})
	p.set(weed.LeafVersion, weed.Int32s{f.Version})
	p.set(weed.LeafFlags, weed.Int32s{f.Flags})
	if f.Init != nil {
		p.set(weed.LeafInitFunc, weed.Funcs{f.Init})
	}
	if f.Process != nil {
		p.set(weed.LeafProcessFunc, weed.Funcs{f.Process})
	}
	if f.Deinit != nil {
		p.set(weed.LeafDeinitFunc, weed.Funcs{f.Deinit})
	}
	p.set(weed.LeafInChanTmpls, weed.PlantRefs(untilNoPlant(f.InChannels)))
	p.set(weed.LeafOutChanTmpls, weed.PlantRefs(untilNoPlant(f.OutChannels)))
	p.set(weed.LeafInParamTmpls, weed.PlantRefs(untilNoPlant(f.InParams)))
	p.set(weed.LeafOutParamTmpls, weed.PlantRefs(untilNoPlant(f.OutParams)))
	if f.Palettes != nil {
		p.set(weed.LeafPaletteList, weed.Int32s(trimPalettes(f.Palettes)))
	}
	return p.done("filter class " + f.Name)
}

// untilNoPlant accepts lists terminated the way clone output is.
func untilNoPlant(list []weed.Handle) []weed.Handle {
	if i := slices.IndexFunc(list, weed.Handle.IsZero); i >= 0 {
		return list[:i]
	}
	return list
}

// AddFilterClass appends filter to the plugin's filters and points the
// filter back at the plugin.
func (b *Builder) AddFilterClass(pluginInfo, filter weed.Handle) error {
	filters, err := b.c.GetPlants(pluginInfo, weed.LeafFilters)
	if err := weed.Optional(err); err != nil {
		return fmt.Errorf("add filter class: %w", err)
	}
	if err := b.c.SetPlants(pluginInfo, weed.LeafFilters, append(filters, filter)); err != nil {
		return fmt.Errorf("add filter class: %w", err)
	}
	if err := b.c.SetPlant(filter, weed.LeafPluginInfo, pluginInfo); err != nil {
		return fmt.Errorf("add filter class: %w", err)
	}
	return nil
}

// SortFilters registers filters on pluginInfo in case-insensitive name
// order and returns how many were added.
func (b *Builder) SortFilters(pluginInfo weed.Handle, filters []weed.Handle) (int, error) {
	type named struct {
		h    weed.Handle
		name string
	}
	list := make([]named, 0, len(filters))
	for _, f := range filters {
		name, err := b.c.GetString(f, weed.LeafName)
		if err != nil {
			return 0, fmt.Errorf("sort filters: %w", err)
		}
		list = append(list, named{h: f, name: name})
	}
	slices.SortStableFunc(list, func(a, b named) int {
		return strings.Compare(strings.ToLower(a.name), strings.ToLower(b.name))
	})
	for i, f := range list {
		if err := b.AddFilterClass(pluginInfo, f.h); err != nil {
			return i, err
		}
	}
	return len(list), nil
}

// GUI returns the gui plant of a filter class, parameter template or
// parameter, creating it on first use.
func (b *Builder) GUI(h weed.Handle) (weed.Handle, error) {
	t, err := b.c.Type(h)
	if err != nil {
		return weed.NoPlant, err
	}
	switch t {
	case weed.PlantFilterClass, weed.PlantParameterTemplate, weed.PlantParameter:
	default:
		return weed.NoPlant, fmt.Errorf("%s: %w", weed.PlantTypeName(t), ErrNoGUI)
	}
	g, err := b.c.GetPlant(h, weed.LeafGUI)
	if err == nil && !g.IsZero() {
		return g, nil
	}
	if err := weed.Optional(err); err != nil && !errors.Is(err, weed.ErrNoSuchElement) {
		return weed.NoPlant, err
	}
	if g, err = b.c.New(weed.PlantGUI); err != nil {
		return weed.NoPlant, err
	}
	if err := b.c.SetPlant(h, weed.LeafGUI, g); err != nil {
		_ = b.c.FreePlant(g)
		return weed.NoPlant, err
	}
	return g, nil
}

// SetFlags replaces the flags of a filter class or template. Other
// plant types are left alone.
func (b *Builder) SetFlags(h weed.Handle, flags int32) error {
	t, err := b.c.Type(h)
	if err != nil {
		return err
	}
	switch t {
	case weed.PlantFilterClass, weed.PlantParameterTemplate, weed.PlantChannelTemplate:
		return b.c.SetInt32(h, weed.LeafFlags, flags)
	}
	return nil
}

// SetHidden marks a parameter hidden in its gui.
func (b *Builder) SetHidden(h weed.Handle, hidden bool) error {
	g, err := b.GUI(h)
	if err != nil {
		return err
	}
	return b.c.SetBool(g, weed.LeafHidden, hidden)
}

// DeclareTransition marks a parameter template as the filter's
// transition control.
func (b *Builder) DeclareTransition(paramTmpl weed.Handle) error {
	return b.c.SetBool(paramTmpl, weed.LeafIsTransition, true)
}

func (b *Builder) DeclareVolumeMaster(paramTmpl weed.Handle) error {
	return b.c.SetBool(paramTmpl, weed.LeafIsVolMaster, true)
}

func (b *Builder) SetPackageVersion(pluginInfo weed.Handle, version int32) error {
	return b.c.SetInt32(pluginInfo, weed.LeafVersion, version)
}
