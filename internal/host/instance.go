package host

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/danmuck/weedcore/internal/clone"
	"github.com/danmuck/weedcore/internal/observability"
	"github.com/danmuck/weedcore/internal/templates"
	"github.com/danmuck/weedcore/internal/weed"
	"github.com/google/uuid"
)

// Instance is a live filter instance.
type Instance struct {
	ID     string `json:"id" yaml:"id"`
	Filter string `json:"filter" yaml:"filter"`

	f         *Filter
	h         weed.Handle
	inChans   []weed.Handle
	outChans  []weed.Handle
	inParams  []weed.Handle
	outParams []weed.Handle
}

// Handle is the instance's FilterInstance plant.
func (i *Instance) Handle() weed.Handle { return i.h }

// instanceBuild tracks plants made for one instance so a failure can
// release them.
type instanceBuild struct {
	a       *weed.Arena
	created []weed.Handle
}

func (b *instanceBuild) newPlant(plantType int32) (weed.Handle, error) {
	h, err := b.a.New(plantType)
	if err != nil {
		return weed.NoPlant, err
	}
	b.created = append(b.created, h)
	return h, nil
}

func (b *instanceBuild) free() {
	for i := len(b.created) - 1; i >= 0; i-- {
		_ = b.a.Free(b.created[i])
	}
	b.created = nil
}

// Instantiate builds a filter instance and runs the filter's init
// function. ref is a filter key or name.
func (r *Runtime) Instantiate(ref string) (*Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := r.lookup(ref)
	if err != nil {
		return nil, err
	}
	if limit := r.cfg.Instances.MaxPerFilter; limit > 0 && f.Active >= limit {
		return nil, fmt.Errorf("instantiate %s: %w", f.Key, weed.ErrTooManyInstances)
	}

	a := f.p.host.Arena()
	b := &instanceBuild{a: a}
	inst, err := r.buildInstance(b, f)
	if err != nil {
		b.free()
		return nil, fmt.Errorf("instantiate %s: %w", f.Key, err)
	}

	var fn any
	if err := weed.Optional(a.Get(f.h, weed.LeafInitFunc, 0, &fn)); err != nil {
		b.free()
		return nil, fmt.Errorf("instantiate %s: %w", f.Key, err)
	}
	if fn != nil {
		initFn, ok := fn.(weed.InitFunc)
		if !ok {
			b.free()
			return nil, fmt.Errorf("instantiate %s: init_func is %T: %w", f.Key, fn, weed.ErrWrongSeedType)
		}
		var st weed.Status
		if err := guard(func() { st = initFn(inst.h) }); err != nil {
			b.free()
			return nil, fmt.Errorf("instantiate %s: %w", f.Key, err)
		}
		if st != weed.StatusSuccess {
			b.free()
			return nil, fmt.Errorf("instantiate %s: init: %w", f.Key, st.Err())
		}
	}

	r.instances[inst.ID] = inst
	f.Active++
	observability.SetInstancesActive(f.Key, f.Active)
	observability.SetAllocBytes(f.Plugin, a.Allocator().InUse())
	r.logger.Debug().Str("filter", f.Key).Str("instance", inst.ID).Msg("instance created")
	return inst, nil
}

func (r *Runtime) buildInstance(b *instanceBuild, f *Filter) (*Instance, error) {
	a := b.a
	h, err := b.newPlant(weed.PlantFilterInstance)
	if err != nil {
		return nil, err
	}
	inst := &Instance{ID: uuid.NewString(), Filter: f.Key, f: f, h: h}
	if err := a.Set(h, weed.LeafFilterClass, weed.PlantRefs{f.h}); err != nil {
		return nil, err
	}
	if err := a.Set(h, weed.LeafInstanceID, weed.Strings{inst.ID}); err != nil {
		return nil, err
	}

	lists := []struct {
		tmpls string
		key   string
		dst   *[]weed.Handle
		make  func(*instanceBuild, weed.Handle) (weed.Handle, error)
	}{
		{weed.LeafInChanTmpls, weed.LeafInChannels, &inst.inChans, newChannel},
		{weed.LeafOutChanTmpls, weed.LeafOutChannels, &inst.outChans, newChannel},
		{weed.LeafInParamTmpls, weed.LeafInParameters, &inst.inParams, newParameter},
		{weed.LeafOutParamTmpls, weed.LeafOutParameters, &inst.outParams, newParameter},
	}
	for _, l := range lists {
		v, err := a.Value(f.h, l.tmpls)
		if err := weed.Optional(err); err != nil {
			return nil, err
		}
		refs, _ := v.(weed.PlantRefs)
		made := make(weed.PlantRefs, 0, len(refs))
		for _, t := range refs {
			p, err := l.make(b, t)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", l.key, err)
			}
			made = append(made, p)
		}
		if err := a.Set(h, l.key, made); err != nil {
			return nil, err
		}
		*l.dst = made
	}
	return inst, nil
}

func newChannel(b *instanceBuild, tmpl weed.Handle) (weed.Handle, error) {
	ch, err := b.newPlant(weed.PlantChannel)
	if err != nil {
		return weed.NoPlant, err
	}
	if err := b.a.Set(ch, weed.LeafTemplate, weed.PlantRefs{tmpl}); err != nil {
		return weed.NoPlant, err
	}
	var audio bool
	_ = b.a.Get(tmpl, weed.LeafIsAudio, 0, &audio)
	if err := b.a.Set(ch, weed.LeafIsAudio, weed.Booleans{audio}); err != nil {
		return weed.NoPlant, err
	}
	return ch, nil
}

// newParameter seeds the live value from the template default and gives
// the parameter its own copy of the template's gui.
func newParameter(b *instanceBuild, tmpl weed.Handle) (weed.Handle, error) {
	p, err := b.newPlant(weed.PlantParameter)
	if err != nil {
		return weed.NoPlant, err
	}
	if err := b.a.Set(p, weed.LeafTemplate, weed.PlantRefs{tmpl}); err != nil {
		return weed.NoPlant, err
	}
	def, err := b.a.Value(tmpl, weed.LeafDefault)
	if err != nil {
		return weed.NoPlant, weed.Required(weed.LeafDefault, err)
	}
	if err := b.a.Set(p, weed.LeafValue, def); err != nil {
		return weed.NoPlant, err
	}
	var gui weed.Handle
	if err := weed.Optional(b.a.Get(tmpl, weed.LeafGUI, 0, &gui)); err != nil {
		return weed.NoPlant, err
	}
	if gui.IsZero() {
		return p, nil
	}
	cp, err := clone.Plant(clone.ArenaStore{A: b.a}, gui)
	if err != nil {
		return weed.NoPlant, err
	}
	b.created = append(b.created, cp)
	if err := b.a.Set(p, weed.LeafGUI, weed.PlantRefs{cp}); err != nil {
		return weed.NoPlant, err
	}
	return p, nil
}

// Instances lists live instances ordered by filter then id.
func (r *Runtime) Instances() []Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, Instance{ID: inst.ID, Filter: inst.Filter})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Filter != out[j].Filter {
			return out[i].Filter < out[j].Filter
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *Runtime) instance(id string) (*Instance, error) {
	inst, ok := r.instances[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownInstance, id)
	}
	return inst, nil
}

// param finds an input or output parameter by template name.
func (inst *Instance) param(a *weed.Arena, name string) (p, tmpl weed.Handle, err error) {
	for _, list := range [][]weed.Handle{inst.inParams, inst.outParams} {
		for _, p := range list {
			var t weed.Handle
			if err := a.Get(p, weed.LeafTemplate, 0, &t); err != nil {
				return weed.NoPlant, weed.NoPlant, err
			}
			if plantName(a, t) == name {
				return p, t, nil
			}
		}
	}
	return weed.NoPlant, weed.NoPlant, fmt.Errorf("%w: %q", ErrUnknownParam, name)
}

// SetParam replaces the live value of a parameter. The value must have
// the template default's seed type and lie within min and max when the
// template sets them.
func (r *Runtime) SetParam(id, name string, v weed.Value) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, err := r.instance(id)
	if err != nil {
		return err
	}
	a := inst.f.p.host.Arena()
	p, tmpl, err := inst.param(a, name)
	if err != nil {
		return err
	}
	want, err := a.SeedTypeOf(tmpl, weed.LeafDefault)
	if err != nil {
		return err
	}
	if v == nil || v.SeedType() != want {
		return fmt.Errorf("set %s: %w", name, weed.ErrWrongSeedType)
	}
	if err := inRange(a, tmpl, v); err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}
	return a.Set(p, weed.LeafValue, v)
}

func inRange(a *weed.Arena, tmpl weed.Handle, v weed.Value) error {
	switch vals := v.(type) {
	case weed.Int32s:
		var lo, hi int32
		hasLo := a.Get(tmpl, weed.LeafMin, 0, &lo) == nil
		hasHi := a.Get(tmpl, weed.LeafMax, 0, &hi) == nil
		for _, x := range vals {
			if (hasLo && x < lo) || (hasHi && x > hi) {
				return fmt.Errorf("%w: %d not in [%d, %d]", ErrParamRange, x, lo, hi)
			}
		}
	case weed.Doubles:
		var lo, hi float64
		hasLo := a.Get(tmpl, weed.LeafMin, 0, &lo) == nil
		hasHi := a.Get(tmpl, weed.LeafMax, 0, &hi) == nil
		for _, x := range vals {
			if (hasLo && x < lo) || (hasHi && x > hi) {
				return fmt.Errorf("%w: %g not in [%g, %g]", ErrParamRange, x, lo, hi)
			}
		}
	}
	return nil
}

// GetParam returns a copy of a parameter's live value.
func (r *Runtime) GetParam(id, name string) (weed.Value, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, err := r.instance(id)
	if err != nil {
		return nil, err
	}
	a := inst.f.p.host.Arena()
	p, _, err := inst.param(a, name)
	if err != nil {
		return nil, err
	}
	return a.Value(p, weed.LeafValue)
}

// Direction selects input or output channels.
type Direction int

const (
	In Direction = iota
	Out
)

type leafValue struct {
	key string
	v   weed.Value
}

// SetFrame loads frame data into channel idx of an instance.
func (r *Runtime) SetFrame(id string, dir Direction, idx int, f templates.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, err := r.instance(id)
	if err != nil {
		return err
	}
	chans := inst.inChans
	if dir == Out {
		chans = inst.outChans
	}
	if idx < 0 || idx >= len(chans) {
		return fmt.Errorf("channel %d: %w", idx, weed.ErrNoSuchElement)
	}
	a := inst.f.p.host.Arena()
	ch := chans[idx]
	leaves := []leafValue{{weed.LeafDisabled, weed.Booleans{f.Disabled}}}
	if f.Pixels != nil {
		leaves = append(leaves,
			leafValue{weed.LeafWidth, weed.Int32s{f.Width}},
			leafValue{weed.LeafHeight, weed.Int32s{f.Height}},
			leafValue{weed.LeafCurrentPal, weed.Int32s{f.Palette}},
			leafValue{weed.LeafRowstrides, weed.Int32s{f.Rowstride}},
			leafValue{weed.LeafPixelData, weed.Pointers{f.Pixels}},
		)
	}
	if f.Audio != nil {
		leaves = append(leaves,
			leafValue{weed.LeafAudioRate, weed.Int32s{f.AudioRate}},
			leafValue{weed.LeafAudioChannels, weed.Int32s{f.AudioChannels}},
			leafValue{weed.LeafAudioData, weed.Pointers{f.Audio}},
		)
	}
	for _, l := range leaves {
		if err := a.Set(ch, l.key, l.v); err != nil {
			return fmt.Errorf("channel %d %s: %w", idx, l.key, err)
		}
	}
	return nil
}

// Process runs one cycle of an instance at timecode, in weed ticks.
func (r *Runtime) Process(id string, timecode int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, err := r.instance(id)
	if err != nil {
		return err
	}
	a := inst.f.p.host.Arena()
	var fn any
	if err := a.Get(inst.f.h, weed.LeafProcessFunc, 0, &fn); err != nil {
		return fmt.Errorf("process %s: %w", inst.Filter, weed.Required(weed.LeafProcessFunc, err))
	}
	process, ok := fn.(weed.ProcessFunc)
	if !ok {
		return fmt.Errorf("process %s: process_func is %T: %w", inst.Filter, fn, weed.ErrWrongSeedType)
	}
	var st weed.Status
	if err := guard(func() { st = process(inst.h, timecode) }); err != nil {
		return fmt.Errorf("process %s: %w", inst.Filter, err)
	}
	if st != weed.StatusSuccess {
		return &weed.StatusError{Op: "process", Key: inst.Filter, Err: st.Err()}
	}
	return nil
}

// Deinit runs the filter's deinit function and frees the instance's
// plants. The instance is gone afterwards even when deinit fails.
func (r *Runtime) Deinit(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, err := r.instance(id)
	if err != nil {
		return err
	}
	delete(r.instances, id)
	f := inst.f
	a := f.p.host.Arena()

	var errs []error
	var fn any
	if err := weed.Optional(a.Get(f.h, weed.LeafDeinitFunc, 0, &fn)); err != nil {
		errs = append(errs, err)
	}
	if deinit, ok := fn.(weed.DeinitFunc); ok {
		var st weed.Status
		if err := guard(func() { st = deinit(inst.h) }); err != nil {
			errs = append(errs, err)
		} else if st != weed.StatusSuccess {
			errs = append(errs, fmt.Errorf("deinit: %w", st.Err()))
		}
	}

	for _, list := range [][]weed.Handle{inst.inParams, inst.outParams} {
		for _, p := range list {
			var gui weed.Handle
			if a.Get(p, weed.LeafGUI, 0, &gui) == nil && !gui.IsZero() {
				_ = a.Free(gui)
			}
			_ = a.Free(p)
		}
	}
	for _, ch := range slices.Concat(inst.inChans, inst.outChans) {
		_ = a.Free(ch)
	}
	if err := a.Free(inst.h); err != nil {
		errs = append(errs, err)
	}

	f.Active--
	observability.SetInstancesActive(f.Key, f.Active)
	observability.SetAllocBytes(f.Plugin, a.Allocator().InUse())
	r.logger.Debug().Str("filter", f.Key).Str("instance", id).Msg("instance freed")
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("deinit %s: %w", f.Key, err)
	}
	return nil
}
