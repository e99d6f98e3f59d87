package weed

import "fmt"

// Side identifies who is writing, for the readonly flag checks.
type Side int

const (
	SideHost Side = iota
	SidePlugin
)

func (s Side) readonlyFlag() int32 {
	if s == SidePlugin {
		return FlagReadonlyPlugin
	}
	return FlagReadonlyHost
}

func (s Side) String() string {
	if s == SidePlugin {
		return "plugin"
	}
	return "host"
}

// Set establishes or replaces key on h as the host. The replacement is
// atomic: on any error the previous leaf is untouched.
func (a *Arena) Set(h Handle, key string, v Value) error {
	if v == nil {
		return opErr("leaf_set", key, ErrWrongSeedType)
	}
	return a.store(SideHost, h, key, v.clone())
}

// SetRaw is the tag-level form of Set.
func (a *Arena) SetRaw(h Handle, key string, st SeedType, count int, values any) error {
	return a.setRaw(SideHost, h, key, st, count, values)
}

func (a *Arena) setRaw(side Side, h Handle, key string, st SeedType, count int, values any) error {
	v, err := ValueOf(st, count, values)
	if err != nil {
		return opErr("leaf_set", key, err)
	}
	return a.store(side, h, key, v)
}

// store takes ownership of v.
func (a *Arena) store(side Side, h Handle, key string, v Value) error {
	p, err := a.resolve(h)
	if err != nil {
		return opErr("leaf_set", key, err)
	}
	old := p.leaves[key]
	if key == LeafType || (old != nil && old.flags&side.readonlyFlag() != 0) {
		return opErr("leaf_set", key, ErrImmutable)
	}
	blk, err := a.mem.Malloc(footprint(key, v))
	if err != nil {
		return opErr("leaf_set", key, fmt.Errorf("%w: %w", ErrAllocation, err))
	}
	if old == nil {
		p.leaves[key] = &leaf{value: v, block: blk}
		p.order = append(p.order, key)
		return nil
	}
	_ = a.mem.Free(old.block)
	old.value = v
	old.block = blk
	return nil
}

// Get copies element idx of key into out, which must point at the Go
// type of the leaf's seed (or be a *any). A nil out only checks that the
// element exists.
func (a *Arena) Get(h Handle, key string, idx int, out any) error {
	l, err := a.leaf("leaf_get", h, key)
	if err != nil {
		return err
	}
	if idx < 0 || idx >= l.value.Len() {
		return opErr("leaf_get", key, ErrNoSuchElement)
	}
	if out == nil {
		return nil
	}
	if err := l.value.assign(out, idx); err != nil {
		return opErr("leaf_get", key, err)
	}
	return nil
}

// Value returns a copy of the whole leaf.
func (a *Arena) Value(h Handle, key string) (Value, error) {
	l, err := a.leaf("leaf_value", h, key)
	if err != nil {
		return nil, err
	}
	return l.value.clone(), nil
}

func (a *Arena) Has(h Handle, key string) bool {
	_, err := a.leaf("leaf_has", h, key)
	return err == nil
}

// ListLeaves returns the plant's keys in insertion order. The slice is
// fresh on every call.
func (a *Arena) ListLeaves(h Handle) ([]string, error) {
	p, err := a.resolve(h)
	if err != nil {
		return nil, opErr("plant_list_leaves", "", err)
	}
	return append([]string(nil), p.order...), nil
}

func (a *Arena) NumElements(h Handle, key string) (int, error) {
	l, err := a.leaf("leaf_num_elements", h, key)
	if err != nil {
		return 0, err
	}
	return l.value.Len(), nil
}

// ElementSize reports the byte size of element idx: the string length
// for string leaves, the fixed width otherwise.
func (a *Arena) ElementSize(h Handle, key string, idx int) (int, error) {
	l, err := a.leaf("leaf_element_size", h, key)
	if err != nil {
		return 0, err
	}
	if idx < 0 || idx >= l.value.Len() {
		return 0, opErr("leaf_element_size", key, ErrNoSuchElement)
	}
	return l.value.elementSize(idx), nil
}

func (a *Arena) SeedTypeOf(h Handle, key string) (SeedType, error) {
	l, err := a.leaf("leaf_seed_type", h, key)
	if err != nil {
		return SeedInvalid, err
	}
	return l.value.SeedType(), nil
}

func (a *Arena) Flags(h Handle, key string) (int32, error) {
	l, err := a.leaf("leaf_get_flags", h, key)
	if err != nil {
		return 0, err
	}
	return l.flags, nil
}

// SetFlags replaces the flag word of key. Only the host holds this
// operation; the type leaf keeps its readonly bits regardless.
func (a *Arena) SetFlags(h Handle, key string, flags int32) error {
	l, err := a.leaf("leaf_set_flags", h, key)
	if err != nil {
		return err
	}
	if key == LeafType {
		flags |= FlagImmutable
	}
	l.flags = flags
	return nil
}

// Delete removes key from h as the host.
func (a *Arena) Delete(h Handle, key string) error {
	return a.delete(SideHost, h, key)
}

func (a *Arena) delete(side Side, h Handle, key string) error {
	p, err := a.resolve(h)
	if err != nil {
		return opErr("leaf_delete", key, err)
	}
	l, ok := p.leaves[key]
	if !ok {
		return opErr("leaf_delete", key, ErrNoSuchLeaf)
	}
	if key == LeafType || l.flags&FlagUndeletable != 0 {
		return opErr("leaf_delete", key, ErrUndeletable)
	}
	if l.flags&side.readonlyFlag() != 0 {
		return opErr("leaf_delete", key, ErrImmutable)
	}
	_ = a.mem.Free(l.block)
	delete(p.leaves, key)
	for i, k := range p.order {
		if k == key {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return nil
}

func (a *Arena) leaf(op string, h Handle, key string) (*leaf, error) {
	p, err := a.resolve(h)
	if err != nil {
		return nil, opErr(op, key, err)
	}
	l, ok := p.leaves[key]
	if !ok {
		return nil, opErr(op, key, ErrNoSuchLeaf)
	}
	return l, nil
}

// PluginView is the write surface the host publishes to plugins: the
// same store with the plugin-side readonly flag enforced.
type PluginView struct {
	a *Arena
}

func (a *Arena) Plugin() PluginView { return PluginView{a: a} }

func (v PluginView) Set(h Handle, key string, val Value) error {
	if val == nil {
		return opErr("leaf_set", key, ErrWrongSeedType)
	}
	return v.a.store(SidePlugin, h, key, val.clone())
}

func (v PluginView) SetRaw(h Handle, key string, st SeedType, count int, values any) error {
	return v.a.setRaw(SidePlugin, h, key, st, count, values)
}

func (v PluginView) Delete(h Handle, key string) error {
	return v.a.delete(SidePlugin, h, key)
}
