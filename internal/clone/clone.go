// Package clone duplicates plant lists leaf by leaf. Plant references are
// shared between the source and the copy, except the gui leaf, whose
// plant is copied as well.
package clone

import (
	"errors"
	"fmt"
	"slices"

	"github.com/danmuck/weedcore/internal/binding"
	"github.com/danmuck/weedcore/internal/observability"
	"github.com/danmuck/weedcore/internal/weed"
	"github.com/danmuck/weedcore/internal/weed/alloc"
)

// Store is the subset of plant operations a clone needs. *binding.Core
// satisfies it, as does ArenaStore on the host side.
type Store interface {
	New(plantType int32) (weed.Handle, error)
	FreePlant(h weed.Handle) error
	Type(h weed.Handle) (int32, error)
	ListLeaves(h weed.Handle) []string
	SeedTypeOf(h weed.Handle, key string) weed.SeedType
	NumElements(h weed.Handle, key string) int
	ElementSize(h weed.Handle, key string, idx int) int
	Get(h weed.Handle, key string, idx int, out any) error
	Set(h weed.Handle, key string, v weed.Value) error
	Alloc(size int) (alloc.Block, error)
	Release(b alloc.Block)
}

// freeChecker is implemented by stores whose plant free capability is
// optional.
type freeChecker interface {
	CanFree() bool
}

// Plants clones list up to its first NoPlant. The result is terminated
// with NoPlant. On any error every plant created so far is freed and no
// list is returned. A store that cannot free plants is refused before
// anything is created.
func Plants(s Store, list []weed.Handle) ([]weed.Handle, error) {
	if fc, ok := s.(freeChecker); ok && !fc.CanFree() {
		return nil, &weed.StatusError{Op: "clone", Err: binding.ErrAbsent}
	}
	c := &cloner{s: s}
	out := make([]weed.Handle, 0, len(list)+1)
	for i, src := range list {
		if src.IsZero() {
			break
		}
		dst, err := c.plant(src)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("clone plant %d: %w", i, err), c.abort())
		}
		out = append(out, dst)
	}
	observability.RecordClone(len(c.created), true)
	return append(out, weed.NoPlant), nil
}

// Plant clones a single plant.
func Plant(s Store, src weed.Handle) (weed.Handle, error) {
	out, err := Plants(s, []weed.Handle{src})
	if err != nil {
		return weed.NoPlant, err
	}
	return out[0], nil
}

type cloner struct {
	s       Store
	created []weed.Handle
}

// abort frees every plant created so far and reports the ones it could
// not free.
func (c *cloner) abort() error {
	var errs []error
	for _, h := range slices.Backward(c.created) {
		if err := c.s.FreePlant(h); err != nil {
			errs = append(errs, fmt.Errorf("free %v: %w", h, err))
		}
	}
	observability.RecordClone(len(c.created), false)
	c.created = nil
	return errors.Join(errs...)
}

func (c *cloner) newPlant(plantType int32) (weed.Handle, error) {
	h, err := c.s.New(plantType)
	if err != nil {
		return weed.NoPlant, err
	}
	c.created = append(c.created, h)
	return h, nil
}

func (c *cloner) plant(src weed.Handle) (weed.Handle, error) {
	typ, err := c.s.Type(src)
	if err != nil {
		return weed.NoPlant, err
	}
	dst, err := c.newPlant(typ)
	if err != nil {
		return weed.NoPlant, err
	}
	for _, key := range c.s.ListLeaves(src) {
		switch {
		case key == weed.LeafType:
		case key == weed.LeafGUI && c.s.SeedTypeOf(src, key) == weed.SeedPlantRef && c.s.NumElements(src, key) > 0:
			if err := c.gui(src, dst); err != nil {
				return weed.NoPlant, err
			}
		default:
			if err := c.leaf(src, dst, key); err != nil {
				return weed.NoPlant, err
			}
		}
	}
	return dst, nil
}

// gui gives dst its own copy of src's gui plant. Leaves of the gui plant
// are copied as-is, without recursing into its references.
func (c *cloner) gui(src, dst weed.Handle) error {
	var g weed.Handle
	if err := c.s.Get(src, weed.LeafGUI, 0, &g); err != nil {
		return err
	}
	g2, err := c.newPlant(weed.PlantGUI)
	if err != nil {
		return err
	}
	if err := c.s.Set(dst, weed.LeafGUI, weed.PlantRefs{g2}); err != nil {
		return err
	}
	for _, key := range c.s.ListLeaves(g) {
		if key == weed.LeafType {
			continue
		}
		if err := c.leaf(g, g2, key); err != nil {
			return err
		}
	}
	return nil
}

// leaf copies one leaf to dst in a single set. The leaf's element bytes
// are charged to the store's allocator for the duration of the copy, so a
// clone that could not hold its values fails before writing them.
func (c *cloner) leaf(src, dst weed.Handle, key string) error {
	st := c.s.SeedTypeOf(src, key)
	n := c.s.NumElements(src, key)
	size := 0
	for i := 0; i < n; i++ {
		size += c.s.ElementSize(src, key, i)
	}
	scratch, err := c.s.Alloc(size)
	if err != nil {
		return fmt.Errorf("scratch for %q: %w", key, err)
	}
	defer c.s.Release(scratch)

	var v weed.Value
	switch st {
	case weed.SeedInt32:
		v, err = elements[int32](c.s, src, key, st, n)
	case weed.SeedInt64:
		v, err = elements[int64](c.s, src, key, st, n)
	case weed.SeedDouble:
		v, err = elements[float64](c.s, src, key, st, n)
	case weed.SeedBoolean:
		v, err = elements[bool](c.s, src, key, st, n)
	case weed.SeedString:
		v, err = elements[string](c.s, src, key, st, n)
	case weed.SeedFunc:
		v, err = elements[weed.Func](c.s, src, key, st, n)
	case weed.SeedPointer:
		v, err = elements[weed.Pointer](c.s, src, key, st, n)
	case weed.SeedPlantRef:
		v, err = elements[weed.Handle](c.s, src, key, st, n)
	default:
		err = &weed.StatusError{Op: "clone", Key: key, Err: weed.ErrWrongSeedType}
	}
	if err != nil {
		return err
	}
	return c.s.Set(dst, key, v)
}

func elements[T any](s Store, h weed.Handle, key string, st weed.SeedType, n int) (weed.Value, error) {
	vals := make([]T, n)
	for i := range vals {
		if err := s.Get(h, key, i, &vals[i]); err != nil {
			return nil, err
		}
	}
	return weed.ValueOf(st, n, vals)
}
