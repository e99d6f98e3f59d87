package host

import (
	"fmt"

	"github.com/danmuck/weedcore/internal/weed"
	"github.com/danmuck/weedcore/internal/weed/wire"
)

// Node is a plant rendered for people. A Node with Ref set was seen
// earlier in the walk, or points back up the graph, and has no leaves.
type Node struct {
	Type   string `json:"type" yaml:"type"`
	Handle string `json:"handle" yaml:"handle"`
	Ref    bool   `json:"ref,omitempty" yaml:"ref,omitempty"`
	Leaves []Leaf `json:"leaves,omitempty" yaml:"leaves,omitempty"`
}

type Leaf struct {
	Key    string  `json:"key" yaml:"key"`
	Seed   string  `json:"seed" yaml:"seed"`
	Flags  int32   `json:"flags,omitempty" yaml:"flags,omitempty"`
	Values []any   `json:"values" yaml:"values"`
	Plants []*Node `json:"plants,omitempty" yaml:"plants,omitempty"`
}

// Leaves that point back towards the root are never expanded.
var upward = map[string]bool{
	weed.LeafPluginInfo:  true,
	weed.LeafHostInfo:    true,
	weed.LeafFilterClass: true,
}

type walker struct {
	a    *weed.Arena
	seen map[weed.Handle]bool
}

func (w *walker) node(h weed.Handle, expand bool) (*Node, error) {
	t, err := w.a.PlantType(h)
	if err != nil {
		return nil, err
	}
	n := &Node{Type: weed.PlantTypeName(t), Handle: h.String()}
	if !expand || w.seen[h] {
		n.Ref = true
		return n, nil
	}
	w.seen[h] = true

	keys, err := w.a.ListLeaves(h)
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		v, err := w.a.Value(h, key)
		if err != nil {
			return nil, err
		}
		flags, _ := w.a.Flags(h, key)
		l := Leaf{Key: key, Seed: v.SeedType().String(), Flags: flags, Values: []any{}}
		switch vals := v.(type) {
		case weed.PlantRefs:
			for _, ref := range vals {
				if ref.IsZero() {
					l.Values = append(l.Values, ref.String())
					continue
				}
				child, err := w.node(ref, !upward[key])
				if err != nil {
					return nil, fmt.Errorf("%s: %w", key, err)
				}
				l.Values = append(l.Values, child.Handle)
				l.Plants = append(l.Plants, child)
			}
		case weed.Funcs, weed.Pointers:
			for _, e := range weed.Elements(v) {
				l.Values = append(l.Values, fmt.Sprintf("%T", e))
			}
		default:
			l.Values = weed.Elements(v)
		}
		n.Leaves = append(n.Leaves, l)
	}
	return n, nil
}

// Describe walks a loaded filter class and everything it references.
func (r *Runtime) Describe(ref string) (*Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, err := r.lookup(ref)
	if err != nil {
		return nil, err
	}
	w := &walker{a: f.p.host.Arena(), seen: make(map[weed.Handle]bool)}
	return w.node(f.h, true)
}

// DescribePlugin walks a loaded plugin's info plant.
func (r *Runtime) DescribePlugin(name string) (*Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlugin, name)
	}
	if p.State != StateLoaded {
		return nil, fmt.Errorf("plugin %s is %s: %w", name, p.State, weed.ErrNotReady)
	}
	w := &walker{a: p.host.Arena(), seen: make(map[weed.Handle]bool)}
	return w.node(p.info, true)
}

// Export encodes a filter class plant with the wire codec. Function and
// pointer leaves are written as opaque placeholder tokens from a pin
// table that is dropped after encoding, so they never resolve back to
// values. Decoders only learn how many such elements each leaf holds.
func (r *Runtime) Export(ref string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, err := r.lookup(ref)
	if err != nil {
		return nil, err
	}
	return wire.EncodePlant(f.p.host.Arena(), f.h, wire.NewPins())
}
