package weed

import (
	"fmt"

	"github.com/danmuck/weedcore/internal/weed/alloc"
)

// Handle names a plant inside an Arena. The zero Handle is NoPlant.
type Handle struct {
	index uint32
	gen   uint32
}

// NoPlant terminates plant lists and signals "no plant" from the
// bootstrap entry point.
var NoPlant Handle

func (h Handle) IsZero() bool { return h == NoPlant }

func (h Handle) Equal(o Handle) bool { return h == o }

func (h Handle) String() string {
	if h.IsZero() {
		return "plant(nil)"
	}
	return fmt.Sprintf("plant#%d.%d", h.index, h.gen)
}

// Token packs h into a single integer for tag-level transport.
func (h Handle) Token() uint64 { return uint64(h.gen)<<32 | uint64(h.index) }

// HandleFromToken reverses Token.
func HandleFromToken(tok uint64) Handle {
	return Handle{index: uint32(tok), gen: uint32(tok >> 32)}
}

// Leaf flag bits.
const (
	FlagReadonlyPlugin int32 = 1 << 0
	FlagReadonlyHost   int32 = 1 << 1
	FlagUndeletable    int32 = 1 << 2

	FlagImmutable = FlagReadonlyPlugin | FlagReadonlyHost
)

// plantOverhead is charged to the allocator for every live plant.
const plantOverhead = 32

// leafOverhead is charged per leaf on top of the key and element bytes.
const leafOverhead = 16

type leaf struct {
	value Value
	flags int32
	block alloc.Block
}

type plant struct {
	leaves map[string]*leaf
	order  []string
	block  alloc.Block
}

type slot struct {
	gen uint32
	p   *plant
}

// Arena owns a set of plants and resolves Handles to them. It is not
// safe for concurrent use; one arena serves one host/plugin pairing.
type Arena struct {
	slots []slot
	free  []uint32
	mem   alloc.Allocator
	live  int
}

// NewArena returns an arena charging leaf storage to mem. A nil mem
// gets an unbounded pool.
func NewArena(mem alloc.Allocator) *Arena {
	if mem == nil {
		mem = alloc.NewPool(0)
	}
	// slot 0 stays empty so the zero Handle never resolves
	return &Arena{slots: make([]slot, 1), mem: mem}
}

func (a *Arena) Allocator() alloc.Allocator { return a.mem }

// Live reports the number of plants not yet freed.
func (a *Arena) Live() int { return a.live }

// Valid reports whether h still names a live plant.
func (a *Arena) Valid(h Handle) bool {
	_, err := a.resolve(h)
	return err == nil
}

// New creates a plant whose immutable type leaf holds plantType.
func (a *Arena) New(plantType int32) (Handle, error) {
	blk, err := a.mem.Malloc(plantOverhead)
	if err != nil {
		return NoPlant, opErr("plant_new", "", fmt.Errorf("%w: %w", ErrAllocation, err))
	}
	typ := Int32s{plantType}
	lblk, err := a.mem.Malloc(footprint(LeafType, typ))
	if err != nil {
		_ = a.mem.Free(blk)
		return NoPlant, opErr("plant_new", LeafType, fmt.Errorf("%w: %w", ErrAllocation, err))
	}
	p := &plant{
		leaves: map[string]*leaf{
			LeafType: {value: typ, flags: FlagImmutable, block: lblk},
		},
		order: []string{LeafType},
		block: blk,
	}

	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		a.slots = append(a.slots, slot{})
		idx = uint32(len(a.slots) - 1)
	}
	s := &a.slots[idx]
	s.gen++
	s.p = p
	a.live++
	return Handle{index: idx, gen: s.gen}, nil
}

// Free releases every leaf of h and retires the handle. A plant whose
// type leaf carries FlagUndeletable is refused.
func (a *Arena) Free(h Handle) error {
	p, err := a.resolve(h)
	if err != nil {
		return opErr("plant_free", "", err)
	}
	if p.leaves[LeafType].flags&FlagUndeletable != 0 {
		return opErr("plant_free", LeafType, ErrUndeletable)
	}
	for _, key := range p.order {
		_ = a.mem.Free(p.leaves[key].block)
	}
	_ = a.mem.Free(p.block)

	s := &a.slots[h.index]
	s.p = nil
	a.free = append(a.free, h.index)
	a.live--
	return nil
}

// PlantType returns the value of the plant's type leaf.
func (a *Arena) PlantType(h Handle) (int32, error) {
	p, err := a.resolve(h)
	if err != nil {
		return 0, opErr("plant_type", "", err)
	}
	return p.leaves[LeafType].value.(Int32s)[0], nil
}

func (a *Arena) resolve(h Handle) (*plant, error) {
	if h.index == 0 || int(h.index) >= len(a.slots) {
		return nil, ErrNoSuchPlant
	}
	s := a.slots[h.index]
	if s.p == nil || s.gen != h.gen {
		return nil, ErrNoSuchPlant
	}
	return s.p, nil
}

func footprint(key string, v Value) int {
	n := leafOverhead + len(key)
	for i := 0; i < v.Len(); i++ {
		n += v.elementSize(i)
	}
	return n
}
