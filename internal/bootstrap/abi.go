// Package bootstrap is the host side of the plugin handshake: it agrees
// on versions with a plugin and publishes the host's core operations as
// function leaves on a capability plant.
package bootstrap

import (
	"github.com/danmuck/weedcore/internal/weed"
	"github.com/danmuck/weedcore/internal/weed/alloc"
)

// Newest versions this host implements.
const (
	ABIVersion       int32 = 201
	FilterAPIVersion int32 = 200

	// ABIBreak is the first ABI publishing realloc, calloc and memmove.
	ABIBreak int32 = 200
	// APIBreak is the first filter API publishing plant free and leaf
	// delete.
	APIBreak int32 = 200
)

// DefaultGetter reads element idx of a leaf into out; a nil out probes
// for existence.
type DefaultGetter func(p weed.Handle, key string, idx int, out any) weed.Status

// Bootstrap is the single fixed entry point a plugin receives.
type Bootstrap func(out *DefaultGetter, abiMin, abiMax, apiMin, apiMax int32) weed.Handle

// Capability leaf names.
const (
	FuncLeafGet         = "weed_leaf_get_func"
	FuncLeafSet         = "weed_leaf_set_func"
	FuncPlantNew        = "weed_plant_new_func"
	FuncPlantListLeaves = "weed_plant_list_leaves_func"
	FuncLeafNumElements = "weed_leaf_num_elements_func"
	FuncLeafElementSize = "weed_leaf_element_size_func"
	FuncLeafSeedType    = "weed_leaf_seed_type_func"
	FuncLeafGetFlags    = "weed_leaf_get_flags_func"
	FuncMalloc          = "weed_malloc_func"
	FuncFree            = "weed_free_func"
	FuncMemset          = "weed_memset_func"
	FuncMemcpy          = "weed_memcpy_func"

	FuncRealloc = "weed_realloc_func"
	FuncCalloc  = "weed_calloc_func"
	FuncMemmove = "weed_memmove_func"

	FuncPlantFree  = "weed_plant_free_func"
	FuncLeafDelete = "weed_leaf_delete_func"
)

// Shapes of the published function leaves. Introspection calls answer
// with a zero value when the leaf or plant is missing.
type (
	LeafGetFunc         func(p weed.Handle, key string, idx int, out any) weed.Status
	LeafSetFunc         func(p weed.Handle, key string, st weed.SeedType, count int, values any) weed.Status
	PlantNewFunc        func(plantType int32) weed.Handle
	PlantListLeavesFunc func(p weed.Handle) []string
	LeafNumElementsFunc func(p weed.Handle, key string) int
	LeafElementSizeFunc func(p weed.Handle, key string, idx int) int
	LeafSeedTypeFunc    func(p weed.Handle, key string) weed.SeedType
	LeafGetFlagsFunc    func(p weed.Handle, key string) int32
	PlantFreeFunc       func(p weed.Handle) weed.Status
	LeafDeleteFunc      func(p weed.Handle, key string) weed.Status

	MallocFunc  func(size int) alloc.Block
	FreeFunc    func(b alloc.Block)
	MemsetFunc  func(b alloc.Block, c byte, n int) alloc.Block
	MemcpyFunc  func(dst, src alloc.Block, n int) int
	ReallocFunc func(b alloc.Block, size int) alloc.Block
	CallocFunc  func(n, size int) alloc.Block
	MemmoveFunc func(dst, src alloc.Block, n int) int
)

// Range is an inclusive version interval.
type Range struct {
	Min int32 `toml:"min" json:"min" yaml:"min"`
	Max int32 `toml:"max" json:"max" yaml:"max"`
}

// Normalize swaps reversed bounds.
func (r Range) Normalize() Range {
	if r.Min > r.Max {
		return Range{Min: r.Max, Max: r.Min}
	}
	return r
}

// Intersect returns the overlap of r and o.
func (r Range) Intersect(o Range) (Range, bool) {
	r, o = r.Normalize(), o.Normalize()
	out := Range{Min: max(r.Min, o.Min), Max: min(r.Max, o.Max)}
	if out.Min > out.Max {
		return Range{}, false
	}
	return out, true
}

func (r Range) Contains(v int32) bool {
	r = r.Normalize()
	return v >= r.Min && v <= r.Max
}
