// Package binding is the plugin side of the handshake. Bind calls the
// host's bootstrap entry point and resolves every capability by name
// through the default getter into a Core.
package binding

import (
	"errors"
	"fmt"

	"github.com/danmuck/weedcore/internal/bootstrap"
	"github.com/danmuck/weedcore/internal/logging"
	"github.com/danmuck/weedcore/internal/weed"
	"github.com/danmuck/weedcore/internal/weed/alloc"
)

var (
	ErrNoMatch = errors.New("binding: no common version with host")
	ErrAbsent  = errors.New("binding: capability not negotiated")
)

// VersionRanges is what a plugin offers the host.
type VersionRanges struct {
	ABI bootstrap.Range
	API bootstrap.Range
}

// DefaultRanges covers every version this package can bind.
var DefaultRanges = VersionRanges{
	ABI: bootstrap.Range{Min: 100, Max: bootstrap.ABIVersion},
	API: bootstrap.Range{Min: 100, Max: bootstrap.FilterAPIVersion},
}

// Optional holds a capability that only some versions publish.
type Optional[T any] struct {
	fn T
	ok bool
}

func Some[T any](fn T) Optional[T] { return Optional[T]{fn: fn, ok: true} }

func (o Optional[T]) Get() (T, bool) { return o.fn, o.ok }
func (o Optional[T]) Present() bool  { return o.ok }

// Core is one plugin's bound view of one host. It holds no globals, so a
// process may bind several hosts at once.
type Core struct {
	ABI int32
	API int32

	info       weed.Handle
	pluginInfo weed.Handle
	get        bootstrap.DefaultGetter

	LeafGet         bootstrap.LeafGetFunc
	LeafSet         bootstrap.LeafSetFunc
	PlantNew        bootstrap.PlantNewFunc
	PlantListLeaves bootstrap.PlantListLeavesFunc
	LeafNumElements bootstrap.LeafNumElementsFunc
	LeafElementSize bootstrap.LeafElementSizeFunc
	LeafSeedType    bootstrap.LeafSeedTypeFunc
	LeafGetFlags    bootstrap.LeafGetFlagsFunc
	Malloc          bootstrap.MallocFunc
	Free            bootstrap.FreeFunc
	Memset          bootstrap.MemsetFunc
	Memcpy          bootstrap.MemcpyFunc

	Realloc Optional[bootstrap.ReallocFunc]
	Calloc  Optional[bootstrap.CallocFunc]
	Memmove Optional[bootstrap.MemmoveFunc]

	PlantFree  Optional[bootstrap.PlantFreeFunc]
	LeafDelete Optional[bootstrap.LeafDeleteFunc]
}

// Bind negotiates with boot and resolves the capability table. A missing
// or ill-typed capability the negotiated versions require fails the
// whole bind with weed.ErrInitialization.
func Bind(boot bootstrap.Bootstrap, r VersionRanges) (*Core, error) {
	logger := logging.Component("binding")
	var get bootstrap.DefaultGetter
	info := boot(&get, r.ABI.Min, r.ABI.Max, r.API.Min, r.API.Max)
	if info.IsZero() || get == nil {
		return nil, ErrNoMatch
	}

	c := &Core{info: info, get: get}
	if st := get(info, weed.LeafABIVersion, 0, &c.ABI); st != weed.StatusSuccess {
		return nil, initErr(weed.LeafABIVersion, st.Err())
	}
	if st := get(info, weed.LeafFilterAPIVer, 0, &c.API); st != weed.StatusSuccess {
		return nil, initErr(weed.LeafFilterAPIVer, st.Err())
	}

	var err error
	bindReq(&err, get, info, bootstrap.FuncLeafGet, &c.LeafGet)
	bindReq(&err, get, info, bootstrap.FuncLeafSet, &c.LeafSet)
	bindReq(&err, get, info, bootstrap.FuncPlantNew, &c.PlantNew)
	bindReq(&err, get, info, bootstrap.FuncPlantListLeaves, &c.PlantListLeaves)
	bindReq(&err, get, info, bootstrap.FuncLeafNumElements, &c.LeafNumElements)
	bindReq(&err, get, info, bootstrap.FuncLeafElementSize, &c.LeafElementSize)
	bindReq(&err, get, info, bootstrap.FuncLeafSeedType, &c.LeafSeedType)
	bindReq(&err, get, info, bootstrap.FuncLeafGetFlags, &c.LeafGetFlags)
	bindReq(&err, get, info, bootstrap.FuncMalloc, &c.Malloc)
	bindReq(&err, get, info, bootstrap.FuncFree, &c.Free)
	bindReq(&err, get, info, bootstrap.FuncMemset, &c.Memset)
	bindReq(&err, get, info, bootstrap.FuncMemcpy, &c.Memcpy)
	if c.ABI >= bootstrap.ABIBreak {
		bindOpt(&err, get, info, bootstrap.FuncRealloc, &c.Realloc)
		bindOpt(&err, get, info, bootstrap.FuncCalloc, &c.Calloc)
		bindOpt(&err, get, info, bootstrap.FuncMemmove, &c.Memmove)
	}
	if c.API >= bootstrap.APIBreak {
		bindOpt(&err, get, info, bootstrap.FuncPlantFree, &c.PlantFree)
		bindOpt(&err, get, info, bootstrap.FuncLeafDelete, &c.LeafDelete)
	}
	if err != nil {
		logger.Warn().Err(err).Int32("abi", c.ABI).Int32("api", c.API).Msg("bind failed")
		return nil, err
	}
	logger.Debug().Int32("abi", c.ABI).Int32("api", c.API).Msg("bound")
	return c, nil
}

func initErr(name string, cause error) error {
	return fmt.Errorf("binding %s: %w (%w)", name, weed.ErrInitialization, cause)
}

func fetch[T any](get bootstrap.DefaultGetter, info weed.Handle, name string) (T, error) {
	var zero T
	var f weed.Func
	if st := get(info, name, 0, &f); st != weed.StatusSuccess {
		return zero, initErr(name, st.Err())
	}
	fn, ok := f.(T)
	if !ok {
		return zero, initErr(name, fmt.Errorf("got %T: %w", f, weed.ErrWrongSeedType))
	}
	return fn, nil
}

func bindReq[T any](err *error, get bootstrap.DefaultGetter, info weed.Handle, name string, dst *T) {
	if *err != nil {
		return
	}
	*dst, *err = fetch[T](get, info, name)
}

// bindOpt fetches a capability the negotiated version makes mandatory
// but which older versions leave out.
func bindOpt[T any](err *error, get bootstrap.DefaultGetter, info weed.Handle, name string, dst *Optional[T]) {
	if *err != nil {
		return
	}
	fn, e := fetch[T](get, info, name)
	if e != nil {
		*err = e
		return
	}
	*dst = Some(fn)
}

// HostInfo returns the capability plant the host published.
func (c *Core) HostInfo() weed.Handle { return c.info }

// DefaultGetter returns the getter the host handed out at bootstrap.
func (c *Core) DefaultGetter() bootstrap.DefaultGetter { return c.get }

// PluginInfo returns the plant describing this plugin, reusing the one
// the host attached when it has the right type.
func (c *Core) PluginInfo() (weed.Handle, error) {
	if !c.pluginInfo.IsZero() {
		return c.pluginInfo, nil
	}
	var p weed.Handle
	if err := c.Get(c.info, weed.LeafPluginInfo, 0, &p); err == nil {
		if t, err := c.Type(p); err != nil || t != weed.PlantPluginInfo {
			p = weed.NoPlant
		}
	}
	if p.IsZero() {
		var err error
		if p, err = c.New(weed.PlantPluginInfo); err != nil {
			return weed.NoPlant, err
		}
	}
	if err := c.SetPlant(p, weed.LeafHostInfo, c.info); err != nil {
		return weed.NoPlant, err
	}
	c.pluginInfo = p
	return p, nil
}

func statusErr(op, key string, st weed.Status) error {
	if st == weed.StatusSuccess {
		return nil
	}
	return &weed.StatusError{Op: op, Key: key, Err: st.Err()}
}

// Get reads element idx of key into out through the bound leaf getter.
func (c *Core) Get(h weed.Handle, key string, idx int, out any) error {
	return statusErr("leaf_get", key, c.LeafGet(h, key, idx, out))
}

// Set replaces key with v.
func (c *Core) Set(h weed.Handle, key string, v weed.Value) error {
	if v == nil {
		return statusErr("leaf_set", key, weed.StatusWrongSeedType)
	}
	return statusErr("leaf_set", key, c.LeafSet(h, key, v.SeedType(), v.Len(), v))
}

// SetRaw is the tag-level form of Set.
func (c *Core) SetRaw(h weed.Handle, key string, st weed.SeedType, count int, values any) error {
	return statusErr("leaf_set", key, c.LeafSet(h, key, st, count, values))
}

func (c *Core) New(plantType int32) (weed.Handle, error) {
	h := c.PlantNew(plantType)
	if h.IsZero() {
		return weed.NoPlant, &weed.StatusError{Op: "plant_new", Err: weed.ErrAllocation}
	}
	return h, nil
}

// CanFree reports whether the host published plant free.
func (c *Core) CanFree() bool { return c.PlantFree.Present() }

// FreePlant frees h when the host published plant free.
func (c *Core) FreePlant(h weed.Handle) error {
	free, ok := c.PlantFree.Get()
	if !ok {
		return &weed.StatusError{Op: "plant_free", Err: ErrAbsent}
	}
	return statusErr("plant_free", "", free(h))
}

// Delete removes key when the host published leaf delete.
func (c *Core) Delete(h weed.Handle, key string) error {
	del, ok := c.LeafDelete.Get()
	if !ok {
		return &weed.StatusError{Op: "leaf_delete", Key: key, Err: ErrAbsent}
	}
	return statusErr("leaf_delete", key, del(h, key))
}

// Has reports whether key exists on h, including empty leaves.
func (c *Core) Has(h weed.Handle, key string) bool {
	st := c.LeafGet(h, key, 0, nil)
	return st == weed.StatusSuccess || st == weed.StatusNoSuchElement
}

// ListLeaves returns nil for a dead plant.
func (c *Core) ListLeaves(h weed.Handle) []string { return c.PlantListLeaves(h) }

func (c *Core) NumElements(h weed.Handle, key string) int { return c.LeafNumElements(h, key) }

func (c *Core) ElementSize(h weed.Handle, key string, idx int) int {
	return c.LeafElementSize(h, key, idx)
}

// SeedTypeOf returns SeedInvalid for a missing leaf.
func (c *Core) SeedTypeOf(h weed.Handle, key string) weed.SeedType { return c.LeafSeedType(h, key) }

func (c *Core) Flags(h weed.Handle, key string) int32 { return c.LeafGetFlags(h, key) }

// Type returns the plant type of h.
func (c *Core) Type(h weed.Handle) (int32, error) {
	return c.GetInt32(h, weed.LeafType)
}

// Alloc takes size bytes from the host allocator.
func (c *Core) Alloc(size int) (alloc.Block, error) {
	b := c.Malloc(size)
	if b.IsZero() {
		return alloc.Block{}, &weed.StatusError{Op: "malloc", Err: weed.ErrAllocation}
	}
	return b, nil
}

// Release hands b back to the host allocator.
func (c *Core) Release(b alloc.Block) { c.Free(b) }
