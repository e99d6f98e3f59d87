package bootstrap

import (
	"fmt"
	"slices"

	"github.com/danmuck/weedcore/internal/logging"
	"github.com/danmuck/weedcore/internal/observability"
	"github.com/danmuck/weedcore/internal/weed"
	"github.com/danmuck/weedcore/internal/weed/alloc"
	"github.com/rs/zerolog"
)

// HostOptions configures one negotiating host. Zero ranges default to
// everything this package implements.
type HostOptions struct {
	ABI       Range
	API       Range
	Name      string
	Version   string
	Flags     int32
	Verbosity int32
	Allocator alloc.Allocator

	// Omit names capability leaves to leave unpublished.
	Omit []string
}

// Host owns the arena a plugin's plants live in and answers its
// bootstrap call. Hosts share no state, so several may run side by side.
type Host struct {
	opts   HostOptions
	arena  *weed.Arena
	logger zerolog.Logger

	info weed.Handle
	abi  int32
	api  int32
}

func NewHost(opts HostOptions) *Host {
	if opts.ABI == (Range{}) {
		opts.ABI = Range{Min: 100, Max: ABIVersion}
	}
	if opts.API == (Range{}) {
		opts.API = Range{Min: 100, Max: FilterAPIVersion}
	}
	opts.ABI = clip(opts.ABI.Normalize(), ABIVersion)
	opts.API = clip(opts.API.Normalize(), FilterAPIVersion)
	if opts.Allocator == nil {
		opts.Allocator = alloc.NewPool(0)
	}
	return &Host{
		opts:   opts,
		arena:  weed.NewArena(opts.Allocator),
		logger: logging.Component("bootstrap"),
	}
}

func clip(r Range, newest int32) Range {
	r.Max = min(r.Max, newest)
	return r
}

func (h *Host) Arena() *weed.Arena { return h.arena }

// Info returns the capability plant of the last successful negotiation.
func (h *Host) Info() weed.Handle { return h.info }

// Versions returns the negotiated ABI and filter API, or zeros.
func (h *Host) Versions() (abi, api int32) { return h.abi, h.api }

// Bootstrap returns the entry point handed to plugins.
func (h *Host) Bootstrap() Bootstrap { return h.Negotiate }

// DefaultGetter is the getter handed out on success.
func (h *Host) DefaultGetter() DefaultGetter {
	return func(p weed.Handle, key string, idx int, out any) weed.Status {
		return weed.StatusOf(h.arena.Get(p, key, idx, out))
	}
}

// Negotiate picks the highest ABI and filter API inside both the
// plugin's and the host's ranges and publishes the capability plant.
// It returns NoPlant, leaving nothing allocated, when either axis has no
// overlap or construction fails. A repeat negotiation replaces the
// previous capability plant and its plugin_info.
func (h *Host) Negotiate(out *DefaultGetter, abiMin, abiMax, apiMin, apiMax int32) weed.Handle {
	abiR, okABI := h.opts.ABI.Intersect(Range{Min: abiMin, Max: abiMax})
	apiR, okAPI := h.opts.API.Intersect(Range{Min: apiMin, Max: apiMax})
	if !okABI || !okAPI {
		h.logger.Warn().
			Int32("abi_min", abiMin).Int32("abi_max", abiMax).
			Int32("api_min", apiMin).Int32("api_max", apiMax).
			Msg("no version match")
		observability.RecordNegotiation("no_match")
		return weed.NoPlant
	}
	abi, api := abiR.Max, apiR.Max

	info, err := h.publish(abi, api)
	if err != nil {
		h.logger.Error().Err(err).Int32("abi", abi).Int32("api", api).Msg("negotiation failed")
		observability.RecordNegotiation("failed")
		return weed.NoPlant
	}
	h.retire(h.info)
	h.info, h.abi, h.api = info, abi, api
	if out != nil {
		*out = h.DefaultGetter()
	}
	h.logger.Debug().Int32("abi", abi).Int32("api", api).Stringer("host_info", info).Msg("negotiated")
	observability.RecordNegotiation("ok")
	return info
}

// retire frees a superseded capability plant and the plugin_info it
// points at.
func (h *Host) retire(info weed.Handle) {
	if info.IsZero() || !h.arena.Valid(info) {
		return
	}
	var pinfo weed.Handle
	if err := h.arena.Get(info, weed.LeafPluginInfo, 0, &pinfo); err == nil && h.arena.Valid(pinfo) {
		if err := h.arena.Free(pinfo); err != nil {
			h.logger.Warn().Err(err).Stringer("plugin_info", pinfo).Msg("free superseded plugin info")
		}
	}
	if err := h.arena.Free(info); err != nil {
		h.logger.Warn().Err(err).Stringer("host_info", info).Msg("free superseded host info")
	}
}

type leafSpec struct {
	key string
	val weed.Value
}

func (h *Host) publish(abi, api int32) (info weed.Handle, err error) {
	var created []weed.Handle
	defer func() {
		if err == nil {
			return
		}
		for _, p := range slices.Backward(created) {
			_ = h.arena.Free(p)
		}
		info = weed.NoPlant
	}()

	info, err = h.arena.New(weed.PlantHostInfo)
	if err != nil {
		return weed.NoPlant, fmt.Errorf("host info: %w", err)
	}
	created = append(created, info)

	leaves := []leafSpec{
		{weed.LeafABIVersion, weed.Int32s{abi}},
		{weed.LeafFilterAPIVer, weed.Int32s{api}},
	}
	for _, c := range h.capabilities(abi, api) {
		if slices.Contains(h.opts.Omit, c.key) {
			continue
		}
		leaves = append(leaves, c)
	}
	if h.opts.Name != "" {
		leaves = append(leaves, leafSpec{weed.LeafHostName, weed.Strings{h.opts.Name}})
	}
	if h.opts.Version != "" {
		leaves = append(leaves, leafSpec{weed.LeafHostVersion, weed.Strings{h.opts.Version}})
	}
	leaves = append(leaves,
		leafSpec{weed.LeafFlags, weed.Int32s{h.opts.Flags}},
		leafSpec{weed.LeafVerbosity, weed.Int32s{h.opts.Verbosity}},
	)
	for _, l := range leaves {
		if err := h.arena.Set(info, l.key, l.val); err != nil {
			return weed.NoPlant, err
		}
		if err := h.arena.SetFlags(info, l.key, weed.FlagReadonlyPlugin); err != nil {
			return weed.NoPlant, err
		}
	}

	pinfo, err := h.arena.New(weed.PlantPluginInfo)
	if err != nil {
		return weed.NoPlant, fmt.Errorf("plugin info: %w", err)
	}
	created = append(created, pinfo)
	if err := h.arena.Set(pinfo, weed.LeafHostInfo, weed.PlantRefs{info}); err != nil {
		return weed.NoPlant, err
	}
	if err := h.arena.Set(info, weed.LeafPluginInfo, weed.PlantRefs{pinfo}); err != nil {
		return weed.NoPlant, err
	}
	return info, nil
}

// capabilities builds the function table for a negotiated pairing.
func (h *Host) capabilities(abi, api int32) []leafSpec {
	a := h.arena
	pv := a.Plugin()
	mem := a.Allocator()

	fn := func(key string, f any) leafSpec {
		return leafSpec{key, weed.Funcs{weed.Func(f)}}
	}
	caps := []leafSpec{
		fn(FuncLeafGet, LeafGetFunc(func(p weed.Handle, key string, idx int, out any) weed.Status {
			return weed.StatusOf(a.Get(p, key, idx, out))
		})),
		fn(FuncLeafSet, LeafSetFunc(func(p weed.Handle, key string, st weed.SeedType, count int, values any) weed.Status {
			return weed.StatusOf(pv.SetRaw(p, key, st, count, values))
		})),
		fn(FuncPlantNew, PlantNewFunc(func(plantType int32) weed.Handle {
			p, err := a.New(plantType)
			if err != nil {
				return weed.NoPlant
			}
			return p
		})),
		fn(FuncPlantListLeaves, PlantListLeavesFunc(func(p weed.Handle) []string {
			keys, _ := a.ListLeaves(p)
			return keys
		})),
		fn(FuncLeafNumElements, LeafNumElementsFunc(func(p weed.Handle, key string) int {
			n, _ := a.NumElements(p, key)
			return n
		})),
		fn(FuncLeafElementSize, LeafElementSizeFunc(func(p weed.Handle, key string, idx int) int {
			n, _ := a.ElementSize(p, key, idx)
			return n
		})),
		fn(FuncLeafSeedType, LeafSeedTypeFunc(func(p weed.Handle, key string) weed.SeedType {
			st, _ := a.SeedTypeOf(p, key)
			return st
		})),
		fn(FuncLeafGetFlags, LeafGetFlagsFunc(func(p weed.Handle, key string) int32 {
			f, _ := a.Flags(p, key)
			return f
		})),
		fn(FuncMalloc, MallocFunc(func(size int) alloc.Block {
			b, _ := mem.Malloc(size)
			return b
		})),
		fn(FuncFree, FreeFunc(func(b alloc.Block) {
			if err := mem.Free(b); err != nil {
				h.logger.Warn().Err(err).Msg("plugin freed a bad block")
			}
		})),
		fn(FuncMemset, MemsetFunc(alloc.Memset)),
		fn(FuncMemcpy, MemcpyFunc(alloc.Memcpy)),
	}
	if abi >= ABIBreak {
		caps = append(caps,
			fn(FuncRealloc, ReallocFunc(func(b alloc.Block, size int) alloc.Block {
				nb, _ := mem.Realloc(b, size)
				return nb
			})),
			fn(FuncCalloc, CallocFunc(func(n, size int) alloc.Block {
				b, _ := mem.Calloc(n, size)
				return b
			})),
			fn(FuncMemmove, MemmoveFunc(alloc.Memmove)),
		)
	}
	if api >= APIBreak {
		caps = append(caps,
			fn(FuncPlantFree, PlantFreeFunc(func(p weed.Handle) weed.Status {
				return weed.StatusOf(a.Free(p))
			})),
			fn(FuncLeafDelete, LeafDeleteFunc(func(p weed.Handle, key string) weed.Status {
				return weed.StatusOf(pv.Delete(p, key))
			})),
		)
	}
	return caps
}
