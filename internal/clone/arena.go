package clone

import (
	"github.com/danmuck/weedcore/internal/weed"
	"github.com/danmuck/weedcore/internal/weed/alloc"
)

// ArenaStore adapts a host-side arena to Store.
type ArenaStore struct {
	A *weed.Arena
}

func (s ArenaStore) New(plantType int32) (weed.Handle, error) { return s.A.New(plantType) }
func (s ArenaStore) FreePlant(h weed.Handle) error            { return s.A.Free(h) }
func (s ArenaStore) Type(h weed.Handle) (int32, error)        { return s.A.PlantType(h) }

func (s ArenaStore) ListLeaves(h weed.Handle) []string {
	keys, _ := s.A.ListLeaves(h)
	return keys
}

func (s ArenaStore) SeedTypeOf(h weed.Handle, key string) weed.SeedType {
	st, _ := s.A.SeedTypeOf(h, key)
	return st
}

func (s ArenaStore) NumElements(h weed.Handle, key string) int {
	n, _ := s.A.NumElements(h, key)
	return n
}

func (s ArenaStore) ElementSize(h weed.Handle, key string, idx int) int {
	n, _ := s.A.ElementSize(h, key, idx)
	return n
}

func (s ArenaStore) Get(h weed.Handle, key string, idx int, out any) error {
	return s.A.Get(h, key, idx, out)
}

func (s ArenaStore) Set(h weed.Handle, key string, v weed.Value) error {
	return s.A.Set(h, key, v)
}

func (s ArenaStore) Alloc(size int) (alloc.Block, error) {
	return s.A.Allocator().Malloc(size)
}

func (s ArenaStore) Release(b alloc.Block) {
	_ = s.A.Allocator().Free(b)
}
