package binding

import (
	"github.com/danmuck/weedcore/internal/weed"
)

func getOne[T any](c *Core, h weed.Handle, key string) (T, error) {
	var v T
	err := c.Get(h, key, 0, &v)
	return v, err
}

// getAll reads every element of key. An empty leaf of the right seed
// yields an empty, non-nil slice.
func getAll[T any](c *Core, h weed.Handle, key string, want weed.SeedType) ([]T, error) {
	st := c.SeedTypeOf(h, key)
	if st == weed.SeedInvalid {
		return nil, c.Get(h, key, 0, nil)
	}
	if st != want {
		return nil, statusErr("leaf_get", key, weed.StatusWrongSeedType)
	}
	n := c.NumElements(h, key)
	out := make([]T, n)
	for i := range out {
		if err := c.Get(h, key, i, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Core) GetInt32(h weed.Handle, key string) (int32, error) {
	return getOne[int32](c, h, key)
}

func (c *Core) GetInt64(h weed.Handle, key string) (int64, error) {
	return getOne[int64](c, h, key)
}

func (c *Core) GetDouble(h weed.Handle, key string) (float64, error) {
	return getOne[float64](c, h, key)
}

func (c *Core) GetBool(h weed.Handle, key string) (bool, error) {
	return getOne[bool](c, h, key)
}

func (c *Core) GetString(h weed.Handle, key string) (string, error) {
	return getOne[string](c, h, key)
}

func (c *Core) GetPlant(h weed.Handle, key string) (weed.Handle, error) {
	return getOne[weed.Handle](c, h, key)
}

func (c *Core) GetFunc(h weed.Handle, key string) (weed.Func, error) {
	return getOne[weed.Func](c, h, key)
}

func (c *Core) GetPointer(h weed.Handle, key string) (weed.Pointer, error) {
	return getOne[weed.Pointer](c, h, key)
}

func (c *Core) GetInt32s(h weed.Handle, key string) ([]int32, error) {
	return getAll[int32](c, h, key, weed.SeedInt32)
}

func (c *Core) GetInt64s(h weed.Handle, key string) ([]int64, error) {
	return getAll[int64](c, h, key, weed.SeedInt64)
}

func (c *Core) GetDoubles(h weed.Handle, key string) ([]float64, error) {
	return getAll[float64](c, h, key, weed.SeedDouble)
}

func (c *Core) GetBools(h weed.Handle, key string) ([]bool, error) {
	return getAll[bool](c, h, key, weed.SeedBoolean)
}

func (c *Core) GetStrings(h weed.Handle, key string) ([]string, error) {
	return getAll[string](c, h, key, weed.SeedString)
}

func (c *Core) GetPlants(h weed.Handle, key string) ([]weed.Handle, error) {
	return getAll[weed.Handle](c, h, key, weed.SeedPlantRef)
}

func (c *Core) SetInt32(h weed.Handle, key string, v int32) error {
	return c.Set(h, key, weed.Int32s{v})
}

func (c *Core) SetInt64(h weed.Handle, key string, v int64) error {
	return c.Set(h, key, weed.Int64s{v})
}

func (c *Core) SetDouble(h weed.Handle, key string, v float64) error {
	return c.Set(h, key, weed.Doubles{v})
}

func (c *Core) SetBool(h weed.Handle, key string, v bool) error {
	return c.Set(h, key, weed.Booleans{v})
}

func (c *Core) SetString(h weed.Handle, key string, v string) error {
	return c.Set(h, key, weed.Strings{v})
}

func (c *Core) SetPlant(h weed.Handle, key string, v weed.Handle) error {
	return c.Set(h, key, weed.PlantRefs{v})
}

func (c *Core) SetFunc(h weed.Handle, key string, v weed.Func) error {
	return c.Set(h, key, weed.Funcs{v})
}

func (c *Core) SetPointer(h weed.Handle, key string, v weed.Pointer) error {
	return c.Set(h, key, weed.Pointers{v})
}

func (c *Core) SetInt32s(h weed.Handle, key string, v []int32) error {
	return c.Set(h, key, weed.Int32s(v))
}

func (c *Core) SetDoubles(h weed.Handle, key string, v []float64) error {
	return c.Set(h, key, weed.Doubles(v))
}

func (c *Core) SetBools(h weed.Handle, key string, v []bool) error {
	return c.Set(h, key, weed.Booleans(v))
}

func (c *Core) SetStrings(h weed.Handle, key string, v []string) error {
	return c.Set(h, key, weed.Strings(v))
}

func (c *Core) SetPlants(h weed.Handle, key string, v []weed.Handle) error {
	return c.Set(h, key, weed.PlantRefs(v))
}
