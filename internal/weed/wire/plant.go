package wire

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/danmuck/weedcore/internal/weed"
)

// EncodePlant serialises every leaf of h, type leaf first. Function and
// pointer elements are registered in pins.
func EncodePlant(a *weed.Arena, h weed.Handle, pins *Pins) ([]byte, error) {
	keys, err := a.ListLeaves(h)
	if err != nil {
		return nil, err
	}
	leaves := make([]Leaf, 0, len(keys))
	for _, key := range keys {
		v, err := a.Value(h, key)
		if err != nil {
			return nil, err
		}
		flags, err := a.Flags(h, key)
		if err != nil {
			return nil, err
		}
		leaves = append(leaves, Leaf{
			Key:   key,
			Seed:  v.SeedType(),
			Flags: flags,
			Elems: encodeElements(v, pins),
		})
	}
	return EncodeLeaves(leaves)
}

// DecodePlant builds a new plant in a from buf. On any error the partial
// plant is freed and nothing is left behind.
func DecodePlant(a *weed.Arena, buf []byte, pins *Pins) (weed.Handle, error) {
	leaves, err := DecodeLeaves(buf)
	if err != nil {
		return weed.NoPlant, err
	}
	if len(leaves) == 0 || leaves[0].Key != weed.LeafType || leaves[0].Seed != weed.SeedInt32 ||
		len(leaves[0].Elems) != 1 {
		return weed.NoPlant, ErrNoTypeLeaf
	}
	typ, err := decodeElements(leaves[0], pins)
	if err != nil {
		return weed.NoPlant, err
	}
	h, err := a.New(typ.(weed.Int32s)[0])
	if err != nil {
		return weed.NoPlant, err
	}
	if err := a.SetFlags(h, weed.LeafType, leaves[0].Flags); err != nil {
		_ = a.Free(h)
		return weed.NoPlant, err
	}
	for _, l := range leaves[1:] {
		if err := restore(a, h, l, pins); err != nil {
			_ = a.SetFlags(h, weed.LeafType, 0)
			_ = a.Free(h)
			return weed.NoPlant, err
		}
	}
	return h, nil
}

func restore(a *weed.Arena, h weed.Handle, l Leaf, pins *Pins) error {
	v, err := decodeElements(l, pins)
	if err != nil {
		return err
	}
	if err := a.Set(h, l.Key, v); err != nil {
		return err
	}
	return a.SetFlags(h, l.Key, l.Flags)
}

func encodeElements(v weed.Value, pins *Pins) [][]byte {
	out := make([][]byte, 0, v.Len())
	u32 := func(x uint32) { out = append(out, binary.BigEndian.AppendUint32(nil, x)) }
	u64 := func(x uint64) { out = append(out, binary.BigEndian.AppendUint64(nil, x)) }
	switch vals := v.(type) {
	case weed.Int32s:
		for _, x := range vals {
			u32(uint32(x))
		}
	case weed.Booleans:
		for _, x := range vals {
			if x {
				u32(1)
			} else {
				u32(0)
			}
		}
	case weed.Doubles:
		for _, x := range vals {
			u64(math.Float64bits(x))
		}
	case weed.Int64s:
		for _, x := range vals {
			u64(uint64(x))
		}
	case weed.Strings:
		for _, x := range vals {
			out = append(out, []byte(x))
		}
	case weed.PlantRefs:
		for _, x := range vals {
			u64(x.Token())
		}
	case weed.Funcs:
		for _, x := range vals {
			u64(pins.Pin(x))
		}
	case weed.Pointers:
		for _, x := range vals {
			u64(pins.Pin(x))
		}
	}
	return out
}

func decodeElements(l Leaf, pins *Pins) (weed.Value, error) {
	want := fixedWidth(l.Seed)
	for n, e := range l.Elems {
		if want > 0 && len(e) != want {
			return nil, fmt.Errorf("leaf %q element %d: %d bytes for %s: %w", l.Key, n, len(e), l.Seed, ErrBadElement)
		}
	}
	switch l.Seed {
	case weed.SeedInt32:
		return each(l, func(e []byte) (int32, error) { return int32(binary.BigEndian.Uint32(e)), nil })
	case weed.SeedBoolean:
		return each(l, func(e []byte) (bool, error) { return binary.BigEndian.Uint32(e) != 0, nil })
	case weed.SeedDouble:
		return each(l, func(e []byte) (float64, error) { return math.Float64frombits(binary.BigEndian.Uint64(e)), nil })
	case weed.SeedInt64:
		return each(l, func(e []byte) (int64, error) { return int64(binary.BigEndian.Uint64(e)), nil })
	case weed.SeedString:
		return each(l, func(e []byte) (string, error) { return string(e), nil })
	case weed.SeedPlantRef:
		return each(l, func(e []byte) (weed.Handle, error) {
			return weed.HandleFromToken(binary.BigEndian.Uint64(e)), nil
		})
	case weed.SeedFunc:
		return each(l, func(e []byte) (weed.Func, error) {
			v, err := unpin(pins, e)
			return weed.Func(v), err
		})
	case weed.SeedPointer:
		return each(l, func(e []byte) (weed.Pointer, error) {
			v, err := unpin(pins, e)
			return weed.Pointer(v), err
		})
	default:
		return nil, fmt.Errorf("leaf %q seed %d: %w", l.Key, l.Seed, weed.ErrWrongSeedType)
	}
}

func each[E any](l Leaf, conv func([]byte) (E, error)) (weed.Value, error) {
	out := make([]E, len(l.Elems))
	for n, e := range l.Elems {
		v, err := conv(e)
		if err != nil {
			return nil, fmt.Errorf("leaf %q element %d: %w", l.Key, n, err)
		}
		out[n] = v
	}
	return weed.ValueOf(l.Seed, len(out), out)
}

func unpin(pins *Pins, e []byte) (any, error) {
	tok := binary.BigEndian.Uint64(e)
	v, ok := pins.Lookup(tok)
	if !ok {
		return nil, fmt.Errorf("token %d: %w", tok, ErrUnknownPin)
	}
	return v, nil
}

func fixedWidth(st weed.SeedType) int {
	switch st {
	case weed.SeedInt32, weed.SeedBoolean:
		return 4
	case weed.SeedString:
		return 0
	default:
		return 8
	}
}
