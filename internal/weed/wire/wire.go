// Package wire is the tag-level leaf codec used when a plant crosses a
// binary boundary that cannot share Go values. It is not a storage
// format: pointer seeds travel as tokens that only mean something to the
// Pins table on the same host.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/danmuck/weedcore/internal/weed"
)

// HeaderLen is the fixed part of a leaf header after the key bytes.
const HeaderLen = 9

const maxKeyLen = math.MaxUint16

var (
	ErrTruncated  = errors.New("wire: truncated data")
	ErrKeyTooLong = errors.New("wire: key too long")
	ErrBadElement = errors.New("wire: bad element length")
	ErrNoTypeLeaf = errors.New("wire: first leaf is not the plant type")
	ErrUnknownPin = errors.New("wire: unknown pin token")
)

// Leaf is one decoded leaf: raw element bytes plus the header fields.
type Leaf struct {
	Key   string
	Seed  weed.SeedType
	Flags int32
	Elems [][]byte
}

// EncodeLeaf lays out key len u16 | key | seed u8 | count u32 |
// flags u32, then len u32 | bytes per element.
func EncodeLeaf(l Leaf) ([]byte, error) {
	if len(l.Key) > maxKeyLen {
		return nil, fmt.Errorf("%q: %w", l.Key[:16], ErrKeyTooLong)
	}
	size := 2 + len(l.Key) + HeaderLen
	for _, e := range l.Elems {
		size += 4 + len(e)
	}
	buf := make([]byte, 0, size)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(l.Key)))
	buf = append(buf, l.Key...)
	buf = append(buf, byte(l.Seed))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(l.Elems)))
	buf = binary.BigEndian.AppendUint32(buf, uint32(l.Flags))
	for _, e := range l.Elems {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(e)))
		buf = append(buf, e...)
	}
	return buf, nil
}

func EncodeLeaves(leaves []Leaf) ([]byte, error) {
	out := make([]byte, 0)
	for _, l := range leaves {
		b, err := EncodeLeaf(l)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

// DecodeLeaves parses a run of leaves. Seed tags outside the closed set
// are rejected with weed.ErrWrongSeedType.
func DecodeLeaves(payload []byte) ([]Leaf, error) {
	leaves := make([]Leaf, 0)
	i := 0
	for i < len(payload) {
		if len(payload)-i < 2 {
			return nil, fmt.Errorf("key length: %w", ErrTruncated)
		}
		klen := int(binary.BigEndian.Uint16(payload[i : i+2]))
		i += 2
		if len(payload)-i < klen+HeaderLen {
			return nil, fmt.Errorf("leaf header: %w", ErrTruncated)
		}
		key := string(payload[i : i+klen])
		i += klen
		seed := weed.SeedType(payload[i])
		count := binary.BigEndian.Uint32(payload[i+1 : i+5])
		flags := int32(binary.BigEndian.Uint32(payload[i+5 : i+9]))
		i += HeaderLen
		if !seed.Valid() {
			return nil, fmt.Errorf("leaf %q seed %d: %w", key, seed, weed.ErrWrongSeedType)
		}
		// each element needs at least its length prefix
		if uint64(count)*4 > uint64(len(payload)-i) {
			return nil, fmt.Errorf("leaf %q count %d: %w", key, count, ErrTruncated)
		}
		elems := make([][]byte, count)
		for n := range elems {
			if len(payload)-i < 4 {
				return nil, fmt.Errorf("leaf %q element %d: %w", key, n, ErrTruncated)
			}
			l := binary.BigEndian.Uint32(payload[i : i+4])
			i += 4
			if uint32(len(payload)-i) < l {
				return nil, fmt.Errorf("leaf %q element %d: %w", key, n, ErrTruncated)
			}
			elems[n] = append([]byte(nil), payload[i:i+int(l)]...)
			i += int(l)
		}
		leaves = append(leaves, Leaf{Key: key, Seed: seed, Flags: flags, Elems: elems})
	}
	return leaves, nil
}
