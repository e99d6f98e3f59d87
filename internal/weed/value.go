package weed

import "fmt"

// Func is an opaque function value stored in a SeedFunc leaf.
type Func any

// Pointer is an opaque reference stored in a SeedPointer leaf.
type Pointer any

// Value is the homogeneous element array held by a leaf. The set of
// implementations is closed.
type Value interface {
	SeedType() SeedType
	Len() int

	elementSize(i int) int
	assign(out any, i int) error
	element(i int) any
	clone() Value
}

type (
	Int32s    []int32
	Int64s    []int64
	Doubles   []float64
	Booleans  []bool
	Strings   []string
	Funcs     []Func
	Pointers  []Pointer
	PlantRefs []Handle
)

func (Int32s) SeedType() SeedType    { return SeedInt32 }
func (Int64s) SeedType() SeedType    { return SeedInt64 }
func (Doubles) SeedType() SeedType   { return SeedDouble }
func (Booleans) SeedType() SeedType  { return SeedBoolean }
func (Strings) SeedType() SeedType   { return SeedString }
func (Funcs) SeedType() SeedType     { return SeedFunc }
func (Pointers) SeedType() SeedType  { return SeedPointer }
func (PlantRefs) SeedType() SeedType { return SeedPlantRef }

func (v Int32s) Len() int    { return len(v) }
func (v Int64s) Len() int    { return len(v) }
func (v Doubles) Len() int   { return len(v) }
func (v Booleans) Len() int  { return len(v) }
func (v Strings) Len() int   { return len(v) }
func (v Funcs) Len() int     { return len(v) }
func (v Pointers) Len() int  { return len(v) }
func (v PlantRefs) Len() int { return len(v) }

func (v Int32s) elementSize(int) int    { return SeedInt32.width() }
func (v Int64s) elementSize(int) int    { return SeedInt64.width() }
func (v Doubles) elementSize(int) int   { return SeedDouble.width() }
func (v Booleans) elementSize(int) int  { return SeedBoolean.width() }
func (v Strings) elementSize(i int) int { return len(v[i]) }
func (v Funcs) elementSize(int) int     { return SeedFunc.width() }
func (v Pointers) elementSize(int) int  { return SeedPointer.width() }
func (v PlantRefs) elementSize(int) int { return SeedPlantRef.width() }

func (v Int32s) element(i int) any    { return v[i] }
func (v Int64s) element(i int) any    { return v[i] }
func (v Doubles) element(i int) any   { return v[i] }
func (v Booleans) element(i int) any  { return v[i] }
func (v Strings) element(i int) any   { return v[i] }
func (v Funcs) element(i int) any     { return v[i] }
func (v Pointers) element(i int) any  { return v[i] }
func (v PlantRefs) element(i int) any { return v[i] }

func (v Int32s) clone() Value    { return append(Int32s(nil), v...) }
func (v Int64s) clone() Value    { return append(Int64s(nil), v...) }
func (v Doubles) clone() Value   { return append(Doubles(nil), v...) }
func (v Booleans) clone() Value  { return append(Booleans(nil), v...) }
func (v Strings) clone() Value   { return append(Strings(nil), v...) }
func (v Funcs) clone() Value     { return append(Funcs(nil), v...) }
func (v Pointers) clone() Value  { return append(Pointers(nil), v...) }
func (v PlantRefs) clone() Value { return append(PlantRefs(nil), v...) }

func (v Int32s) assign(out any, i int) error    { return assignTo(out, v[i], SeedInt32) }
func (v Int64s) assign(out any, i int) error    { return assignTo(out, v[i], SeedInt64) }
func (v Doubles) assign(out any, i int) error   { return assignTo(out, v[i], SeedDouble) }
func (v Booleans) assign(out any, i int) error  { return assignTo(out, v[i], SeedBoolean) }
func (v Strings) assign(out any, i int) error   { return assignTo(out, v[i], SeedString) }
func (v Funcs) assign(out any, i int) error     { return assignTo(out, v[i], SeedFunc) }
func (v Pointers) assign(out any, i int) error  { return assignTo(out, v[i], SeedPointer) }
func (v PlantRefs) assign(out any, i int) error { return assignTo(out, v[i], SeedPlantRef) }

// assignTo stores elem through out. A *any accepts every seed so generic
// walkers can read leaves without knowing their type up front.
func assignTo[T any](out any, elem T, st SeedType) error {
	switch dst := out.(type) {
	case *T:
		*dst = elem
		return nil
	case *any:
		*dst = elem
		return nil
	default:
		return fmt.Errorf("%s element into %T: %w", st, out, ErrWrongSeedType)
	}
}

// ValueOf builds a Value from a seed tag and a Go slice of the matching
// element type. Only the first count elements are copied; values may be
// nil when count is zero.
func ValueOf(st SeedType, count int, values any) (Value, error) {
	if count < 0 {
		return nil, fmt.Errorf("negative count %d: %w", count, ErrNoSuchElement)
	}
	if count == 0 && values == nil {
		return Empty(st)
	}
	var (
		v  Value
		ok bool
	)
	switch st {
	case SeedInt32:
		v, ok = prefix[int32, Int32s](values, count)
	case SeedInt64:
		v, ok = prefix[int64, Int64s](values, count)
	case SeedDouble:
		v, ok = prefix[float64, Doubles](values, count)
	case SeedBoolean:
		v, ok = prefix[bool, Booleans](values, count)
	case SeedString:
		v, ok = prefix[string, Strings](values, count)
	case SeedFunc:
		v, ok = prefix[Func, Funcs](values, count)
	case SeedPointer:
		v, ok = prefix[Pointer, Pointers](values, count)
	case SeedPlantRef:
		v, ok = prefix[Handle, PlantRefs](values, count)
	default:
		return nil, fmt.Errorf("seed %d: %w", int32(st), ErrWrongSeedType)
	}
	if !ok {
		return nil, fmt.Errorf("%s leaf from %T[%d]: %w", st, values, count, ErrWrongSeedType)
	}
	return v, nil
}

// Empty returns the zero-length Value for st.
func Empty(st SeedType) (Value, error) {
	switch st {
	case SeedInt32:
		return Int32s{}, nil
	case SeedInt64:
		return Int64s{}, nil
	case SeedDouble:
		return Doubles{}, nil
	case SeedBoolean:
		return Booleans{}, nil
	case SeedString:
		return Strings{}, nil
	case SeedFunc:
		return Funcs{}, nil
	case SeedPointer:
		return Pointers{}, nil
	case SeedPlantRef:
		return PlantRefs{}, nil
	default:
		return nil, fmt.Errorf("seed %d: %w", int32(st), ErrWrongSeedType)
	}
}

// prefix accepts either the raw element slice ([]int32) or the named
// Value type (Int32s) so both in-process and tag-level callers work.
func prefix[E any, V ~[]E](values any, count int) (Value, bool) {
	var src []E
	switch s := values.(type) {
	case []E:
		src = s
	case V:
		src = s
	default:
		return nil, false
	}
	if len(src) < count {
		return nil, false
	}
	out := make(V, count)
	copy(out, src)
	return any(out).(Value), true
}

// Elements returns the elements of v as a []any, for generic walkers.
func Elements(v Value) []any {
	out := make([]any, v.Len())
	for i := range out {
		out[i] = v.element(i)
	}
	return out
}
