package weed

// SeedType tags the element type of a leaf. Tag numbers are part of the
// plugin ABI: new seeds are appended, existing numbers never change.
type SeedType int32

const (
	SeedInvalid SeedType = 0

	// Fundamental seeds.
	SeedInt32   SeedType = 1
	SeedDouble  SeedType = 2
	SeedBoolean SeedType = 3
	SeedString  SeedType = 4
	SeedInt64   SeedType = 5

	// Pointer seeds.
	SeedFunc     SeedType = 64
	SeedPointer  SeedType = 65
	SeedPlantRef SeedType = 66
)

var seedNames = map[SeedType]string{
	SeedInt32:    "int",
	SeedDouble:   "double",
	SeedBoolean:  "boolean",
	SeedString:   "string",
	SeedInt64:    "int64",
	SeedFunc:     "funcptr",
	SeedPointer:  "voidptr",
	SeedPlantRef: "plantptr",
}

// Seeds lists every valid seed type in tag order.
func Seeds() []SeedType {
	return []SeedType{
		SeedInt32, SeedDouble, SeedBoolean, SeedString, SeedInt64,
		SeedFunc, SeedPointer, SeedPlantRef,
	}
}

// Valid reports whether st belongs to the closed seed set.
func (st SeedType) Valid() bool {
	_, ok := seedNames[st]
	return ok
}

// IsPointer reports whether elements of st are references rather than
// copied values.
func (st SeedType) IsPointer() bool {
	return st == SeedFunc || st == SeedPointer || st == SeedPlantRef
}

func (st SeedType) String() string {
	if name, ok := seedNames[st]; ok {
		return name
	}
	return "void"
}

// width returns the fixed element size in bytes, or 0 for strings.
func (st SeedType) width() int {
	switch st {
	case SeedInt32, SeedBoolean:
		return 4
	case SeedDouble, SeedInt64:
		return 8
	case SeedFunc, SeedPointer, SeedPlantRef:
		return 8
	default:
		return 0
	}
}

// ParseSeedType maps a short seed name back to its tag.
func ParseSeedType(name string) (SeedType, bool) {
	for st, n := range seedNames {
		if n == name {
			return st, true
		}
	}
	return SeedInvalid, false
}
