// Package schema checks that descriptor plants carry the leaves a host
// needs before it will use them.
package schema

import (
	"errors"
	"fmt"

	"github.com/danmuck/weedcore/internal/weed"
	"github.com/rs/zerolog/log"
)

// Reader is the read-only introspection a validator needs.
type Reader interface {
	PlantType(h weed.Handle) (int32, error)
	SeedTypeOf(h weed.Handle, key string) (weed.SeedType, error)
	NumElements(h weed.Handle, key string) (int, error)
}

// Requirement names a leaf, its seed and the minimum element count.
// SeedInvalid accepts any seed.
type Requirement struct {
	Key      string
	Seed     weed.SeedType
	MinCount int
}

type ValidationError struct {
	PlantType int32
	Key       string
	Reason    string
}

func (e ValidationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("schema: plant_type=%s: %s", weed.PlantTypeName(e.PlantType), e.Reason)
	}
	return fmt.Sprintf("schema: plant_type=%s leaf=%s: %s", weed.PlantTypeName(e.PlantType), e.Key, e.Reason)
}

var requirements = map[int32][]Requirement{
	weed.PlantPluginInfo: {
		{weed.LeafFilters, weed.SeedPlantRef, 1},
	},
	weed.PlantFilterClass: {
		{weed.LeafName, weed.SeedString, 1},
		{weed.LeafAuthor, weed.SeedString, 1},
		{weed.LeafVersion, weed.SeedInt32, 1},
	},
	weed.PlantChannelTemplate: {
		{weed.LeafName, weed.SeedString, 1},
	},
	weed.PlantParameterTemplate: {
		{weed.LeafName, weed.SeedString, 1},
		{weed.LeafParamType, weed.SeedInt32, 1},
		{weed.LeafDefault, weed.SeedInvalid, 0},
	},
	weed.PlantGUI: {},
	weed.PlantHostInfo: {
		{weed.LeafABIVersion, weed.SeedInt32, 1},
		{weed.LeafFilterAPIVer, weed.SeedInt32, 1},
	},
}

// Requirements returns a copy of the table for plantType.
func Requirements(plantType int32) ([]Requirement, bool) {
	reqs, ok := requirements[plantType]
	if !ok {
		return nil, false
	}
	return append([]Requirement(nil), reqs...), true
}

// Validate enforces the required leaves for h's plant type. Leaves not
// in the table are ignored.
func Validate(r Reader, h weed.Handle) error {
	pt, err := r.PlantType(h)
	if err != nil {
		return err
	}
	log.Debug().Str("plant_type", weed.PlantTypeName(pt)).Stringer("plant", h).Msg("schema.Validate")
	reqs, ok := requirements[pt]
	if !ok {
		log.Error().Int32("plant_type", pt).Msg("schema.Validate unknown plant type")
		return ValidationError{PlantType: pt, Reason: "unknown plant type"}
	}
	for _, req := range reqs {
		st, err := r.SeedTypeOf(h, req.Key)
		if errors.Is(err, weed.ErrNoSuchLeaf) {
			log.Error().Int32("plant_type", pt).Str("leaf", req.Key).Msg("schema.Validate missing leaf")
			return ValidationError{PlantType: pt, Key: req.Key, Reason: "missing required leaf"}
		}
		if err != nil {
			return err
		}
		if req.Seed != weed.SeedInvalid && st != req.Seed {
			log.Error().
				Int32("plant_type", pt).
				Str("leaf", req.Key).
				Stringer("got", st).
				Stringer("want", req.Seed).
				Msg("schema.Validate seed mismatch")
			return ValidationError{PlantType: pt, Key: req.Key, Reason: "seed type mismatch"}
		}
		n, err := r.NumElements(h, req.Key)
		if err != nil {
			return err
		}
		if n < req.MinCount {
			return ValidationError{PlantType: pt, Key: req.Key, Reason: fmt.Sprintf("need %d elements, have %d", req.MinCount, n)}
		}
	}
	return nil
}

// ValidateType is Validate plus a check that h has plant type want.
func ValidateType(r Reader, h weed.Handle, want int32) error {
	pt, err := r.PlantType(h)
	if err != nil {
		return err
	}
	if pt != want {
		return ValidationError{
			PlantType: pt,
			Key:       weed.LeafType,
			Reason:    fmt.Sprintf("expected %s", weed.PlantTypeName(want)),
		}
	}
	return Validate(r, h)
}
