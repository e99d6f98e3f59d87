package weed

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueOfAcceptsRawAndNamedSlices(t *testing.T) {
	v, err := ValueOf(SeedInt32, 2, []int32{4, 5, 6})
	require.NoError(t, err)
	assert.Equal(t, Int32s{4, 5}, v)

	v, err = ValueOf(SeedString, 1, Strings{"a"})
	require.NoError(t, err)
	assert.Equal(t, Strings{"a"}, v)

	v, err = ValueOf(SeedPlantRef, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, v.Len())
	assert.Equal(t, SeedPlantRef, v.SeedType())
}

func TestValueOfRejectsMismatch(t *testing.T) {
	cases := []struct {
		name   string
		st     SeedType
		count  int
		values any
	}{
		{"tag vs elem", SeedDouble, 1, []int32{1}},
		{"short slice", SeedInt64, 3, []int64{1, 2}},
		{"unknown seed", SeedType(9), 0, []int32{}},
		{"bool as int", SeedBoolean, 1, []int32{1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValueOf(tc.st, tc.count, tc.values)
			if !errors.Is(err, ErrWrongSeedType) {
				t.Fatalf("expected ErrWrongSeedType, got %v", err)
			}
		})
	}
}

func TestSeedTypeClosedSet(t *testing.T) {
	for _, st := range Seeds() {
		require.True(t, st.Valid(), st.String())
		back, ok := ParseSeedType(st.String())
		require.True(t, ok)
		require.Equal(t, st, back)
	}
	assert.False(t, SeedType(6).Valid())
	assert.False(t, SeedInvalid.Valid())
	assert.True(t, SeedPlantRef.IsPointer())
	assert.False(t, SeedString.IsPointer())
}

func TestStatusMapping(t *testing.T) {
	for _, se := range statusErrors {
		wrapped := opErr("leaf_get", "k", se.err)
		assert.Equal(t, se.status, StatusOf(wrapped))
		assert.ErrorIs(t, se.status.Err(), se.err)
	}
	assert.Nil(t, StatusSuccess.Err())
	assert.Equal(t, StatusSuccess, StatusOf(nil))
	assert.Equal(t, StatusPluginInvalid, StatusOf(errors.New("other")))
}

func TestOptionalAndRequired(t *testing.T) {
	absent := opErr("leaf_get", "label", ErrNoSuchLeaf)
	assert.NoError(t, Optional(absent))
	assert.ErrorIs(t, Optional(opErr("leaf_get", "x", ErrWrongSeedType)), ErrWrongSeedType)

	err := Required("name", absent)
	var missing *MissingLeafError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "name", missing.Key)
	assert.ErrorIs(t, err, ErrNoSuchLeaf)
	assert.NoError(t, Required("name", nil))
}
