package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisitedSet(t *testing.T) {
	v := NewVisitedSet()

	a := int64(CellsOffset)
	b := int64(CellsOffset + 5000*CellSize)

	assert.True(t, v.MarkIfUnvisited(a))
	assert.False(t, v.MarkIfUnvisited(a))
	assert.True(t, v.IsVisited(a))
	assert.False(t, v.IsVisited(b))

	v.Save()

	assert.True(t, v.MarkIfUnvisited(b))
	assert.False(t, v.MarkIfUnvisited(b))

	v.Restore()
	assert.True(t, v.IsVisited(a))
	assert.False(t, v.IsVisited(b))

	v.Clear()
	assert.False(t, v.IsVisited(a))
	assert.True(t, v.MarkIfUnvisited(a))

	// the super groups region is never a transaction
	assert.False(t, v.MarkIfUnvisited(0))
}

func TestTipSet(t *testing.T) {
	s := newTipSet(NewInmemArena(TipsArena))

	pointers := []int64{
		CellsOffset,
		CellsOffset + 7*CellSize,
		CellsOffset + 8*CellSize,
		CellsOffset + (CellSize*8+3)*CellSize,
	}
	for _, p := range pointers {
		require.NoError(t, s.Set(p))
	}
	require.NoError(t, s.Clear(pointers[1]))

	ok, err := s.IsSet(pointers[0])
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsSet(pointers[1])
	require.NoError(t, err)
	assert.False(t, ok)

	var got []int64
	require.NoError(t, s.Each(pointers[3]+CellSize, func(p int64) error {
		got = append(got, p)
		return nil
	}))
	assert.Equal(t, []int64{pointers[0], pointers[2], pointers[3]}, got)

	got = nil
	require.NoError(t, s.Each(pointers[3], func(p int64) error {
		got = append(got, p)
		return nil
	}))
	assert.Equal(t, []int64{pointers[0], pointers[2]}, got)
}
