package replacer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVictimOrderMatchesUnpinOrder(t *testing.T) {
	r := New()
	r.Unpin(1)
	r.Unpin(2)
	r.Unpin(3)
	require.Equal(t, 3, r.Size())

	v, ok := r.Victim()
	require.True(t, ok)
	require.Equal(t, 1, v)

	v, ok = r.Victim()
	require.True(t, ok)
	require.Equal(t, 2, v)

	require.Equal(t, 1, r.Size())
}

func TestReUnpinDoesNotMoveToBack(t *testing.T) {
	r := New()
	r.Unpin(1)
	r.Unpin(2)
	r.Unpin(1) // already tracked, must not move to the back

	v, _ := r.Victim()
	require.Equal(t, 1, v)
}

func TestPinRemovesFromTrackedSet(t *testing.T) {
	r := New()
	r.Unpin(1)
	r.Pin(1)
	require.Equal(t, 0, r.Size())

	_, ok := r.Victim()
	require.False(t, ok)
}

func TestPinIdempotent(t *testing.T) {
	r := New()
	r.Pin(1)
	r.Pin(1)
	require.Equal(t, 0, r.Size())
}
