package cards

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewShuffledDeckHasFiftyTwoUniqueCards(t *testing.T) {
	d := NewShuffledDeck()
	require.Equal(t, 52, d.Size())

	seen := make(map[Card]bool, 52)
	dealt := d.Deal(52)
	for _, card := range dealt {
		require.False(t, seen[card], "duplicate card %v", card)
		seen[card] = true
	}
	require.Equal(t, 0, d.Size())
}

func TestDealBurnReduceSize(t *testing.T) {
	d := NewShuffledDeck()
	d.Burn()
	require.Equal(t, 51, d.Size())

	hole := d.Deal(2)
	require.Len(t, hole, 2)
	require.Equal(t, 49, d.Size())
}

func TestRestoreRoundTrips(t *testing.T) {
	d := NewShuffledDeck()
	d.Deal(10)
	remaining := d.Remaining()

	restored := Restore(remaining)
	require.Equal(t, len(remaining), restored.Size())
	require.Equal(t, remaining, restored.Remaining())
}
