package cart

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddItem_MergesExistingLine(t *testing.T) {
	c := New("buyer-1")

	require.NoError(t, c.AddItem("p1", 2))
	require.NoError(t, c.AddItem("p2", 1))
	require.NoError(t, c.AddItem("p1", 3))

	require.Len(t, c.Items, 2)
	assert.Equal(t, "p1", c.Items[0].ProductID)
	assert.Equal(t, 5, c.Items[0].Quantity)
	assert.Equal(t, 6, c.TotalItems())
}

func TestAddItem_RejectsBadInput(t *testing.T) {
	c := New("buyer-1")

	assert.ErrorIs(t, c.AddItem("p1", 0), ErrInvalidQuantity)
	assert.ErrorIs(t, c.AddItem("p1", -2), ErrInvalidQuantity)
	assert.ErrorIs(t, c.AddItem("", 1), ErrProductIDMissing)
	assert.True(t, c.IsEmpty())
}

func TestAddItem_MergeCannotOverflow(t *testing.T) {
	c := New("buyer-1")
	require.NoError(t, c.AddItem("p1", math.MaxInt))

	assert.ErrorIs(t, c.AddItem("p1", 1), ErrInvalidQuantity)
	assert.Equal(t, math.MaxInt, c.Items[0].Quantity)

	require.NoError(t, c.AddItem("p2", 1))
	require.NoError(t, c.AddItem("p2", math.MaxInt-1))
	assert.Equal(t, math.MaxInt, c.Items[1].Quantity)
}

func TestUpdateItem(t *testing.T) {
	c := New("buyer-1")
	require.NoError(t, c.AddItem("p1", 2))

	require.NoError(t, c.UpdateItem("p1", 7))
	assert.Equal(t, 7, c.Items[0].Quantity)

	assert.ErrorIs(t, c.UpdateItem("missing", 1), ErrItemNotFound)

	require.NoError(t, c.UpdateItem("p1", 0))
	assert.True(t, c.IsEmpty())

	// removing an absent line through a non-positive update is still fine
	require.NoError(t, c.UpdateItem("p1", -1))
}

func TestRemoveItem_AbsentIsNoop(t *testing.T) {
	c := New("buyer-1")
	require.NoError(t, c.AddItem("p1", 1))
	before := c.UpdatedAt

	c.RemoveItem("nope")

	assert.Len(t, c.Items, 1)
	assert.Equal(t, before, c.UpdatedAt)
}

func TestClear_EmptiesInPlace(t *testing.T) {
	c := New("buyer-1")
	require.NoError(t, c.AddItem("p1", 1))
	require.NoError(t, c.AddItem("p2", 4))

	c.Clear()

	assert.True(t, c.IsEmpty())
	assert.NotNil(t, c.Items)
	assert.Equal(t, "buyer-1", c.BuyerID)
	assert.Zero(t, c.TotalItems())
}

func TestClone_IsIndependent(t *testing.T) {
	c := New("buyer-1")
	require.NoError(t, c.AddItem("p1", 1))

	clone := c.Clone()
	clone.Items[0].Quantity = 99

	assert.Equal(t, 1, c.Items[0].Quantity)
}
