package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCart_Add_MergesQuantities(t *testing.T) {
	for _, tc := range []struct{ q1, q2 int }{{1, 1}, {2, 3}, {5, 10}} {
		c := NewCart(nil)
		line := CartLine{ProductID: 7, Name: "Mouse", UnitPrice: 9990}

		c.Add(line, tc.q1)
		c.Add(line, tc.q2)

		require.Len(t, c.Lines, 1)
		assert.Equal(t, tc.q1+tc.q2, c.Lines[0].Quantity)
	}
}

func TestCart_Add_NegativeDeltaRemovesLine(t *testing.T) {
	c := NewCart([]CartLine{{ProductID: 1, UnitPrice: 10, Quantity: 2}})

	c.Add(CartLine{ProductID: 1}, -2)

	assert.True(t, c.IsEmpty())
}

func TestCart_Add_NonPositiveDeltaOnMissingLineIsNoop(t *testing.T) {
	c := NewCart(nil)

	c.Add(CartLine{ProductID: 1}, 0)
	c.Add(CartLine{ProductID: 2}, -3)

	assert.Empty(t, c.Lines)
}

func TestCart_SetQuantity_ZeroOrNegativeRemoves(t *testing.T) {
	for _, q := range []int{0, -1, -50} {
		c := NewCart([]CartLine{
			{ProductID: 1, UnitPrice: 10, Quantity: 2},
			{ProductID: 2, UnitPrice: 5, Quantity: 1},
		})

		existed := c.SetQuantity(1, q)

		assert.True(t, existed)
		require.Len(t, c.Lines, 1)
		assert.Equal(t, int64(2), c.Lines[0].ProductID)
		for _, l := range c.Lines {
			assert.Positive(t, l.Quantity)
		}
	}
}

func TestCart_SetQuantity_MissingLine(t *testing.T) {
	c := NewCart(nil)
	assert.False(t, c.SetQuantity(3, 4))
	assert.Empty(t, c.Lines)
}

func TestCart_TotalAndCount(t *testing.T) {
	c := NewCart([]CartLine{
		{ProductID: 1, UnitPrice: 1000, Quantity: 2},
		{ProductID: 2, UnitPrice: 250.5, Quantity: 4},
	})
	assert.InDelta(t, 3002.0, c.Total(), 0.0001)
	assert.Equal(t, 6, c.Count())

	c.SetQuantity(1, 1)
	assert.InDelta(t, 2002.0, c.Total(), 0.0001)

	c.Remove(2)
	assert.InDelta(t, 1000.0, c.Total(), 0.0001)
	assert.Equal(t, 1, c.Count())
}

func TestNewCart_DropsZeroLinesAndMergesDuplicates(t *testing.T) {
	c := NewCart([]CartLine{
		{ProductID: 1, Quantity: 0},
		{ProductID: 2, Quantity: 1},
		{ProductID: 2, Quantity: 2},
	})
	require.Len(t, c.Lines, 1)
	assert.Equal(t, 3, c.Lines[0].Quantity)
}

func TestCartLine_UnmarshalLegacyFields(t *testing.T) {
	var lines []CartLine
	raw := `[
		{"id": 1, "nombre": "Prod", "precio": 1000, "qty": 2, "imagen": "/p.png"},
		{"productId": 2, "name": "Other", "unitPrice": 5, "quantity": "3"},
		{"productId": 3, "name": "Bad", "unitPrice": 5, "quantity": "abc"}
	]`
	require.NoError(t, json.Unmarshal([]byte(raw), &lines))

	assert.Equal(t, CartLine{ProductID: 1, Name: "Prod", UnitPrice: 1000, Quantity: 2, ImageRef: "/p.png"}, lines[0])
	assert.Equal(t, 3, lines[1].Quantity)
	assert.Equal(t, 0, lines[2].Quantity)

	encoded, err := json.Marshal(lines[0])
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"quantity":2`)
	assert.NotContains(t, string(encoded), `"qty"`)
}

func TestCart_RoundTrip(t *testing.T) {
	c := NewCart([]CartLine{
		{ProductID: 9, Name: "B", UnitPrice: 10, Quantity: 1, ImageRef: "b.png"},
		{ProductID: 3, Name: "A", UnitPrice: 20, Quantity: 4},
	})

	data, err := json.Marshal(c.Lines)
	require.NoError(t, err)

	var lines []CartLine
	require.NoError(t, json.Unmarshal(data, &lines))

	assert.Equal(t, c, NewCart(lines))
}

func TestCoerceQuantity(t *testing.T) {
	cases := []struct {
		in   any
		want int
	}{
		{nil, 0},
		{3, 3},
		{float64(2.9), 2},
		{"4", 4},
		{" 5 ", 5},
		{"x", 0},
		{-2, 0},
		{json.Number("7"), 7},
		{true, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CoerceQuantity(tc.in), "input %v", tc.in)
	}
}
