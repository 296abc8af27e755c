package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_RoundTrip(t *testing.T) {
	c := Cart{
		itemOf(trail, 1),
		itemOf(sneaker, 3),
		{ID: 9, Title: `Quote "and" \ backslash`, Price: decimal.RequireFromString("0.01"), Image: "", Amount: 12},
	}

	got, err := Unmarshal(Marshal(c))
	require.NoError(t, err)
	requireCartEqual(t, c, got)
}

func TestMarshal_Empty(t *testing.T) {
	assert.Equal(t, "[]", string(Marshal(Cart{})))
	assert.Equal(t, "[]", string(Marshal(nil)))

	got, err := Unmarshal([]byte("[]"))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestMarshal_Format(t *testing.T) {
	c := Cart{{ID: 1, Title: "Shoe", Price: decimal.RequireFromString("179.9"), Image: "a.jpg", Amount: 2}}

	assert.Equal(t,
		`[{"id":1,"title":"Shoe","price":179.9,"image":"a.jpg","amount":2}]`,
		string(Marshal(c)),
	)
}

func TestUnmarshal_AcceptsStoredVariants(t *testing.T) {
	data := `[
		{"id": 2, "title": "Runner", "price": "139.90", "image": "r.jpg", "amount": 1, "extra": {"nested": [1, 2]}},
		{"amount": 4, "id": 1, "price": 1.799e2, "title": "Shoe", "image": "s.jpg"}
	]`

	got, err := Unmarshal([]byte(data))
	require.NoError(t, err)
	requireCartEqual(t, Cart{
		{ID: 2, Title: "Runner", Price: decimal.RequireFromString("139.9"), Image: "r.jpg", Amount: 1},
		{ID: 1, Title: "Shoe", Price: decimal.RequireFromString("179.9"), Image: "s.jpg", Amount: 4},
	}, got)
}

func TestUnmarshal_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: ""},
		{name: "null", data: "null"},
		{name: "object", data: `{"id":1,"amount":1}`},
		{name: "missing id", data: `[{"amount":1}]`},
		{name: "missing amount", data: `[{"id":1}]`},
		{name: "zero amount", data: `[{"id":1,"amount":0}]`},
		{name: "negative amount", data: `[{"id":1,"amount":-2}]`},
		{name: "fractional id", data: `[{"id":1.5,"amount":1}]`},
		{name: "bad price", data: `[{"id":1,"amount":1,"price":"cheap"}]`},
		{name: "duplicate id", data: `[{"id":1,"amount":1},{"id":1,"amount":1}]`},
		{name: "trailing data", data: `[] []`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.data))
			require.Error(t, err)
		})
	}
}

func TestCart_Totals(t *testing.T) {
	c := Cart{itemOf(sneaker, 2), itemOf(runner, 1)}

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 3, c.Units())
	assert.True(t, decimal.RequireFromString("499.70").Equal(c.Total()))
}
