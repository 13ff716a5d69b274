package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalItems(t *testing.T) {
	data := MarshalItems([]OrderItem{{ProductID: "p1", Quantity: 2}, {ProductID: "p2", Quantity: 5}})
	assert.JSONEq(t, `[{"product_id":"p1","quantity":2},{"product_id":"p2","quantity":5}]`, string(data))

	assert.JSONEq(t, `[]`, string(MarshalItems(nil)))
}

func TestUnmarshalItems(t *testing.T) {
	items, err := UnmarshalItems([]byte(`[{"quantity":3,"note":{"a":1},"product_id":"p9"}]`))
	require.NoError(t, err)
	assert.Equal(t, []OrderItem{{ProductID: "p9", Quantity: 3}}, items)

	for _, input := range []string{`{}`, `[{"quantity":"x"}]`, `[`} {
		_, err := UnmarshalItems([]byte(input))
		assert.Error(t, err, input)
	}
}
