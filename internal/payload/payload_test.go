package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inventoryItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	item := inventoryItem{Name: "health_potion", Quantity: 3}

	data, err := Encode(item)
	require.NoError(t, err)

	var got inventoryItem
	require.NoError(t, Decode(data, &got))
	assert.Equal(t, item, got)
}

func TestDecodeEmptyIsNoop(t *testing.T) {
	var got inventoryItem
	require.NoError(t, Decode(nil, &got))
	assert.Equal(t, inventoryItem{}, got)
}
