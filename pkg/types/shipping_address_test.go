package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigits(t *testing.T) {
	assert.Equal(t, "12345678909", Digits("123.456.789-09"))
	assert.Equal(t, "01310100", Digits(" 01310-100 "))
	assert.Empty(t, Digits("abc"))
}

func TestShippingAddressNormalized(t *testing.T) {
	addr := ShippingAddress{Name: "  Ana ", State: " sp", City: "São Paulo "}.Normalized()
	assert.Equal(t, "Ana", addr.Name)
	assert.Equal(t, "SP", addr.State)
	assert.Equal(t, "São Paulo", addr.City)
}

func TestShippingAddressColumnValue(t *testing.T) {
	var empty *ShippingAddress
	v, err := empty.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	addr := &ShippingAddress{Name: "Ana", PostalCode: "01310100", State: "SP"}
	v, err = addr.Value()
	require.NoError(t, err)

	var scanned ShippingAddress
	require.NoError(t, scanned.Scan(v))
	assert.Equal(t, *addr, scanned)

	require.NoError(t, scanned.Scan(`{"city":"Recife"}`))
	assert.Equal(t, "Recife", scanned.City)
	assert.Error(t, scanned.Scan(42))
}
