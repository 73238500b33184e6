package shipping

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/livebag-backend/pkg/types"
)

func TestMissingFieldsNilSnapshot(t *testing.T) {
	assert.Equal(t, RequiredAddressFields, MissingFields(nil))
}

func TestMissingFieldsKeepsDeclarationOrder(t *testing.T) {
	addr := &types.ShippingAddress{
		Name:       "Maria",
		PostalCode: "75110-760",
		Street:     "Rua A",
		Number:     " ",
		City:       "Anápolis",
		State:      "GO",
		Document:   "123.456.789",
	}
	assert.Equal(t, []string{"phone", "number", "neighborhood", "document"}, MissingFields(addr))
}

func TestDocumentChecks(t *testing.T) {
	assert.True(t, IsValidDocument("123.456.789-09"))
	assert.False(t, IsValidDocument("12.345.678/0001-90"))
	assert.True(t, SameDocument("123.456.789-09", "12345678909"))
	assert.False(t, SameDocument("", ""))
	assert.False(t, SameDocument("12345678909", "98765432100"))
}
