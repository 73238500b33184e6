package shipping

import (
	"strings"

	"github.com/angelmondragon/livebag-backend/pkg/types"
)

const documentDigits = 11

// RequiredAddressFields lists snapshot fields a label cannot be bought without.
var RequiredAddressFields = []string{
	"name",
	"phone",
	"postal_code",
	"street",
	"number",
	"neighborhood",
	"city",
	"state",
	"document",
}

// SanitizeDocument strips formatting from a CPF.
func SanitizeDocument(document string) string {
	return types.Digits(document)
}

// IsValidDocument requires exactly 11 digits after sanitising.
func IsValidDocument(document string) bool {
	return len(SanitizeDocument(document)) == documentDigits
}

// MissingFields returns required fields that are blank, in declaration order.
// A nil snapshot is missing everything.
func MissingFields(addr *types.ShippingAddress) []string {
	if addr == nil {
		return append([]string(nil), RequiredAddressFields...)
	}
	values := map[string]string{
		"name":         addr.Name,
		"phone":        addr.Phone,
		"postal_code":  addr.PostalCode,
		"street":       addr.Street,
		"number":       addr.Number,
		"neighborhood": addr.Neighborhood,
		"city":         addr.City,
		"state":        addr.State,
	}

	var missing []string
	for _, field := range RequiredAddressFields {
		if field == "document" {
			if !IsValidDocument(addr.Document) {
				missing = append(missing, field)
			}
			continue
		}
		if strings.TrimSpace(values[field]) == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

// SameDocument reports whether sender and recipient share a CPF.
func SameDocument(sender, recipient string) bool {
	s := SanitizeDocument(sender)
	return s != "" && s == SanitizeDocument(recipient)
}
