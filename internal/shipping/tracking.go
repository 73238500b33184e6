package shipping

import (
	"regexp"
	"strings"
)

var (
	correiosTracking = regexp.MustCompile(`^[A-Z]{2}\d{9}BR$`)
	numericTracking  = regexp.MustCompile(`^\d{8,20}$`)
)

// trackingFields are checked in order. authorization_code is where Jadlog
// puts its real tracking number.
var trackingFields = []string{
	"tracking",
	"tracking_code",
	"tracking_number",
	"authorization_code",
	"self_tracking",
	"codigo_rastreio",
	"objeto",
}

// TrackingFormats is the human description of accepted codes.
const TrackingFormats = "AA123456789BR or 8 to 20 digits"

// IsValidTrackingCode accepts Correios object codes and numeric carrier codes.
// Aggregator order ids (ORD...) are never tracking codes.
func IsValidTrackingCode(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" || strings.HasPrefix(code, "ORD") {
		return false
	}
	return correiosTracking.MatchString(code) || numericTracking.MatchString(code)
}

// ExtractTracking walks one aggregator document looking for a valid code.
func ExtractTracking(doc map[string]any) string {
	if doc == nil {
		return ""
	}
	for _, field := range trackingFields {
		if code, ok := validString(doc[field]); ok {
			return code
		}
	}
	if nested, ok := doc["shipment"].(map[string]any); ok {
		if code := ExtractTracking(nested); code != "" {
			return code
		}
	}
	if code, ok := validString(doc["protocol"]); ok {
		return code
	}
	return ""
}

// ExtractFromTrackingResponse searches the entry keyed by shipmentID before
// falling back to the document root.
func ExtractFromTrackingResponse(resp map[string]any, shipmentID string) string {
	if resp == nil {
		return ""
	}
	if entry, ok := resp[shipmentID].(map[string]any); ok {
		if code := ExtractTracking(entry); code != "" {
			return code
		}
	}
	return ExtractTracking(resp)
}

func validString(value any) (string, bool) {
	s, ok := value.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if !IsValidTrackingCode(s) {
		return "", false
	}
	return s, true
}
