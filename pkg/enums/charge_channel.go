package enums

import "fmt"

// ChargeChannel is the channel used to remind a customer to pay.
type ChargeChannel string

const (
	ChargeChannelMessaging ChargeChannel = "messaging"
	ChargeChannelDirect    ChargeChannel = "direct"
)

var validChargeChannels = []ChargeChannel{
	ChargeChannelMessaging,
	ChargeChannelDirect,
}

// String implements fmt.Stringer.
func (c ChargeChannel) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ChargeChannel.
func (c ChargeChannel) IsValid() bool {
	for _, candidate := range validChargeChannels {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseChargeChannel converts raw input into a ChargeChannel.
func ParseChargeChannel(value string) (ChargeChannel, error) {
	for _, candidate := range validChargeChannels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid charge channel %q", value)
}
