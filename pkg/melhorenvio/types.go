package melhorenvio

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Party is the sender or recipient block of a cart request.
type Party struct {
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	Email           string `json:"email"`
	Document        string `json:"document"`
	CompanyDocument string `json:"company_document"`
	StateRegister   string `json:"state_register"`
	Address         string `json:"address"`
	Complement      string `json:"complement"`
	Number          string `json:"number"`
	District        string `json:"district"`
	City            string `json:"city"`
	StateAbbr       string `json:"state_abbr,omitempty"`
	CountryID       string `json:"country_id"`
	PostalCode      string `json:"postal_code"`
	Note            string `json:"note"`
}

type Product struct {
	Name         string  `json:"name"`
	Quantity     int     `json:"quantity"`
	UnitaryValue float64 `json:"unitary_value"`
}

type Volume struct {
	Height int     `json:"height"`
	Width  int     `json:"width"`
	Length int     `json:"length"`
	Weight float64 `json:"weight"`
}

type Invoice struct {
	Key string `json:"key"`
}

type Tag struct {
	Tag string `json:"tag"`
	URL string `json:"url"`
}

type Options struct {
	InsuranceValue float64 `json:"insurance_value"`
	Receipt        bool    `json:"receipt"`
	OwnHand        bool    `json:"own_hand"`
	Reverse        bool    `json:"reverse"`
	NonCommercial  bool    `json:"non_commercial"`
	Invoice        Invoice `json:"invoice"`
	Platform       string  `json:"platform"`
	Tags           []Tag   `json:"tags"`
}

// CartRequest is the body of POST /me/cart.
type CartRequest struct {
	Service  int       `json:"service"`
	Agency   *int      `json:"agency"`
	From     Party     `json:"from"`
	To       Party     `json:"to"`
	Products []Product `json:"products"`
	Volumes  []Volume  `json:"volumes"`
	Options  Options   `json:"options"`
}

type PostalCode struct {
	PostalCode string `json:"postal_code"`
}

type Package struct {
	Height float64 `json:"height"`
	Width  float64 `json:"width"`
	Length float64 `json:"length"`
	Weight float64 `json:"weight"`
}

// CalculateRequest is the body of POST /me/shipment/calculate.
type CalculateRequest struct {
	From     PostalCode `json:"from"`
	To       PostalCode `json:"to"`
	Package  Package    `json:"package"`
	Services string     `json:"services"`
}

type Company struct {
	Name string `json:"name"`
}

// CalculateResult is one quoted service. Failed services carry Error.
type CalculateResult struct {
	ID                 int       `json:"id"`
	Name               string    `json:"name"`
	Price              FlexValue `json:"price"`
	CustomPrice        FlexValue `json:"custom_price"`
	DeliveryTime       FlexValue `json:"delivery_time"`
	CustomDeliveryTime FlexValue `json:"custom_delivery_time"`
	Error              string    `json:"error"`
	Company            Company   `json:"company"`
}

// FlexValue accepts a JSON string or number. The aggregator returns both
// depending on the service.
type FlexValue string

func (f *FlexValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexValue(strings.TrimSpace(s))
		return nil
	}
	*f = FlexValue(trimmed)
	return nil
}

func (f FlexValue) String() string { return string(f) }

// Int parses the value as an integer, truncating decimals.
func (f FlexValue) Int() (int, bool) {
	if f == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(string(f), 64)
	if err != nil {
		return 0, false
	}
	return int(v), true
}
