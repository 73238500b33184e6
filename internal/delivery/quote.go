package delivery

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/livebag-backend/pkg/errors"
	"github.com/angelmondragon/livebag-backend/pkg/logger"
	"github.com/angelmondragon/livebag-backend/pkg/melhorenvio"
	"github.com/angelmondragon/livebag-backend/pkg/types"
)

const (
	quotedServices = "1,2"

	defaultQuoteWeight = 0.5
	defaultQuoteHeight = 10.0
	defaultQuoteWidth  = 20.0
	defaultQuoteLength = 30.0
)

type calculator interface {
	Calculate(ctx context.Context, req melhorenvio.CalculateRequest) ([]melhorenvio.CalculateResult, error)
}

// QuoteRequest describes one package. Zero dimensions fall back to defaults.
type QuoteRequest struct {
	PostalCode string
	Weight     float64
	Height     float64
	Width      float64
	Length     float64
}

type Quote struct {
	ServiceID    int             `json:"service_id"`
	Service      string          `json:"service"`
	Name         string          `json:"name"`
	Company      string          `json:"company"`
	Price        decimal.Decimal `json:"price"`
	DeliveryDays int             `json:"delivery_days"`
}

// QuoteService asks the aggregator for PAC and SEDEX prices so an operator can
// pick a shipping amount. It never writes anything.
type QuoteService struct {
	client     calculator
	originPost string
	logg       *logger.Logger
}

func NewQuoteService(client calculator, originPostalCode string, logg *logger.Logger) (*QuoteService, error) {
	if client == nil {
		return nil, fmt.Errorf("quote calculator required")
	}
	origin := types.Digits(originPostalCode)
	if len(origin) != 8 {
		return nil, fmt.Errorf("origin postal code must have 8 digits")
	}
	return &QuoteService{client: client, originPost: origin, logg: logg}, nil
}

func (s *QuoteService) Quote(ctx context.Context, req QuoteRequest) ([]Quote, error) {
	postal := types.Digits(req.PostalCode)
	if len(postal) != 8 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "postal code must have 8 digits").
			WithDetails(map[string]any{"postal_code": req.PostalCode, "digits": len(postal)})
	}
	if req.Weight < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "weight must be positive")
	}

	pkg := ClampPackage(req)
	results, err := s.client.Calculate(ctx, melhorenvio.CalculateRequest{
		From:     melhorenvio.PostalCode{PostalCode: s.originPost},
		To:       melhorenvio.PostalCode{PostalCode: postal},
		Package:  pkg,
		Services: quotedServices,
	})
	if err != nil {
		return nil, err
	}

	quotes := make([]Quote, 0, len(results))
	failed := 0
	for _, r := range results {
		if strings.TrimSpace(r.Error) != "" {
			failed++
			continue
		}
		quote, ok := toQuote(r)
		if !ok {
			failed++
			continue
		}
		quotes = append(quotes, quote)
	}
	sort.SliceStable(quotes, func(i, j int) bool {
		return quotes[i].Price.LessThan(quotes[j].Price)
	})

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"quotes": len(quotes), "failed_quotes": failed, "postal_code": postal})
		s.logg.Info(logCtx, "delivery.quoted")
	}
	return quotes, nil
}

// ClampPackage applies defaults and the aggregator's accepted ranges.
func ClampPackage(req QuoteRequest) melhorenvio.Package {
	return melhorenvio.Package{
		Height: clamp(orDefault(req.Height, defaultQuoteHeight), 2, 100),
		Width:  clamp(orDefault(req.Width, defaultQuoteWidth), 11, 100),
		Length: clamp(orDefault(req.Length, defaultQuoteLength), 16, 100),
		Weight: clamp(orDefault(req.Weight, defaultQuoteWeight), 0.1, 30),
	}
}

func toQuote(r melhorenvio.CalculateResult) (Quote, bool) {
	raw := r.CustomPrice
	if raw == "" {
		raw = r.Price
	}
	price, err := decimal.NewFromString(raw.String())
	if err != nil || !price.IsPositive() {
		return Quote{}, false
	}

	days, ok := r.CustomDeliveryTime.Int()
	if !ok || days == 0 {
		days, _ = r.DeliveryTime.Int()
	}

	service := "PAC"
	if strings.Contains(strings.ToLower(r.Name), "sedex") {
		service = "SEDEX"
	}
	company := r.Company.Name
	if company == "" {
		company = "Correios"
	}
	return Quote{
		ServiceID:    r.ID,
		Service:      service,
		Name:         r.Name,
		Company:      company,
		Price:        price.Round(2),
		DeliveryDays: days,
	}, true
}

func orDefault(value, fallback float64) float64 {
	if value <= 0 {
		return fallback
	}
	return value
}

func clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
