package bags

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/livebag-backend/internal/charges"
	"github.com/angelmondragon/livebag-backend/internal/delivery"
	"github.com/angelmondragon/livebag-backend/internal/lifecycle"
	"github.com/angelmondragon/livebag-backend/internal/shipping"
	"github.com/angelmondragon/livebag-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/livebag-backend/pkg/errors"
	"github.com/angelmondragon/livebag-backend/pkg/pagination"
	"github.com/angelmondragon/livebag-backend/pkg/types"
)

// urgentScanLimit bounds how many rows one urgent_only page may inspect.
const urgentScanLimit = 500

func (s *Service) GetBag(ctx context.Context, bagID uuid.UUID) (BagDetail, error) {
	bag, err := loadBag(ctx, s.repo, bagID)
	if err != nil {
		return BagDetail{}, err
	}
	now := s.now().UTC()
	method := bag.Method()
	return BagDetail{
		Bag:                ViewOf(bag),
		Items:              itemViews(bag.Items),
		Urgency:            charges.Assess(bag, now),
		NeedsCharge:        charges.NeedsCharge(bag, now),
		DeliveryConfigured: s.gate.IsConfigured(method, bag.ShippingAmount),
		NextStates:         lifecycle.NextStates(bag.OperationalStatus, method),
		PreviousStates:     lifecycle.PreviousStates(bag.OperationalStatus, method),
	}, nil
}

// ListBags pages bags newest first. Urgency depends on the clock, so
// urgent_only filters in memory and keeps scanning until the page is full.
func (s *Service) ListBags(ctx context.Context, filters ListFilters, params pagination.Params) (pagination.Page[BagSummary], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[BagSummary]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	now := s.now().UTC()

	var (
		kept      []models.Bag
		last      *models.Bag
		exhausted bool
		scanned   int
	)
	for {
		rows, err := s.repo.ListBags(ctx, filters, cursor, limit, now)
		if err != nil {
			return pagination.Page[BagSummary]{}, dbError(err, "list bags")
		}
		exhausted = len(rows) < pagination.LimitWithBuffer(limit)
		for i := range rows {
			if !filters.UrgentOnly || charges.Assess(&rows[i], now).IsUrgent {
				kept = append(kept, rows[i])
			}
		}
		if len(rows) > 0 {
			last = &rows[len(rows)-1]
			cursor = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
		}
		scanned += len(rows)
		if !filters.UrgentOnly || len(kept) > limit || exhausted || scanned >= urgentScanLimit {
			break
		}
	}

	page := pagination.Trim(kept, limit, bagCursor)
	if filters.UrgentOnly && page.NextCursor == "" && !exhausted && last != nil {
		page.NextCursor = pagination.EncodeCursor(bagCursor(*last))
	}

	out := pagination.Page[BagSummary]{
		Items:      make([]BagSummary, 0, len(page.Items)),
		NextCursor: page.NextCursor,
	}
	for i := range page.Items {
		out.Items = append(out.Items, summarize(&page.Items[i], now))
	}
	return out, nil
}

// History returns the status audit trail, newest first.
func (s *Service) History(ctx context.Context, bagID uuid.UUID) ([]HistoryEntry, error) {
	if _, err := loadBag(ctx, s.repo, bagID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListHistory(ctx, bagID)
	if err != nil {
		return nil, dbError(err, "list history")
	}
	return historyEntries(rows), nil
}

// Quote prices carrier options for the bag's postal code and parcel.
func (s *Service) Quote(ctx context.Context, bagID uuid.UUID) ([]delivery.Quote, error) {
	if s.quotes == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "shipping quotes not configured")
	}
	bag, err := loadBag(ctx, s.repo, bagID)
	if err != nil {
		return nil, err
	}
	if bag.ShippingAddress == nil || types.Digits(bag.ShippingAddress.PostalCode) == "" {
		return nil, pkgerrors.New(pkgerrors.CodePreconditionFailed, "bag has no postal code")
	}
	parcel, err := shipping.SizeParcel(bag.Items)
	if err != nil {
		return nil, err
	}
	return s.quotes.Quote(ctx, delivery.QuoteRequest{
		PostalCode: bag.ShippingAddress.PostalCode,
		Weight:     parcel.WeightKg,
		Height:     parcel.HeightCm,
		Width:      parcel.WidthCm,
		Length:     parcel.LengthCm,
	})
}

func bagCursor(bag models.Bag) pagination.Cursor {
	return pagination.Cursor{CreatedAt: bag.CreatedAt, ID: bag.ID}
}
