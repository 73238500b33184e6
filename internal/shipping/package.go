package shipping

import (
	"math"
	"strconv"

	"github.com/angelmondragon/livebag-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/livebag-backend/pkg/errors"
	"github.com/angelmondragon/livebag-backend/pkg/melhorenvio"
)

const (
	itemWeightKg = 0.3
	itemLengthCm = 30.0
	itemWidthCm  = 20.0
	itemHeightCm = 5.0

	minWeightKg = 0.3
	minLengthCm = 20.0
	minWidthCm  = 15.0
	minHeightCm = 5.0
)

// Parcel is the single volume a bag ships in.
type Parcel struct {
	WeightKg float64
	LengthCm float64
	WidthCm  float64
	HeightCm float64
}

// Volume rounds the parcel the way the aggregator expects: whole centimetres
// up and weight to two decimals.
func (p Parcel) Volume() melhorenvio.Volume {
	return melhorenvio.Volume{
		Height: int(math.Ceil(p.HeightCm)),
		Width:  int(math.Ceil(p.WidthCm)),
		Length: int(math.Ceil(p.LengthCm)),
		Weight: math.Round(p.WeightKg*100) / 100,
	}
}

// ShippableItems drops cancelled and removed lines.
func ShippableItems(items []models.BagItem) []models.BagItem {
	out := make([]models.BagItem, 0, len(items))
	for _, item := range items {
		if item.Status.IsShippable() && item.Quantity > 0 {
			out = append(out, item)
		}
	}
	return out
}

// SizeParcel stacks shippable items: weights and heights add up, length and
// width take the largest item.
func SizeParcel(items []models.BagItem) (Parcel, error) {
	shippable := ShippableItems(items)
	if len(shippable) == 0 {
		return Parcel{}, pkgerrors.New(pkgerrors.CodePreconditionFailed, "no shippable items")
	}

	var p Parcel
	for _, item := range shippable {
		qty := float64(item.Quantity)
		p.WeightKg += valueOr(item.WeightKg, itemWeightKg) * qty
		p.HeightCm += valueOr(item.HeightCm, itemHeightCm) * qty
		p.LengthCm = math.Max(p.LengthCm, valueOr(item.LengthCm, itemLengthCm))
		p.WidthCm = math.Max(p.WidthCm, valueOr(item.WidthCm, itemWidthCm))
	}

	p.WeightKg = math.Max(p.WeightKg, minWeightKg)
	p.LengthCm = math.Max(p.LengthCm, minLengthCm)
	p.WidthCm = math.Max(p.WidthCm, minWidthCm)
	p.HeightCm = math.Max(p.HeightCm, minHeightCm)
	return p, nil
}

func cartProducts(items []models.BagItem) []melhorenvio.Product {
	products := make([]melhorenvio.Product, 0, len(items))
	for i, item := range ShippableItems(items) {
		name := item.Name
		if name == "" {
			name = "Produto " + strconv.Itoa(i+1)
		}
		products = append(products, melhorenvio.Product{
			Name:         name,
			Quantity:     item.Quantity,
			UnitaryValue: item.UnitPrice.Round(2).InexactFloat64(),
		})
	}
	return products
}

func valueOr(value *float64, fallback float64) float64 {
	if value == nil || *value <= 0 {
		return fallback
	}
	return *value
}
