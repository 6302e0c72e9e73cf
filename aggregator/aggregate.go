// Package aggregator derives summary figures from parsed price observations.
package aggregator

import "github.com/use-agent/phoneprice/models"

// PriceRangeKey is the specs key holding the computed PriceRange.
const PriceRangeKey = "price_range"

// Aggregate sets data.Specs["price_range"] from the numeric prices in
// data.Prices. Null prices are ignored; when no numeric price remains the
// key is left absent.
func Aggregate(data *models.ParsedPhoneData) {
	if data == nil {
		return
	}
	pr, ok := PriceRangeOf(data.Prices)
	if !ok {
		return
	}
	if data.Specs == nil {
		data.Specs = make(map[string]any)
	}
	data.Specs[PriceRangeKey] = pr
}

// PriceRangeOf returns min, max and mean of the non-null prices.
func PriceRangeOf(prices []models.PriceObservation) (models.PriceRange, bool) {
	var (
		pr    models.PriceRange
		sum   float64
		count int
	)
	for _, p := range prices {
		if p.Price == nil {
			continue
		}
		v := *p.Price
		if count == 0 || v < pr.Min {
			pr.Min = v
		}
		if count == 0 || v > pr.Max {
			pr.Max = v
		}
		sum += v
		count++
	}
	if count == 0 {
		return models.PriceRange{}, false
	}
	pr.Avg = sum / float64(count)
	return pr, true
}
