package aggregator

import (
	"testing"

	"github.com/use-agent/phoneprice/models"
)

func obs(prices ...*float64) []models.PriceObservation {
	out := make([]models.PriceObservation, len(prices))
	for i, p := range prices {
		out[i] = models.PriceObservation{Price: p, Currency: "RUB", Source: "Yandex Market"}
	}
	return out
}

func f(v float64) *float64 { return &v }

func TestAggregate(t *testing.T) {
	tests := []struct {
		name   string
		prices []models.PriceObservation
		want   *models.PriceRange
	}{
		{"three prices", obs(f(100), f(200), f(300)), &models.PriceRange{Min: 100, Max: 300, Avg: 200}},
		{"single price", obs(f(12345)), &models.PriceRange{Min: 12345, Max: 12345, Avg: 12345}},
		{"nulls ignored", obs(nil, f(50), nil, f(150)), &models.PriceRange{Min: 50, Max: 150, Avg: 100}},
		{"all null", obs(nil, nil), nil},
		{"no observations", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := &models.ParsedPhoneData{Prices: tt.prices, Specs: map[string]any{"RAM": "8GB"}}
			Aggregate(data)

			got, ok := data.Specs[PriceRangeKey]
			if tt.want == nil {
				if ok {
					t.Errorf("price_range = %v; want absent", got)
				}
				return
			}
			pr, isRange := got.(models.PriceRange)
			if !isRange {
				t.Fatalf("price_range has type %T", got)
			}
			if pr != *tt.want {
				t.Errorf("price_range = %+v; want %+v", pr, *tt.want)
			}
			if data.Specs["RAM"] != "8GB" {
				t.Error("existing specs must be kept")
			}
		})
	}
}

func TestAggregate_NilSpecs(t *testing.T) {
	data := &models.ParsedPhoneData{Prices: obs(f(10))}
	Aggregate(data)
	if _, ok := data.Specs[PriceRangeKey]; !ok {
		t.Error("expected price_range to be set on a nil specs map")
	}
}
