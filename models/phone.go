package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Document is a schema-less JSON object. Spec keys depend on what the
// marketplace shows, so stored data is not forced into a struct.
type Document map[string]any

// PhoneRecord is the persisted cache entry for one model name.
type PhoneRecord struct {
	ID        int64     `json:"-"`
	Model     string    `json:"model"`
	Data      Document  `json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ModelKey returns the case-insensitive lookup key for a model name.
func ModelKey(model string) string {
	return strings.ToLower(model)
}

// PriceObservation is one price seen for a model.
type PriceObservation struct {
	Price    *float64 `json:"price"`
	Currency string   `json:"currency"`
	Source   string   `json:"source"`
}

// ParsedPhoneData is the pipeline output for one model.
type ParsedPhoneData struct {
	Model        string             `json:"model"`
	Source       string             `json:"source"`
	Title        string             `json:"title,omitempty"`
	Prices       []PriceObservation `json:"prices"`
	Rating       *float64           `json:"rating"`
	ReviewsCount int                `json:"reviews_count"`
	Specs        map[string]any     `json:"specs"`
	URL          string             `json:"url,omitempty"`
}

// PriceRange summarises numeric price observations.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// ToDocument converts the parsed data into the generic form that is stored
// and returned, so fresh and cached responses have the same shape.
func (p *ParsedPhoneData) ToDocument() (Document, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
