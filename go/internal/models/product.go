package models

import "time"

// Product is the price state of a drop item as held by the record store.
type Product struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	ImageURL     string     `json:"image_url,omitempty"`
	InitialPrice float64    `json:"initial_price"`
	CurrentPrice float64    `json:"current_price"`
	MinimumPrice float64    `json:"minimum_price"`
	DropTime     *time.Time `json:"drop_time,omitempty"` // nil means no temporal restriction
	UpdatedAt    time.Time  `json:"updated_at"`
}

// AtMinimum reports whether the price can no longer be pushed down.
func (p *Product) AtMinimum() bool {
	return p.CurrentPrice <= p.MinimumPrice
}

// ProductSummary is a product together with its exact share count.
type ProductSummary struct {
	Product
	TotalShares int64 `json:"total_shares"`
}

// PriceUpdate is the committed result of a share event, fanned out to viewers.
type PriceUpdate struct {
	ItemID      string  `json:"item_id"`
	NewPrice    float64 `json:"new_price"`
	TotalShares *int64  `json:"total_shares,omitempty"`
}
