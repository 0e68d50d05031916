package domain

import "time"

// Product is a catalog row. The catalog service owns everything except
// Rating and NumReviews, which are maintained from reviews here.
type Product struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Image        string    `json:"image"`
	Brand        string    `json:"brand"`
	Price        int64     `json:"price"`
	CountInStock int       `json:"count_in_stock"`
	Rating       float64   `json:"rating"`
	NumReviews   int       `json:"num_reviews"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// InStock reports whether qty units are available.
func (p *Product) InStock(qty int) bool {
	return qty <= p.CountInStock
}
