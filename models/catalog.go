package models

// Product is a catalog product on a connected account.
type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Images      []string `json:"images,omitempty"`
	Active      bool     `json:"active"`
}

// Price is a sellable catalog entry. UnitAmount is in minor currency units.
type Price struct {
	ID         string   `json:"id"`
	UnitAmount int64    `json:"unit_amount"`
	Currency   string   `json:"currency"`
	Product    *Product `json:"product"`
}

// Catalog is the body returned by the relay's products endpoint. Prices stays
// nil when the field is absent from the wire; an empty list decodes non-nil.
type Catalog struct {
	Products []Product `json:"products"`
	Prices   []Price   `json:"prices"`
}

// ActivePrices returns the prices whose embedded product is present and active.
func ActivePrices(prices []Price) []Price {
	active := make([]Price, 0, len(prices))
	for _, p := range prices {
		if p.Product != nil && p.Product.Active {
			active = append(active, p)
		}
	}
	return active
}

// FindPrice looks a price up by id.
func (c *Catalog) FindPrice(id string) (Price, bool) {
	for _, p := range c.Prices {
		if p.ID == id {
			return p, true
		}
	}
	return Price{}, false
}
