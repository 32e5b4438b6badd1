package models

// CartLine is one price in the cart with its quantity.
type CartLine struct {
	Price    Price `json:"price"`
	Quantity int64 `json:"quantity"`
}

// Amount is the line's unit amount times its quantity.
func (l CartLine) Amount() int64 {
	return l.Price.UnitAmount * l.Quantity
}

// Cart keeps at most one line per price id, in the order prices were first
// added. The zero value is an empty cart.
type Cart struct {
	lines []CartLine
}

// Add puts one unit of price in the cart, incrementing an existing line.
func (c *Cart) Add(price Price) {
	if i := c.index(price.ID); i >= 0 {
		c.lines[i].Quantity++
		return
	}
	c.lines = append(c.lines, CartLine{Price: price, Quantity: 1})
}

// Remove drops the line for priceID if present.
func (c *Cart) Remove(priceID string) {
	if i := c.index(priceID); i >= 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
	}
}

// SetQuantity sets the quantity of an existing line. A quantity of zero or
// below removes the line; unknown price ids are ignored.
func (c *Cart) SetQuantity(priceID string, quantity int64) {
	if quantity <= 0 {
		c.Remove(priceID)
		return
	}
	if i := c.index(priceID); i >= 0 {
		c.lines[i].Quantity = quantity
	}
}

// Lines returns a copy of the cart lines.
func (c *Cart) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Quantity returns the quantity held for priceID, zero when absent.
func (c *Cart) Quantity(priceID string) int64 {
	if i := c.index(priceID); i >= 0 {
		return c.lines[i].Quantity
	}
	return 0
}

func (c *Cart) Len() int      { return len(c.lines) }
func (c *Cart) IsEmpty() bool { return len(c.lines) == 0 }

// Total is recomputed from the lines on every call.
func (c *Cart) Total() int64 {
	var total int64
	for _, l := range c.lines {
		total += l.Amount()
	}
	return total
}

// Currency is the first line's currency. Mixed-currency carts are not
// reconciled.
func (c *Cart) Currency() string {
	if len(c.lines) == 0 {
		return ""
	}
	return c.lines[0].Price.Currency
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.lines = nil
}

func (c *Cart) index(priceID string) int {
	for i, l := range c.lines {
		if l.Price.ID == priceID {
			return i
		}
	}
	return -1
}
