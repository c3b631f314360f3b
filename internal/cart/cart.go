// Package cart implements the shopping cart reducer and its Redis-backed
// server store.
package cart

import "time"

// Line is one product in the cart.
type Line struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	ImageURL  string  `json:"image_url,omitempty"`
}

// Subtotal is price times quantity.
func (l Line) Subtotal() float64 {
	return l.Price * float64(l.Quantity)
}

// Cart is an ordered list of lines, at most one per product.
type Cart struct {
	ID        string    `json:"id"`
	Lines     []Line    `json:"lines"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Add puts a product in the cart. Adding a product already present bumps
// its quantity; a quantity below one counts as one.
func (c *Cart) Add(line Line) {
	if line.Quantity < 1 {
		line.Quantity = 1
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == line.ProductID {
			c.Lines[i].Quantity += line.Quantity
			c.touch()
			return
		}
	}
	c.Lines = append(c.Lines, line)
	c.touch()
}

// Remove drops a product from the cart. It reports whether it was present.
func (c *Cart) Remove(productID string) bool {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			c.touch()
			return true
		}
	}
	return false
}

// SetQuantity overwrites a line quantity. Quantities below one remove the
// line. It reports whether the product was present.
func (c *Cart) SetQuantity(productID string, quantity int) bool {
	if quantity < 1 {
		return c.Remove(productID)
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines[i].Quantity = quantity
			c.touch()
			return true
		}
	}
	return false
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Lines = nil
	c.touch()
}

// Total sums every line subtotal.
func (c *Cart) Total() float64 {
	var total float64
	for _, l := range c.Lines {
		total += l.Subtotal()
	}
	return total
}

// Count is the number of units across all lines.
func (c *Cart) Count() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

func (c *Cart) touch() {
	c.UpdatedAt = time.Now().UTC()
}
