package domain

// CartLine is one distinct product in a cart.
type CartLine struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Image    string  `json:"image"`
	Quantity int     `json:"quantity"`
}

// Cart is an ordered list of lines, at most one per name.
type Cart []CartLine

// ItemCount returns the sum of line quantities.
func (c Cart) ItemCount() int {
	var n int
	for _, l := range c {
		n += l.Quantity
	}
	return n
}

// Total returns the sum of price times quantity.
func (c Cart) Total() float64 {
	var total float64
	for _, l := range c {
		total += l.Price * float64(l.Quantity)
	}
	return total
}

// FindLine returns the index of the line named name, or -1.
func (c Cart) FindLine(name string) int {
	for i := range c {
		if c[i].Name == name {
			return i
		}
	}
	return -1
}

// Add increments the line named name or appends a new line with quantity 1.
// The stored price and image of an existing line are kept.
func (c Cart) Add(name string, price float64, image string) Cart {
	if i := c.FindLine(name); i >= 0 {
		c[i].Quantity++
		return c
	}
	return append(c, CartLine{Name: name, Price: price, Image: image, Quantity: 1})
}

// Remove drops the line named name, keeping the order of the rest.
func (c Cart) Remove(name string) Cart {
	i := c.FindLine(name)
	if i < 0 {
		return c
	}
	return append(c[:i], c[i+1:]...)
}
