package basket

import "slices"

// Codes is the ordered, deduplicated set of coupon codes attached to a
// basket. Codes are opaque and case-sensitive; their business meaning is
// validated elsewhere.
type Codes struct {
	list []string
}

// NewCodes builds a registry from codes, dropping duplicates.
func NewCodes(codes ...string) Codes {
	var c Codes
	for _, code := range codes {
		c.Add(code)
	}
	return c
}

// Add appends code. It returns false if the code was already present.
func (c *Codes) Add(code string) bool {
	if c.Contains(code) {
		return false
	}
	c.list = append(c.list, code)
	return true
}

// Remove drops code. It returns false if the code was not present.
func (c *Codes) Remove(code string) bool {
	i := slices.Index(c.list, code)
	if i < 0 {
		return false
	}
	c.list = slices.Delete(c.list, i, i+1)
	return true
}

// Clear drops all codes. It returns false if there was nothing to drop.
func (c *Codes) Clear() bool {
	if len(c.list) == 0 {
		return false
	}
	c.list = nil
	return true
}

// Contains reports whether code is registered.
func (c Codes) Contains(code string) bool {
	return slices.Contains(c.list, code)
}

// List returns the codes in insertion order.
func (c Codes) List() []string {
	return slices.Clone(c.list)
}

// Len returns the number of registered codes.
func (c Codes) Len() int {
	return len(c.list)
}
