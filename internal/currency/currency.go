// Package currency holds the supported-currency catalog. The catalog is
// injected wherever currencies are validated so tests can substitute their
// own set.
package currency

import "strings"

// Catalog is a fixed set of supported currency codes.
// The set is immutable after construction.
type Catalog struct {
	codes   []string
	members map[string]bool
}

// NewCatalog builds a catalog from currency codes. Codes are upper-cased
// and de-duplicated, preserving first-seen order.
func NewCatalog(codes ...string) *Catalog {
	c := &Catalog{members: make(map[string]bool, len(codes))}
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" || c.members[code] {
			continue
		}
		c.members[code] = true
		c.codes = append(c.codes, code)
	}
	return c
}

// Supported reports whether the code is in the catalog.
func (c *Catalog) Supported(code string) bool {
	return c.members[strings.ToUpper(code)]
}

// Codes returns the catalog codes in declaration order.
func (c *Catalog) Codes() []string {
	out := make([]string, len(c.codes))
	copy(out, c.codes)
	return out
}

// Len returns the number of currencies in the catalog.
func (c *Catalog) Len() int {
	return len(c.codes)
}
