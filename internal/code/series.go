package code

import (
	"fmt"
	"strconv"
	"strings"
)

// Series describes one family of human-readable codes such as CID000042.
type Series struct {
	Name   string
	Table  string
	Column string
	Prefix string
	Width  int
}

var (
	Customers = Series{Name: "customers", Table: "customers", Column: "customer_code", Prefix: "CID", Width: 6}
	Products  = Series{Name: "products", Table: "products", Column: "product_code", Prefix: "UID", Width: 6}
	Suppliers = Series{Name: "suppliers", Table: "suppliers", Column: "supplier_code", Prefix: "SID", Width: 6}
	Invoices  = Series{Name: "invoices", Table: "invoices", Column: "invoice_number", Prefix: "INV", Width: 6}
)

var known = map[string]Series{
	Customers.Name: Customers,
	Products.Name:  Products,
	Suppliers.Name: Suppliers,
	Invoices.Name:  Invoices,
}

// Lookup finds a known series by name or prefix, case-insensitively.
func Lookup(name string) (Series, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if s, ok := known[key]; ok {
		return s, true
	}
	for _, s := range known {
		if strings.EqualFold(s.Prefix, key) {
			return s, true
		}
	}
	return Series{}, false
}

// Format renders n with the series prefix, zero padded to Width digits.
// Numbers wider than Width are not truncated.
func (s Series) Format(n int64) string {
	return fmt.Sprintf("%s%0*d", s.Prefix, s.Width, n)
}

// Suffix returns the numeric part of code. Codes that do not carry the
// prefix or whose remainder is not a non-negative integer count as 0.
func (s Series) Suffix(code string) int64 {
	rest, ok := strings.CutPrefix(code, s.Prefix)
	if !ok || rest == "" {
		return 0
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// MaxSuffix returns the highest numeric suffix among codes.
func (s Series) MaxSuffix(codes []string) int64 {
	var max int64
	for _, c := range codes {
		if n := s.Suffix(c); n > max {
			max = n
		}
	}
	return max
}
