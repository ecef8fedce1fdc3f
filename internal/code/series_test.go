package code

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeriesFormat(t *testing.T) {
	assert.Equal(t, "CID000001", Customers.Format(1))
	assert.Equal(t, "UID000042", Products.Format(42))
	assert.Equal(t, "INV1234567", Invoices.Format(1234567))
}

func TestSeriesSuffix(t *testing.T) {
	tests := []struct {
		code string
		want int64
	}{
		{"SID000007", 7},
		{"SID", 0},
		{"SIDabc", 0},
		{"SID-12", 0},
		{"CID000009", 0},
		{"", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Suppliers.Suffix(tt.code), tt.code)
	}
}

func TestSeriesMaxSuffix(t *testing.T) {
	codes := []string{"UID000003", "UID000010", "UIDjunk", "UID000002"}
	assert.Equal(t, int64(10), Products.MaxSuffix(codes))
	assert.Equal(t, int64(0), Products.MaxSuffix(nil))
}

func TestLookup(t *testing.T) {
	s, ok := Lookup("Customers")
	assert.True(t, ok)
	assert.Equal(t, Customers, s)

	s, ok = Lookup("inv")
	assert.True(t, ok)
	assert.Equal(t, Invoices, s)

	_, ok = Lookup("orders")
	assert.False(t, ok)
}
