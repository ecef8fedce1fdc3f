package dto

type ProductFilters struct {
	SearchQuery string // name, sku or product code
	MaxStock    *int   // low-stock view: cached on-hand at or below this
	SortBy      string // name, price, stock, created_at
	SortOrder   string // asc, desc
	Page        int
	PageSize    int
}
