package domain

import "time"

// ProductCategory groups products in the catalogue and drives fitting slot seeding.
type ProductCategory string

const (
	CategoryTop       ProductCategory = "top"
	CategoryOuter     ProductCategory = "outer"
	CategoryDress     ProductCategory = "dress"
	CategoryBottom    ProductCategory = "bottom"
	CategoryShoes     ProductCategory = "shoes"
	CategoryAccessory ProductCategory = "accessory"
)

// Product is a catalogue entry.
type Product struct {
	ID          string
	Title       string
	Brand       string
	Category    ProductCategory
	Description string // markdown
	PriceWon    int64
	ImageURL    string
	Stock       int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProductFilter narrows a catalogue listing.
type ProductFilter struct {
	Category ProductCategory
	Query    string
	Page     Page
}

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 50
)

// NormalizePage clamps a page request to the supported bounds.
func NormalizePage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

// Offset returns the row offset of the page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// PageResult carries one page of items and the total count.
type PageResult[T any] struct {
	Items []T
	Total int
	Page  Page
}

// TotalPages is the number of pages for the result's total.
func (r PageResult[T]) TotalPages() int {
	if r.Page.Size <= 0 {
		return 0
	}
	return (r.Total + r.Page.Size - 1) / r.Page.Size
}
