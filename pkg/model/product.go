package model

// Product carries the catalog fields the cart and wishlist stores copy into
// their entities. The catalog itself lives outside this system; stores treat
// these values as caller-supplied truth.
type Product struct {
	ID            Key
	Name          string
	Price         float64
	OriginalPrice float64
}
