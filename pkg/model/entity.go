package model

// Kind identifies the type of an entity held in an ordered list.
type Kind string

const (
	KindCartItem     Kind = "cartItem"
	KindWishlistItem Kind = "wishlistItem"
	KindSocialPost   Kind = "socialPost"
)

// IsValid checks if the kind is a known valid kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindCartItem, KindWishlistItem, KindSocialPost:
		return true
	default:
		return false
	}
}

// IDPrefix returns the local identifier prefix for the kind.
func (k Kind) IDPrefix() string {
	switch k {
	case KindCartItem:
		return "itm"
	case KindWishlistItem:
		return "wsh"
	case KindSocialPost:
		return "pst"
	default:
		return "ent"
	}
}

// CartItem is one line in the cart: a product reference with a quantity.
// ID is local until the remote system assigns a canonical identifier.
type CartItem struct {
	ID            string  `json:"id"`
	ProductID     Key     `json:"productId"`
	Name          string  `json:"name,omitempty"`
	Price         float64 `json:"price"`
	OriginalPrice float64 `json:"originalPrice,omitempty"`
	Quantity      int     `json:"quantity"`
	CreatedAt     int64   `json:"createdAt"` // Unix milliseconds
}

// WishlistItem mirrors a saved product so pages can render price and name
// without a lookup.
type WishlistItem struct {
	ID            string  `json:"id"`
	ProductID     Key     `json:"productId"`
	Name          string  `json:"name,omitempty"`
	Price         float64 `json:"price"`
	OriginalPrice float64 `json:"originalPrice,omitempty"`
	CreatedAt     int64   `json:"createdAt"`
}

// SocialPost is a feed entry authored by a user. Posts are ordered newest
// first in their list.
type SocialPost struct {
	ID        string `json:"id"`
	Author    Key    `json:"author"`
	Body      string `json:"body"`
	ImageURL  string `json:"imageUrl,omitempty"`
	CreatedAt int64  `json:"createdAt"`
}

// CanonicalEntity is the remote system's record of a created entity. Its ID
// replaces the local identifier during reconciliation when the two differ.
type CanonicalEntity struct {
	ID        string `json:"id"`
	Kind      Kind   `json:"kind"`
	CreatedAt int64  `json:"createdAt,omitempty"`
}

// SyncSnapshot carries the fields exchanged by a full resync. The remote
// response replaces these fields wholesale; everything else is untouched.
type SyncSnapshot struct {
	Following  []Key        `json:"following"`
	LikedPosts []Key        `json:"likedPosts"`
	SavedPosts []Key        `json:"savedPosts"`
	Posts      []SocialPost `json:"posts"`
}
