package model

// Key is an opaque membership key: a user key, a post identifier, a product
// identifier. Present or absent in a relation; nothing else.
type Key string

// RelationName identifies a named membership relation inside a container.
type RelationName string

// Relation names carried by the built-in stores.
const (
	RelationFollowing     RelationName = "following"
	RelationBlocked       RelationName = "blockedUsers"
	RelationConnections   RelationName = "connections"
	RelationLikedPosts    RelationName = "likedPosts"
	RelationSavedPosts    RelationName = "savedPosts"
	RelationCartProducts  RelationName = "cartProducts"
	RelationSavedProducts RelationName = "savedProducts"
)
