package models

// User is the owning entity a stored file can be bound to. Only the fields
// the file lifecycle engine needs are modeled here; account management
// lives elsewhere.
type User struct {
	ID string
	// AvatarFileKey points at the user's current avatar object, empty if none.
	// A file referenced here is "in use" for the avatar cleanup predicate.
	AvatarFileKey string
}
