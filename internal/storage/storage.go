// Package storage defines the persisted key-value store the application
// writes all of its local state into.
//
// The store is deliberately primitive: string keys, string values, no
// transactions, no expiry. Every store (posts, profile, session) serializes
// its whole state into one or more keys after each mutation and reads them
// back at startup. That "replace the whole value" protocol keeps the
// persistence layer trivial at the cost of write amplification — fine at
// the scale of a single person's feed.
//
// WHY AN INTERFACE?
// The services receive a Store, not a concrete backend. Production wiring
// uses the SQLite implementation; tests use the in-memory one. Neither the
// services nor their tests know the difference.
package storage

// Store is a synchronous, durable, string-keyed value store.
//
// Get reports whether the key was present; an absent key is not an error.
// Errors from any method mean the backend itself failed (I/O, corruption),
// never "key not found".
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
}

// Well-known keys. Kept in one place so the stores and the tests agree on
// the layout of the persisted state.
const (
	KeyCurrentUser   = "currentUser"
	KeyPosts         = "userPosts"
	KeyUserName      = "userName"
	KeyUserHandle    = "userHandle"
	KeyUserBio       = "userBio"
	KeyProfileImage  = "profileImage"
	KeyDarkMode      = "darkMode"
	KeySchemaVersion = "schemaVersion"
)

// SchemaVersion is written under KeySchemaVersion the first time a store is
// opened. The persisted format has no version field inside the values
// themselves, so this single key is what a future migration would key off.
const SchemaVersion = "1"
