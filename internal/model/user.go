package model

// User is the session-local projection of an identity-provider account.
//
// It is created fresh on every successful login or registration and stored
// as the single "currentUser" record. It is NOT a stable account record:
// the ID is assigned at projection time (milliseconds since epoch, with a
// monotonic guard), so it changes every session. Anything that must survive
// across sessions belongs in the profile record, not here.
//
// WHY int64 FOR ID?
// Millisecond timestamps are already around 1.7e12 — far past int32 range.
// int64 holds them comfortably and survives a JSON round-trip intact.
type User struct {
	ID           int64   `json:"id"`
	Username     string  `json:"username"`
	Email        string  `json:"email"`
	ProfileImage *string `json:"profileImage"` // data URL or external URL; nil when unset
}
