// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other
// languages, but without inheritance. Go favours composition over inheritance.
package model

// Comment is a reply attached to a post.
//
// There is exactly one local author in this system, so Username is always the
// viewer's display name at the moment the comment was written. Timestamp is a
// fixed display literal ("just now"), never recomputed into a relative age.
type Comment struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Post is a single entry in the feed, with its nested comments.
//
// The `json:"..."` tags control how the struct serializes — the whole posts
// collection is marshalled to JSON and written to the key-value store after
// every mutation, then read back at startup.
//
// DENORMALIZED AUTHOR FIELDS:
// Username and Handle are copies of the profile's values at creation time.
// They are deliberately NOT updated when the profile changes later — a post
// is an immutable snapshot of who the author was when they posted.
//
// LIKE STATE:
// IsLiked tracks whether the single local viewer has liked the post. Toggling
// it moves Likes by exactly ±1 in lockstep; there is no per-user like set.
type Post struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	Handle        string    `json:"handle"`
	TimePosted    string    `json:"timePosted"` // fixed "just now" literal, set once
	Content       string    `json:"content"`
	Image         *string   `json:"image"` // embedded data URL; nil when the post is text-only
	Likes         int       `json:"likes"`
	Replies       int       `json:"replies"` // always equals len(Comments)
	Reposts       int       `json:"reposts"` // reserved; nothing mutates it yet
	IsVerified    bool      `json:"isVerified"`
	Comments      []Comment `json:"comments"`
	IsLiked       bool      `json:"isLiked"`
	EditTimestamp string    `json:"editTimestamp,omitempty"` // "edited" literal, set on first save-after-edit
}
