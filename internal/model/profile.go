package model

// Profile holds the viewer's editable identity and display settings.
//
// Each field is persisted under its own key in the key-value store and
// loaded independently — one missing key never clears another field, it
// just leaves the in-memory default in place.
//
// ProfileImage is the single source of truth for the avatar. The session
// User exposes it as a read projection rather than keeping its own copy,
// so the two can never drift apart.
type Profile struct {
	UserName     string  `json:"userName"`
	UserHandle   string  `json:"userHandle"`
	UserBio      string  `json:"userBio"`
	ProfileImage *string `json:"profileImage"`
	DarkMode     bool    `json:"darkMode"`
}
