// Package service contains the business logic layer: the session
// controller, the post store, the profile store, and the activity feed.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → owns state, enforces the mutation rules
//	Storage (data layer)     → durable string key-value store
//
// Each service owns its in-memory state exclusively and mirrors it into
// the storage.Store after every mutation — the whole value is re-serialized
// and replaces whatever was there. At startup, each service rehydrates from
// its keys; a missing or unparseable value means "start empty", never a
// fatal error.
//
// The services take a storage.Store interface, not a concrete backend, so
// tests run them against the in-memory store with no database involved.
package service

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/sakif/threadlite/internal/model"
	"github.com/sakif/threadlite/internal/storage"
)

// Profile defaults, used until a login or an explicit edit overrides them.
const (
	defaultUserName = "User"
	defaultUserBio  = "Threads user"
)

// ProfileService owns the viewer's profile scalars: display name, handle,
// bio, avatar, theme flag.
//
// PERSISTENCE SHAPE:
// Unlike the posts collection (one JSON blob), each scalar lives under its
// own key and is loaded independently — an absent key leaves the in-memory
// default alone. All five keys are rewritten as a batch on any change.
//
// The avatar stored here is the single source of truth. The session User
// projects it on read instead of carrying its own persisted copy, so the
// two views can't drift.
type ProfileService struct {
	store  storage.Store
	logger *slog.Logger

	mu      sync.Mutex
	profile model.Profile
}

func NewProfileService(store storage.Store, logger *slog.Logger) *ProfileService {
	return &ProfileService{
		store:  store,
		logger: logger,
		profile: model.Profile{
			UserName:   defaultUserName,
			UserHandle: "@" + defaultUserName,
			UserBio:    defaultUserBio,
			DarkMode:   true,
		},
	}
}

// Load rehydrates the profile from storage. Call once at startup, before
// the first request. Each field falls back to its default independently;
// an empty stored string counts as absent (that's how a cleared avatar is
// represented on disk).
func (s *ProfileService) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	readString := func(key string, dst *string) error {
		value, ok, err := s.store.Get(key)
		if err != nil {
			return err
		}
		if ok && value != "" {
			*dst = value
		}
		return nil
	}

	if err := readString(storage.KeyUserName, &s.profile.UserName); err != nil {
		return fmt.Errorf("service/profile: loading %s: %w", storage.KeyUserName, err)
	}
	if err := readString(storage.KeyUserHandle, &s.profile.UserHandle); err != nil {
		return fmt.Errorf("service/profile: loading %s: %w", storage.KeyUserHandle, err)
	}
	if err := readString(storage.KeyUserBio, &s.profile.UserBio); err != nil {
		return fmt.Errorf("service/profile: loading %s: %w", storage.KeyUserBio, err)
	}

	var avatar string
	if err := readString(storage.KeyProfileImage, &avatar); err != nil {
		return fmt.Errorf("service/profile: loading %s: %w", storage.KeyProfileImage, err)
	}
	if avatar != "" {
		s.profile.ProfileImage = &avatar
	}

	if value, ok, err := s.store.Get(storage.KeyDarkMode); err != nil {
		return fmt.Errorf("service/profile: loading %s: %w", storage.KeyDarkMode, err)
	} else if ok {
		if dark, err := strconv.ParseBool(value); err == nil {
			s.profile.DarkMode = dark
		}
	}

	return nil
}

// Profile returns a copy of the current profile.
func (s *ProfileService) Profile() model.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// Author returns the current display name and handle — the values a new
// post denormalizes at creation time.
func (s *ProfileService) Author() (username, handle string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.UserName, s.profile.UserHandle
}

// Avatar returns the current avatar reference, or nil.
func (s *ProfileService) Avatar() *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.ProfileImage
}

// SetUserName sets the display name only. It does NOT touch the handle —
// handle re-derivation happens only in the UpdateProfile edit flow.
func (s *ProfileService) SetUserName(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile.UserName = name
	return s.persistLocked()
}

func (s *ProfileService) SetUserHandle(handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile.UserHandle = handle
	return s.persistLocked()
}

func (s *ProfileService) SetUserBio(bio string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile.UserBio = bio
	return s.persistLocked()
}

func (s *ProfileService) SetProfileImage(image *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile.ProfileImage = image
	return s.persistLocked()
}

func (s *ProfileService) SetDarkMode(dark bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile.DarkMode = dark
	return s.persistLocked()
}

// UpdateProfile is the profile edit flow: it applies a new name and bio
// together. This is the ONE place the handle is re-derived ("@" + name) —
// setting the name through SetUserName leaves the handle as it was.
func (s *ProfileService) UpdateProfile(name, bio string) (model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if trimmed := strings.TrimSpace(name); trimmed != "" {
		s.profile.UserName = trimmed
		s.profile.UserHandle = "@" + trimmed
	}
	s.profile.UserBio = strings.TrimSpace(bio)

	if err := s.persistLocked(); err != nil {
		return model.Profile{}, err
	}

	s.logger.Info("profile updated",
		slog.String("userName", s.profile.UserName),
		slog.String("userHandle", s.profile.UserHandle),
	)

	return s.profile, nil
}

// AdoptUser pulls the identity of a freshly signed-in user into the
// profile: display name (with derived handle) and, when the provider
// supplied one, the avatar. Called by the session controller after every
// successful projection.
func (s *ProfileService) AdoptUser(user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username != "" {
		s.profile.UserName = user.Username
		s.profile.UserHandle = "@" + user.Username
	}
	if user.ProfileImage != nil {
		s.profile.ProfileImage = user.ProfileImage
	}

	return s.persistLocked()
}

// persistLocked writes all five scalars as a batch. A nil avatar persists
// as the empty string; Load treats empty as absent, closing the loop.
// Caller must hold s.mu.
func (s *ProfileService) persistLocked() error {
	avatar := ""
	if s.profile.ProfileImage != nil {
		avatar = *s.profile.ProfileImage
	}

	writes := []struct{ key, value string }{
		{storage.KeyUserName, s.profile.UserName},
		{storage.KeyUserHandle, s.profile.UserHandle},
		{storage.KeyUserBio, s.profile.UserBio},
		{storage.KeyProfileImage, avatar},
		{storage.KeyDarkMode, strconv.FormatBool(s.profile.DarkMode)},
	}
	for _, w := range writes {
		if err := s.store.Set(w.key, w.value); err != nil {
			return fmt.Errorf("service/profile: persisting %s: %w", w.key, err)
		}
	}
	return nil
}
