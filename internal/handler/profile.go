package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/threadlite/internal/imaging"
	"github.com/sakif/threadlite/internal/service"
)

// ProfileHandler exposes the profile: reading it, the edit flow, the
// theme toggle, and avatar upload/removal.
type ProfileHandler struct {
	profiles *service.ProfileService
	logger   *slog.Logger
}

func NewProfileHandler(profiles *service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		logger:   logger,
	}
}

// HandleGet returns the current profile.
//
// HTTP: GET /api/profile
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.profiles.Profile())
}

// HandleUpdate applies the profile edit flow: name and bio together.
// This is the only endpoint that re-derives the handle.
//
// HTTP: PUT /api/profile
// BODY: {"userName": "...", "userBio": "..."}
func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserName string `json:"userName"`
		UserBio  string `json:"userBio"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	profile, err := h.profiles.UpdateProfile(req.UserName, req.UserBio)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// HandleTheme flips the dark-mode preference.
//
// HTTP: PUT /api/profile/theme
// BODY: {"darkMode": true}
func (h *ProfileHandler) HandleTheme(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DarkMode bool `json:"darkMode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	if err := h.profiles.SetDarkMode(req.DarkMode); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.profiles.Profile())
}

// HandleAvatarUpload accepts an image file and sets it as the avatar.
//
// HTTP: POST /api/profile/avatar
// BODY: multipart/form-data with an "image" file field
//
// The image is stored inline as a data URL, the same representation the
// feed uses for post images — there is no separate blob store.
func (h *ProfileHandler) HandleAvatarUpload(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("image")
	if err != nil {
		http.Error(w, `an "image" file field is required`, http.StatusBadRequest)
		return
	}
	defer file.Close()

	dataURL, err := imaging.DataURL(file)
	if err != nil {
		switch {
		case errors.Is(err, imaging.ErrTooLarge):
			http.Error(w, "image exceeds the size limit", http.StatusRequestEntityTooLarge)
		case errors.Is(err, imaging.ErrNotImage):
			http.Error(w, "file is not a recognized image", http.StatusUnsupportedMediaType)
		default:
			h.logger.Error("avatar upload failed", slog.String("error", err.Error()))
			http.Error(w, "upload failed", http.StatusInternalServerError)
		}
		return
	}

	if err := h.profiles.SetProfileImage(&dataURL); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.profiles.Profile())
}

// HandleAvatarRemove clears the avatar.
//
// HTTP: DELETE /api/profile/avatar
func (h *ProfileHandler) HandleAvatarRemove(w http.ResponseWriter, r *http.Request) {
	if err := h.profiles.SetProfileImage(nil); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.profiles.Profile())
}
