package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/threadlite/internal/imaging"
)

// UploadHandler converts an uploaded image into the inline data-URL form
// the rest of the app passes around. The compose box uploads here first,
// then submits the post with the returned URL as its image.
type UploadHandler struct {
	logger *slog.Logger
}

func NewUploadHandler(logger *slog.Logger) *UploadHandler {
	return &UploadHandler{logger: logger}
}

// HandleImage accepts an image file and returns its data URL.
//
// HTTP: POST /api/uploads
// BODY: multipart/form-data with an "image" file field
// RESPONSE: {"dataUrl": "data:image/png;base64,..."}
func (h *UploadHandler) HandleImage(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("image")
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
			h.logger.Error("image upload failed",
				slog.String("filename", header.Filename),
				slog.String("error", err.Error()),
			)
			http.Error(w, "upload failed", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"dataUrl": dataURL})
}
