package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/threadlite/internal/service"
)

// PostHandler exposes the feed: listing, posting, likes, comments, edits,
// deletion, search, and the derived activity view.
//
// NO-OPS RETURN 200:
// The post store skips invalid mutations (empty content, unknown ids)
// instead of failing them, and the handler mirrors that: a liked post
// that doesn't exist answers 200 with {"updated": false}, not 404. The
// feed screen fires these optimistically and has nothing useful to do
// with an error.
type PostHandler struct {
	posts    *service.PostService
	activity *service.ActivityService
	logger   *slog.Logger
}

func NewPostHandler(posts *service.PostService, activity *service.ActivityService, logger *slog.Logger) *PostHandler {
	return &PostHandler{
		posts:    posts,
		activity: activity,
		logger:   logger,
	}
}

// postID extracts the {id} path parameter. Returns -1 for a malformed id;
// -1 never matches a real post, so the mutation falls through as a no-op.
func postID(r *http.Request) int64 {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return -1
	}
	return id
}

// HandleList returns the whole feed, newest first.
//
// HTTP: GET /api/posts
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.posts.Posts())
}

// HandleCreate publishes a post.
//
// HTTP: POST /api/posts
// BODY: {"content": "...", "image": "data:image/png;base64,..."}
//
// Empty content with no image answers 200 with an empty body — the
// compose box lets you hit Post on a blank draft, and nothing happens.
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string  `json:"content"`
		Image   *string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	post, err := h.posts.Create(req.Content, req.Image)
	if err != nil {
		writeError(w, err)
		return
	}
	if post == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// HandleLike toggles the like on a post.
//
// HTTP: POST /api/posts/{id}/like
func (h *PostHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.Like(postID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if post == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"updated": false})
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleComment adds a comment to a post.
//
// HTTP: POST /api/posts/{id}/comments
// BODY: {"content": "..."}
func (h *PostHandler) HandleComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	post, err := h.posts.Comment(postID(r), req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	if post == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"updated": false})
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleUpdate edits a post's content.
//
// HTTP: PUT /api/posts/{id}
// BODY: {"content": "..."}
//
// The edit runs through the store's begin/draft/save cycle in one request:
// the HTTP surface is stateless, the frontend holds the draft while the
// user types and submits the final text here.
func (h *PostHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	if !h.posts.StartEdit(postID(r)) {
		writeJSON(w, http.StatusOK, map[string]bool{"updated": false})
		return
	}
	h.posts.SetDraftContent(req.Content)
	post, err := h.posts.SaveEdit()
	if err != nil {
		writeError(w, err)
		return
	}
	if post == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"updated": false})
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleDelete removes a post.
//
// HTTP: DELETE /api/posts/{id}
//
// Deleting an unknown id still answers 200 — the post is equally gone
// either way.
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	removed, err := h.posts.Delete(postID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

// HandleSearch filters the feed by a query string.
//
// HTTP: GET /api/search?q=...
//
// A blank query returns an empty list, matching the search screen (no
// results until you type).
func (h *PostHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.posts.Search(r.URL.Query().Get("q")))
}

// HandleActivity returns the activity view derived from the feed.
//
// HTTP: GET /api/activity?filter=all|replies|mentions|verified
func (h *PostHandler) HandleActivity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.activity.Entries(r.URL.Query().Get("filter")))
}
