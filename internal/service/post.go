package service

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sakif/threadlite/internal/model"
	"github.com/sakif/threadlite/internal/storage"
)

// Display literals for timestamps. The source product never recomputes
// relative ages — a post says "just now" forever, and an edited post says
// "edited" forever. Preserved as-is.
const (
	timePostedLiteral = "just now"
	editedLiteral     = "edited"
)

// PostService owns the ordered collection of posts (newest first) with
// their nested comments, plus the transient edit-session state.
//
// MUTATION PROTOCOL:
// Every operation takes the lock, applies the change to the in-memory
// slice, and re-serializes the ENTIRE collection into the "userPosts" key
// before releasing the lock. Two commands can therefore never interleave a
// read-modify-write, and what's on disk is always some prefix of the
// command history.
//
// PERMISSIVE BY DESIGN:
// Invalid input — empty content with no image, an unknown post id, an
// empty comment — skips the mutation silently instead of returning an
// error. Callers that need "did anything happen" check the returned post
// for nil. This mirrors the product's behaviour and is deliberate; don't
// add failure signals here.
type PostService struct {
	store    storage.Store
	profiles *ProfileService
	logger   *slog.Logger

	mu      sync.Mutex
	posts   []model.Post
	lastID  int64
	editing *editSession // nil == no edit in progress

	// now is swappable so tests can force id collisions
	now func() time.Time
}

// editSession is the Editing state of the edit state machine. It captures
// the target post and drafts seeded from it; the post itself is untouched
// until SaveEdit.
type editSession struct {
	postID       int64
	draftContent string
	draftImage   *string
}

func NewPostService(store storage.Store, profiles *ProfileService, logger *slog.Logger) *PostService {
	return &PostService{
		store:    store,
		profiles: profiles,
		logger:   logger,
		posts:    []model.Post{},
		now:      time.Now,
	}
}

// Load rehydrates the collection from storage. A missing key or a value
// that doesn't parse yields an empty collection with a warning — losing
// the feed beats refusing to start.
func (s *PostService) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.store.Get(storage.KeyPosts)
	if err != nil {
		return fmt.Errorf("service/post: reading posts: %w", err)
	}
	if !ok {
		return nil
	}

	var posts []model.Post
	if err := json.Unmarshal([]byte(raw), &posts); err != nil {
		s.logger.Warn("stored posts are unparseable, starting with an empty feed",
			slog.String("error", err.Error()),
		)
		return nil
	}

	s.posts = posts

	// Seed the id counter past every id we've ever handed out, so ids
	// stay unique across restarts. Comments draw from the same counter.
	for _, p := range posts {
		if p.ID > s.lastID {
			s.lastID = p.ID
		}
		for _, c := range p.Comments {
			if c.ID > s.lastID {
				s.lastID = c.ID
			}
		}
	}

	return nil
}

// Posts returns a copy of the collection, newest first.
func (s *PostService) Posts() []model.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clonePosts(s.posts)
}

// Get returns a copy of one post by id.
func (s *PostService) Get(id int64) (model.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.posts {
		if s.posts[i].ID == id {
			return clonePost(s.posts[i]), true
		}
	}
	return model.Post{}, false
}

// Create prepends a new post and persists.
//
// No-op (nil, nil) when the trimmed content is empty AND there's no image
// — a whitespace-only post with no picture is nothing. Content with an
// image may be empty; content itself is stored as given, not trimmed.
// The author fields are denormalized from the profile at this moment and
// never updated afterwards.
func (s *PostService) Create(content string, image *string) (*model.Post, error) {
	if strings.TrimSpace(content) == "" && image == nil {
		return nil, nil
	}

	username, handle := s.profiles.Author()

	s.mu.Lock()
	defer s.mu.Unlock()

	post := model.Post{
		ID:         s.nextIDLocked(),
		Username:   username,
		Handle:     handle,
		TimePosted: timePostedLiteral,
		Content:    content,
		Image:      image,
		Comments:   []model.Comment{},
	}

	// Prepend: the feed is newest-first by CREATION ORDER, not by
	// timestamp value — the monotonic id guard makes the two agree even
	// when two posts land in the same millisecond.
	s.posts = append([]model.Post{post}, s.posts...)

	if err := s.persistLocked(); err != nil {
		return nil, err
	}

	s.logger.Info("post created",
		slog.Int64("postID", post.ID),
		slog.Bool("hasImage", image != nil),
	)

	created := clonePost(post)
	return &created, nil
}

// Like toggles the viewer's like on a post; likes moves ±1 in lockstep
// with the flag, so toggling twice is a perfect round trip. Unknown id is
// a silent no-op. Returns a copy of the updated post, or nil.
func (s *PostService) Like(postID int64) (*model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated *model.Post
	for i := range s.posts {
		if s.posts[i].ID == postID {
			if s.posts[i].IsLiked {
				s.posts[i].Likes--
			} else {
				s.posts[i].Likes++
			}
			s.posts[i].IsLiked = !s.posts[i].IsLiked
			p := clonePost(s.posts[i])
			updated = &p
			break
		}
	}

	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	return updated, nil
}

// Comment appends a comment to a post and bumps its reply counter, keeping
// replies == len(comments). Empty trimmed content is a no-op before any
// state is touched; an unknown post id falls through without mutating.
func (s *PostService) Comment(postID int64, content string) (*model.Post, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	username, _ := s.profiles.Author()

	s.mu.Lock()
	defer s.mu.Unlock()

	var updated *model.Post
	for i := range s.posts {
		if s.posts[i].ID == postID {
			comment := model.Comment{
				ID:        s.nextIDLocked(),
				Username:  username,
				Content:   content,
				Timestamp: timePostedLiteral,
			}
			s.posts[i].Comments = append(s.posts[i].Comments, comment)
			s.posts[i].Replies++
			p := clonePost(s.posts[i])
			updated = &p
			break
		}
	}

	if err := s.persistLocked(); err != nil {
		return nil, err
	}

	if updated != nil {
		s.logger.Info("comment added",
			slog.Int64("postID", postID),
			slog.Int("replies", updated.Replies),
		)
	}
	return updated, nil
}

// Delete removes a post by id. Unknown id leaves the collection untouched.
// Returns whether a post was removed.
func (s *PostService) Delete(postID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.posts[:0]
	removed := false
	for _, p := range s.posts {
		if p.ID == postID {
			removed = true
			continue
		}
		kept = append(kept, p)
	}
	s.posts = kept

	if err := s.persistLocked(); err != nil {
		return false, err
	}

	if removed {
		s.logger.Info("post deleted", slog.Int64("postID", postID))
	}
	return removed, nil
}

// StartEdit moves the edit state machine from Idle to Editing, seeding the
// drafts from the post's current content and image. Returns false (staying
// Idle) when the id doesn't match any post. Starting an edit while another
// is in progress replaces it — same as opening the edit dialog on a
// different post.
func (s *PostService) StartEdit(postID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.posts {
		if s.posts[i].ID == postID {
			s.editing = &editSession{
				postID:       postID,
				draftContent: s.posts[i].Content,
				draftImage:   s.posts[i].Image,
			}
			return true
		}
	}
	return false
}

// SetDraftContent replaces the draft text. No-op while Idle.
func (s *PostService) SetDraftContent(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editing != nil {
		s.editing.draftContent = content
	}
}

// SetDraftImage replaces the draft image. No-op while Idle. Note that
// SaveEdit does not commit the image — see the comment there.
func (s *PostService) SetDraftImage(image *string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editing != nil {
		s.editing.draftImage = image
	}
}

// Draft returns the in-progress edit state; editing is false when Idle.
func (s *PostService) Draft() (content string, image *string, editing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editing == nil {
		return "", nil, false
	}
	return s.editing.draftContent, s.editing.draftImage, true
}

// SaveEdit commits the draft content (trimmed) onto the target post,
// stamps the "edited" literal, and returns to Idle. Called while Idle it's
// a no-op returning (nil, nil). If the target post was deleted mid-edit,
// the draft is discarded and nothing mutates.
//
// The draft IMAGE is deliberately not written back: the product's save
// path froze the image at edit time even though the edit dialog showed an
// image field. Kept byte-compatible with that behaviour.
func (s *PostService) SaveEdit() (*model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.editing == nil {
		return nil, nil
	}

	edit := s.editing
	s.editing = nil

	var updated *model.Post
	for i := range s.posts {
		if s.posts[i].ID == edit.postID {
			s.posts[i].Content = strings.TrimSpace(edit.draftContent)
			s.posts[i].EditTimestamp = editedLiteral
			p := clonePost(s.posts[i])
			updated = &p
			break
		}
	}

	if err := s.persistLocked(); err != nil {
		return nil, err
	}

	if updated != nil {
		s.logger.Info("post edited", slog.Int64("postID", updated.ID))
	}
	return updated, nil
}

// CancelEdit discards the draft without touching the post. No-op while Idle.
func (s *PostService) CancelEdit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editing = nil
}

// Search returns posts whose content or author name contains the query,
// case-insensitively. A blank query returns nothing (matching the search
// screen, which shows no results until you type).
func (s *PostService) Search(query string) []model.Post {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []model.Post{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	matches := []model.Post{}
	for _, p := range s.posts {
		if strings.Contains(strings.ToLower(p.Content), query) ||
			strings.Contains(strings.ToLower(p.Username), query) {
			matches = append(matches, clonePost(p))
		}
	}
	return matches
}

// nextIDLocked hands out the next identifier: wall-clock milliseconds with
// a monotonic guard. Two calls inside the same millisecond get consecutive
// ids instead of colliding — the tie-break is creation order, which is
// exactly the order the feed displays. Caller must hold s.mu.
func (s *PostService) nextIDLocked() int64 {
	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

// persistLocked serializes the whole collection over the previous value.
// Caller must hold s.mu.
func (s *PostService) persistLocked() error {
	raw, err := json.Marshal(s.posts)
	if err != nil {
		return fmt.Errorf("service/post: encoding posts: %w", err)
	}
	if err := s.store.Set(storage.KeyPosts, string(raw)); err != nil {
		return fmt.Errorf("service/post: persisting posts: %w", err)
	}
	return nil
}

// clonePost copies a post deeply enough that the caller can't mutate the
// service's state through it (the comments slice is the shared part).
func clonePost(p model.Post) model.Post {
	out := p
	out.Comments = make([]model.Comment, len(p.Comments))
	copy(out.Comments, p.Comments)
	return out
}

func clonePosts(posts []model.Post) []model.Post {
	out := make([]model.Post, len(posts))
	for i, p := range posts {
		out[i] = clonePost(p)
	}
	return out
}
