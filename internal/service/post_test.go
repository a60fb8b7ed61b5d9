package service

import (
	"encoding/json"
	"log/slog"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/sakif/threadlite/internal/model"
	"github.com/sakif/threadlite/internal/storage"
	"github.com/sakif/threadlite/internal/storage/memory"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestPostService wires a PostService over an in-memory store, with a
// profile whose author is "Alice" / "@Alice".
func newTestPostService(t *testing.T) (*PostService, *memory.Store) {
	t.Helper()

	store := memory.New()
	profiles := NewProfileService(store, testLogger())
	if _, err := profiles.UpdateProfile("Alice", "bio"); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	posts := NewPostService(store, profiles, testLogger())
	if err := posts.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return posts, store
}

func mustCreate(t *testing.T, s *PostService, content string, image *string) model.Post {
	t.Helper()
	post, err := s.Create(content, image)
	if err != nil {
		t.Fatalf("Create(%q) error = %v", content, err)
	}
	if post == nil {
		t.Fatalf("Create(%q) was a no-op, expected a post", content)
	}
	return *post
}

func strptr(s string) *string { return &s }

// =========================================================================
// CREATE
// =========================================================================

func TestCreate_NewestFirst(t *testing.T) {
	s, _ := newTestPostService(t)

	mustCreate(t, s, "first", nil)
	mustCreate(t, s, "second", nil)
	mustCreate(t, s, "third", nil)

	posts := s.Posts()
	if len(posts) != 3 {
		t.Fatalf("len(posts) = %d, want 3", len(posts))
	}
	want := []string{"third", "second", "first"}
	for i, content := range want {
		if posts[i].Content != content {
			t.Errorf("posts[%d].Content = %q, want %q", i, posts[i].Content, content)
		}
	}
}

func TestCreate_EmptyContentNoImage_IsNoOp(t *testing.T) {
	s, store := newTestPostService(t)

	for _, content := range []string{"", "   ", "\n\t"} {
		post, err := s.Create(content, nil)
		if err != nil {
			t.Fatalf("Create(%q) error = %v", content, err)
		}
		if post != nil {
			t.Errorf("Create(%q) created a post, want no-op", content)
		}
	}

	if len(s.Posts()) != 0 {
		t.Errorf("len(posts) = %d after no-op creates, want 0", len(s.Posts()))
	}
	// A no-op create must not even touch storage
	if _, ok, _ := store.Get(storage.KeyPosts); ok {
		t.Error("no-op create persisted the collection")
	}
}

func TestCreate_ImageOnlyPostAllowed(t *testing.T) {
	s, _ := newTestPostService(t)

	post, err := s.Create("", strptr("data:image/png;base64,AAAA"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if post == nil {
		t.Fatal("Create() with image but empty content was a no-op")
	}
	if post.Image == nil || *post.Image != "data:image/png;base64,AAAA" {
		t.Errorf("Image = %v, want the data URL", post.Image)
	}
}

func TestCreate_DenormalizesAuthorAtCreationTime(t *testing.T) {
	s, _ := newTestPostService(t)

	first := mustCreate(t, s, "before rename", nil)
	if first.Username != "Alice" || first.Handle != "@Alice" {
		t.Fatalf("author = %q/%q, want Alice/@Alice", first.Username, first.Handle)
	}

	// Rename the profile, then post again
	if _, err := s.profiles.UpdateProfile("Bob", "bio"); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	second := mustCreate(t, s, "after rename", nil)

	if second.Username != "Bob" {
		t.Errorf("new post author = %q, want %q", second.Username, "Bob")
	}
	// The old post keeps its snapshot — author identity is frozen at post time
	posts := s.Posts()
	if posts[1].Username != "Alice" || posts[1].Handle != "@Alice" {
		t.Errorf("old post author = %q/%q, want frozen Alice/@Alice", posts[1].Username, posts[1].Handle)
	}
}

func TestCreate_InitialCounters(t *testing.T) {
	s, _ := newTestPostService(t)

	post := mustCreate(t, s, "hello", nil)
	if post.Likes != 0 || post.IsLiked || post.Replies != 0 || post.Reposts != 0 || post.IsVerified {
		t.Errorf("fresh post counters = %+v, want all zero/false", post)
	}
	if post.TimePosted != timePostedLiteral {
		t.Errorf("TimePosted = %q, want %q", post.TimePosted, timePostedLiteral)
	}
	if len(post.Comments) != 0 {
		t.Errorf("Comments = %v, want empty", post.Comments)
	}
}

func TestCreate_TimestampCollision_DeterministicTieBreak(t *testing.T) {
	s, _ := newTestPostService(t)

	// Freeze the clock: every creation sees the same millisecond
	frozen := time.UnixMilli(1700000000000)
	s.now = func() time.Time { return frozen }

	a := mustCreate(t, s, "a", nil)
	b := mustCreate(t, s, "b", nil)
	c := mustCreate(t, s, "c", nil)

	if a.ID == b.ID || b.ID == c.ID {
		t.Fatalf("colliding ids: %d, %d, %d", a.ID, b.ID, c.ID)
	}
	// Monotonic: later creation, larger id
	if !(a.ID < b.ID && b.ID < c.ID) {
		t.Errorf("ids not monotonic: %d, %d, %d", a.ID, b.ID, c.ID)
	}
	// And the feed is still ordered by creation, newest first
	posts := s.Posts()
	if posts[0].Content != "c" || posts[1].Content != "b" || posts[2].Content != "a" {
		t.Errorf("feed order = %q,%q,%q, want c,b,a",
			posts[0].Content, posts[1].Content, posts[2].Content)
	}
}

// =========================================================================
// LIKE
// =========================================================================

func TestLike_ToggleIsItsOwnInverse(t *testing.T) {
	s, _ := newTestPostService(t)
	post := mustCreate(t, s, "hello", nil)

	liked, err := s.Like(post.ID)
	if err != nil {
		t.Fatalf("Like() error = %v", err)
	}
	if !liked.IsLiked || liked.Likes != 1 {
		t.Errorf("after like: IsLiked=%v Likes=%d, want true/1", liked.IsLiked, liked.Likes)
	}

	unliked, err := s.Like(post.ID)
	if err != nil {
		t.Fatalf("Like() error = %v", err)
	}
	if unliked.IsLiked || unliked.Likes != 0 {
		t.Errorf("after unlike: IsLiked=%v Likes=%d, want false/0", unliked.IsLiked, unliked.Likes)
	}
}

func TestLike_UnknownID_IsNoOp(t *testing.T) {
	s, _ := newTestPostService(t)
	before := s.Posts()

	updated, err := s.Like(999999)
	if err != nil {
		t.Fatalf("Like() error = %v", err)
	}
	if updated != nil {
		t.Error("Like() on unknown id returned a post")
	}
	if !reflect.DeepEqual(before, s.Posts()) {
		t.Error("Like() on unknown id changed the collection")
	}
}

// =========================================================================
// COMMENT
// =========================================================================

func TestComment_RepliesTracksCommentCount(t *testing.T) {
	s, _ := newTestPostService(t)
	post := mustCreate(t, s, "hello", nil)

	for i, content := range []string{"one", "two", "three"} {
		updated, err := s.Comment(post.ID, content)
		if err != nil {
			t.Fatalf("Comment() error = %v", err)
		}
		if updated.Replies != i+1 {
			t.Errorf("Replies = %d, want %d", updated.Replies, i+1)
		}
		if updated.Replies != len(updated.Comments) {
			t.Errorf("Replies = %d but len(Comments) = %d — invariant broken",
				updated.Replies, len(updated.Comments))
		}
	}

	got, _ := s.Get(post.ID)
	if got.Comments[0].Content != "one" || got.Comments[2].Content != "three" {
		t.Errorf("comments not in insertion order: %+v", got.Comments)
	}
	if got.Comments[0].Username != "Alice" {
		t.Errorf("comment author = %q, want %q", got.Comments[0].Username, "Alice")
	}
}

func TestComment_EmptyContent_IsNoOp(t *testing.T) {
	s, _ := newTestPostService(t)
	post := mustCreate(t, s, "hello", nil)

	for _, content := range []string{"", "   "} {
		updated, err := s.Comment(post.ID, content)
		if err != nil {
			t.Fatalf("Comment(%q) error = %v", content, err)
		}
		if updated != nil {
			t.Errorf("Comment(%q) mutated, want no-op", content)
		}
	}

	got, _ := s.Get(post.ID)
	if got.Replies != 0 || len(got.Comments) != 0 {
		t.Errorf("post mutated by empty comments: Replies=%d Comments=%d",
			got.Replies, len(got.Comments))
	}
}

func TestComment_UnknownPost_IsNoOp(t *testing.T) {
	s, _ := newTestPostService(t)
	before := s.Posts()

	updated, err := s.Comment(424242, "hello?")
	if err != nil {
		t.Fatalf("Comment() error = %v", err)
	}
	if updated != nil {
		t.Error("Comment() on unknown post returned a post")
	}
	if !reflect.DeepEqual(before, s.Posts()) {
		t.Error("Comment() on unknown post changed the collection")
	}
}

// =========================================================================
// DELETE
// =========================================================================

func TestDelete(t *testing.T) {
	s, _ := newTestPostService(t)
	a := mustCreate(t, s, "a", nil)
	b := mustCreate(t, s, "b", nil)

	removed, err := s.Delete(a.ID)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !removed {
		t.Error("Delete() reported nothing removed")
	}

	posts := s.Posts()
	if len(posts) != 1 || posts[0].ID != b.ID {
		t.Errorf("posts after delete = %+v, want only %d", posts, b.ID)
	}
}

func TestDelete_UnknownID_LeavesCollectionIdentical(t *testing.T) {
	s, _ := newTestPostService(t)
	mustCreate(t, s, "a", nil)
	mustCreate(t, s, "b", nil)
	before := s.Posts()

	removed, err := s.Delete(777777)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if removed {
		t.Error("Delete() on unknown id reported removal")
	}
	if !reflect.DeepEqual(before, s.Posts()) {
		t.Error("Delete() on unknown id changed the collection")
	}
}

// =========================================================================
// EDIT STATE MACHINE
// =========================================================================

func TestEdit_SaveCommitsTrimmedContentAndStampsEdited(t *testing.T) {
	s, _ := newTestPostService(t)
	post := mustCreate(t, s, "hello", nil)

	if !s.StartEdit(post.ID) {
		t.Fatal("StartEdit() returned false for an existing post")
	}
	// Drafts are seeded from the post
	content, _, editing := s.Draft()
	if !editing || content != "hello" {
		t.Fatalf("Draft() = (%q, editing=%v), want (hello, true)", content, editing)
	}

	s.SetDraftContent("  hello world  ")
	updated, err := s.SaveEdit()
	if err != nil {
		t.Fatalf("SaveEdit() error = %v", err)
	}
	if updated.Content != "hello world" {
		t.Errorf("Content = %q, want trimmed %q", updated.Content, "hello world")
	}
	if updated.EditTimestamp != editedLiteral {
		t.Errorf("EditTimestamp = %q, want %q", updated.EditTimestamp, editedLiteral)
	}
	// Back to Idle
	if _, _, editing := s.Draft(); editing {
		t.Error("still Editing after SaveEdit")
	}
}

func TestEdit_EditedMarkerPersistsAcrossFurtherEdits(t *testing.T) {
	s, _ := newTestPostService(t)
	post := mustCreate(t, s, "v1", nil)

	s.StartEdit(post.ID)
	s.SetDraftContent("v2")
	if _, err := s.SaveEdit(); err != nil {
		t.Fatalf("SaveEdit() error = %v", err)
	}
	s.StartEdit(post.ID)
	s.SetDraftContent("v3")
	updated, err := s.SaveEdit()
	if err != nil {
		t.Fatalf("SaveEdit() error = %v", err)
	}
	if updated.EditTimestamp != editedLiteral {
		t.Errorf("EditTimestamp = %q after second edit, want %q", updated.EditTimestamp, editedLiteral)
	}
}

func TestEdit_CancelDiscardsDraft(t *testing.T) {
	s, _ := newTestPostService(t)
	post := mustCreate(t, s, "hello", nil)

	s.StartEdit(post.ID)
	s.SetDraftContent("scrapped rewrite")
	s.CancelEdit()

	got, _ := s.Get(post.ID)
	if got.Content != "hello" {
		t.Errorf("Content = %q after cancel, want unchanged %q", got.Content, "hello")
	}
	if got.EditTimestamp != "" {
		t.Errorf("EditTimestamp = %q after cancel, want empty", got.EditTimestamp)
	}
}

func TestEdit_SaveAndCancelWhileIdle_AreNoOps(t *testing.T) {
	s, _ := newTestPostService(t)
	mustCreate(t, s, "hello", nil)
	before := s.Posts()

	updated, err := s.SaveEdit()
	if err != nil {
		t.Fatalf("SaveEdit() while Idle error = %v", err)
	}
	if updated != nil {
		t.Error("SaveEdit() while Idle returned a post")
	}
	s.CancelEdit() // must not panic or mutate

	if !reflect.DeepEqual(before, s.Posts()) {
		t.Error("Idle save/cancel changed the collection")
	}
}

func TestEdit_DoesNotCommitDraftImage(t *testing.T) {
	s, _ := newTestPostService(t)
	post := mustCreate(t, s, "hello", strptr("data:image/png;base64,OLD"))

	s.StartEdit(post.ID)
	s.SetDraftImage(strptr("data:image/png;base64,NEW"))
	updated, err := s.SaveEdit()
	if err != nil {
		t.Fatalf("SaveEdit() error = %v", err)
	}
	// The save path freezes the image — only content changes
	if updated.Image == nil || *updated.Image != "data:image/png;base64,OLD" {
		t.Errorf("Image = %v, want the original image", updated.Image)
	}
}

func TestEdit_StartEditUnknownID(t *testing.T) {
	s, _ := newTestPostService(t)
	if s.StartEdit(31337) {
		t.Error("StartEdit() returned true for an unknown id")
	}
	if _, _, editing := s.Draft(); editing {
		t.Error("state machine left Idle for an unknown id")
	}
}

func TestEdit_TargetDeletedMidEdit(t *testing.T) {
	s, _ := newTestPostService(t)
	post := mustCreate(t, s, "doomed", nil)

	s.StartEdit(post.ID)
	if _, err := s.Delete(post.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	updated, err := s.SaveEdit()
	if err != nil {
		t.Fatalf("SaveEdit() error = %v", err)
	}
	if updated != nil {
		t.Error("SaveEdit() resurrected a deleted post")
	}
	if _, _, editing := s.Draft(); editing {
		t.Error("still Editing after save against a deleted post")
	}
}

// =========================================================================
// PERSISTENCE
// =========================================================================

func TestPersistence_RoundTrip(t *testing.T) {
	cases := []struct {
		name  string
		setup func(t *testing.T, s *PostService)
	}{
		{"empty collection", func(t *testing.T, s *PostService) {}},
		{"single post", func(t *testing.T, s *PostService) {
			mustCreate(t, s, "only", nil)
		}},
		{"posts with comments and images", func(t *testing.T, s *PostService) {
			a := mustCreate(t, s, "text post", nil)
			if _, err := s.Comment(a.ID, "nice"); err != nil {
				t.Fatal(err)
			}
			if _, err := s.Like(a.ID); err != nil {
				t.Fatal(err)
			}
			mustCreate(t, s, "", strptr("data:image/png;base64,AAAA"))
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, store := newTestPostService(t)
			tc.setup(t, s)
			before := s.Posts()

			// A second service over the same store simulates a restart
			rehydrated := NewPostService(store, s.profiles, testLogger())
			if err := rehydrated.Load(); err != nil {
				t.Fatalf("Load() error = %v", err)
			}

			if !reflect.DeepEqual(before, rehydrated.Posts()) {
				t.Errorf("round trip mismatch:\nbefore: %+v\nafter:  %+v", before, rehydrated.Posts())
			}
		})
	}
}

func TestLoad_UnparseableValue_YieldsEmptyCollection(t *testing.T) {
	store := memory.New()
	if err := store.Set(storage.KeyPosts, "{definitely not json"); err != nil {
		t.Fatal(err)
	}

	profiles := NewProfileService(store, testLogger())
	s := NewPostService(store, profiles, testLogger())
	if err := s.Load(); err != nil {
		t.Fatalf("Load() error = %v, want nil (corrupt data is not fatal)", err)
	}
	if len(s.Posts()) != 0 {
		t.Errorf("len(posts) = %d for corrupt stored value, want 0", len(s.Posts()))
	}
}

func TestLoad_SeedsIDCounterPastStoredIDs(t *testing.T) {
	store := memory.New()
	stored := []model.Post{{ID: 9000000000000, Content: "from the future", Comments: []model.Comment{{ID: 9000000000001, Content: "me too"}}}}
	raw, _ := json.Marshal(stored)
	if err := store.Set(storage.KeyPosts, string(raw)); err != nil {
		t.Fatal(err)
	}

	profiles := NewProfileService(store, testLogger())
	s := NewPostService(store, profiles, testLogger())
	if err := s.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	post, err := s.Create("new", nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if post.ID <= 9000000000001 {
		t.Errorf("new id %d collides with stored ids", post.ID)
	}
}

// =========================================================================
// SEARCH
// =========================================================================

func TestSearch(t *testing.T) {
	s, _ := newTestPostService(t)
	mustCreate(t, s, "Hello World", nil)
	mustCreate(t, s, "goodbye", nil)

	tests := []struct {
		query string
		want  int
	}{
		{"hello", 1},     // case-insensitive content match
		{"WORLD", 1},     // case-insensitive, different case
		{"alice", 2},     // matches the author name on both posts
		{"", 0},          // blank query shows nothing
		{"   ", 0},       // whitespace query shows nothing
		{"zebra", 0},     // no match
		{"o", 2},         // substring match in both contents
	}

	for _, tt := range tests {
		if got := len(s.Search(tt.query)); got != tt.want {
			t.Errorf("Search(%q) returned %d posts, want %d", tt.query, got, tt.want)
		}
	}
}

// =========================================================================
// FULL SCENARIO
// =========================================================================

// The end-to-end walk: create → like → comment → edit, checking every
// intermediate state.
func TestScenario_CreateLikeCommentEdit(t *testing.T) {
	s, _ := newTestPostService(t)

	post, err := s.Create("hello", nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if post == nil {
		t.Fatal("Create() was a no-op")
	}
	posts := s.Posts()
	if len(posts) != 1 || posts[0].Content != "hello" ||
		posts[0].Likes != 0 || posts[0].IsLiked || posts[0].Replies != 0 {
		t.Fatalf("after create: %+v", posts[0])
	}

	liked, err := s.Like(post.ID)
	if err != nil {
		t.Fatalf("Like() error = %v", err)
	}
	if liked.Likes != 1 || !liked.IsLiked {
		t.Fatalf("after like: Likes=%d IsLiked=%v", liked.Likes, liked.IsLiked)
	}

	commented, err := s.Comment(post.ID, "nice")
	if err != nil {
		t.Fatalf("Comment() error = %v", err)
	}
	if commented.Replies != 1 || len(commented.Comments) != 1 {
		t.Fatalf("after comment: Replies=%d len(Comments)=%d", commented.Replies, len(commented.Comments))
	}
	if commented.Comments[0].Content != "nice" || commented.Comments[0].Username != "Alice" {
		t.Errorf("comment = %+v, want content=nice username=Alice", commented.Comments[0])
	}

	if !s.StartEdit(post.ID) {
		t.Fatal("StartEdit() returned false")
	}
	s.SetDraftContent("hello world")
	edited, err := s.SaveEdit()
	if err != nil {
		t.Fatalf("SaveEdit() error = %v", err)
	}
	if edited.Content != "hello world" {
		t.Errorf("Content = %q, want %q", edited.Content, "hello world")
	}
	if edited.EditTimestamp == "" {
		t.Error("EditTimestamp not set after save")
	}
}
