package service

import (
	"strings"
)

// Activity filters, matching the tabs on the activity screen.
const (
	ActivityFilterAll      = "all"
	ActivityFilterReplies  = "replies"
	ActivityFilterMentions = "mentions"
	ActivityFilterVerified = "verified"
)

// ActivityEntry is one row on the activity screen: someone interacted
// with one of your posts.
type ActivityEntry struct {
	ID         int64  `json:"id"`
	Kind       string `json:"kind"` // "reply", "mention", or "like"
	Username   string `json:"username"`
	Message    string `json:"message"`
	PostID     int64  `json:"postId"`
	IsVerified bool   `json:"isVerified"`
	Timestamp  string `json:"timestamp"`
}

// ActivityService derives the activity view from the post collection.
// It owns no state of its own: the feed IS the activity log, re-read on
// every request. Comments become reply entries (mention entries when they
// @-address someone); liked posts become like entries.
type ActivityService struct {
	posts *PostService
}

func NewActivityService(posts *PostService) *ActivityService {
	return &ActivityService{posts: posts}
}

// Entries returns activity rows newest-post-first, narrowed by filter.
// An unknown filter behaves like "all".
func (s *ActivityService) Entries(filter string) []ActivityEntry {
	entries := []ActivityEntry{}

	for _, post := range s.posts.Posts() {
		for _, comment := range post.Comments {
			kind := "reply"
			message := "replied to your post"
			if strings.Contains(comment.Content, "@") {
				kind = "mention"
				message = "mentioned you in a reply"
			}
			entries = append(entries, ActivityEntry{
				ID:         comment.ID,
				Kind:       kind,
				Username:   comment.Username,
				Message:    message,
				PostID:     post.ID,
				IsVerified: post.IsVerified,
				Timestamp:  comment.Timestamp,
			})
		}

		if post.IsLiked {
			entries = append(entries, ActivityEntry{
				ID:         post.ID,
				Kind:       "like",
				Username:   post.Username,
				Message:    "liked your post",
				PostID:     post.ID,
				IsVerified: post.IsVerified,
				Timestamp:  post.TimePosted,
			})
		}
	}

	if filter == "" || filter == ActivityFilterAll {
		return entries
	}

	filtered := []ActivityEntry{}
	for _, e := range entries {
		switch filter {
		case ActivityFilterReplies:
			if e.Kind == "reply" || e.Kind == "mention" {
				filtered = append(filtered, e)
			}
		case ActivityFilterMentions:
			if e.Kind == "mention" {
				filtered = append(filtered, e)
			}
		case ActivityFilterVerified:
			if e.IsVerified {
				filtered = append(filtered, e)
			}
		default:
			filtered = append(filtered, e)
		}
	}
	return filtered
}
