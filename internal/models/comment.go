package models

import "time"

// CommentType classifies mentor feedback
type CommentType string

const (
	CommentFeedback   CommentType = "feedback"
	CommentPraise     CommentType = "praise"
	CommentSuggestion CommentType = "suggestion"
)

// Valid reports whether c is a known comment type
func (c CommentType) Valid() bool {
	return c == CommentFeedback || c == CommentPraise || c == CommentSuggestion
}

// StoryComment is a note left on a story by a mentor, an admin or its author
type StoryComment struct {
	ID         int64       `json:"id"`
	SessionID  int64       `json:"sessionId"`
	AuthorID   int64       `json:"authorId"`
	AuthorName string      `json:"authorName"`
	AuthorRole Role        `json:"authorRole"`
	Type       CommentType `json:"type"`
	Content    string      `json:"content"`
	CreatedAt  time.Time   `json:"createdAt"`
}
