package domain

import "time"

// HistoryEntry is an immutable audit record of one field change.
type HistoryEntry struct {
	ID           int64
	IssueID      int64
	FieldChanged string
	NewValue     string
	AddedBy      string
	DateAdded    time.Time
}

// Comment is one free-text entry in an issue thread.
type Comment struct {
	ID        int64
	IssueID   int64
	Text      string
	AddedBy   string
	DateAdded time.Time
}

// CommentEdit records a later edit of a comment; the comment row is never rewritten.
type CommentEdit struct {
	ID        int64
	CommentID int64
	NewValue  string
	EditedBy  string
	DateAdded time.Time
}

// Watcher is a subscribed user resolved to a mail address.
type Watcher struct {
	UserID   string
	Email    string
	RealName string
}
