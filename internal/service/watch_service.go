package service

import (
	"context"

	"github.com/spec-kit/issue-tracker/internal/repository"
)

// WatchDecline is the only watch intent that unsubscribes the editor.
const WatchDecline = "no"

// WatchService manages per-user issue subscriptions.
type WatchService struct {
	watches repository.WatchRepository
}

// NewWatchService constructs service.
func NewWatchService(watches repository.WatchRepository) *WatchService {
	return &WatchService{watches: watches}
}

// WantsWatch interprets a submitted watch intent. Anything but "no", including
// no value at all, subscribes.
// TODO: confirm with product whether an absent intent should keep the current state.
func WantsWatch(intent *string) bool {
	return intent == nil || *intent != WatchDecline
}

// SetWatching subscribes or unsubscribes userID. Both directions are idempotent.
func (s *WatchService) SetWatching(ctx context.Context, issueID int64, userID string, wants bool) error {
	if wants {
		return s.watches.Watch(ctx, userID, issueID)
	}
	return s.watches.Unwatch(ctx, userID, issueID)
}

// IsWatching reports whether userID is subscribed to the issue.
func (s *WatchService) IsWatching(ctx context.Context, issueID int64, userID string) (bool, error) {
	return s.watches.IsWatching(ctx, userID, issueID)
}
