package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/issue-tracker/internal/domain"
)

func newRenderer(store *memStore) *HistoryRenderer {
	return NewHistoryRenderer(historyRepo{store}, commentRepo{store}, directoryRepo{store})
}

func TestHistoryRenderer_ResolvesForeignKeys(t *testing.T) {
	store := seededStore()
	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	store.history = []domain.HistoryEntry{
		{ID: 1, IssueID: 1, FieldChanged: domain.FieldCenterID, NewValue: "2", AddedBy: "admin", DateAdded: t0},
		{ID: 2, IssueID: 1, FieldChanged: domain.FieldCenterID, NewValue: "99", AddedBy: "admin", DateAdded: t0.Add(time.Second)},
		{ID: 3, IssueID: 1, FieldChanged: domain.FieldModule, NewValue: "7", AddedBy: "dev", DateAdded: t0.Add(2 * time.Second)},
		{ID: 4, IssueID: 1, FieldChanged: domain.FieldCandID, NewValue: "300001", AddedBy: "dev", DateAdded: t0.Add(3 * time.Second)},
		{ID: 5, IssueID: 1, FieldChanged: domain.FieldSessionID, NewValue: "44", AddedBy: "dev", DateAdded: t0.Add(4 * time.Second)},
		{ID: 6, IssueID: 1, FieldChanged: domain.FieldPriority, NewValue: "high", AddedBy: "dev", DateAdded: t0.Add(5 * time.Second)},
		{ID: 7, IssueID: 1, FieldChanged: domain.FieldModule, NewValue: "not-a-number", AddedBy: "dev", DateAdded: t0.Add(6 * time.Second)},
	}

	lines, err := newRenderer(store).Render(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, []string{
		"[2024-03-01 09:00:00] admin updated site to Montreal",
		"[2024-03-01 09:00:01] admin updated site to ",
		"[2024-03-01 09:00:02] dev updated module to Imaging Browser",
		"[2024-03-01 09:00:03] dev updated PSCID to ABC123",
		"[2024-03-01 09:00:04] dev updated visit label to V1",
		"[2024-03-01 09:00:05] dev updated priority to high",
		"[2024-03-01 09:00:06] dev updated module to ",
	}, texts(lines))
	assert.Equal(t, "Montreal", lines[0].Value)
	assert.Equal(t, domain.FieldCenterID, lines[0].Field)
}

func TestHistoryRenderer_InterleavesStreamsByTimestamp(t *testing.T) {
	store := seededStore()
	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	store.history = []domain.HistoryEntry{
		{ID: 1, IssueID: 1, FieldChanged: domain.FieldTitle, NewValue: "a", AddedBy: "admin", DateAdded: t0},
		{ID: 3, IssueID: 1, FieldChanged: domain.FieldTitle, NewValue: "b", AddedBy: "admin", DateAdded: t0.Add(2 * time.Second)},
		{ID: 5, IssueID: 1, FieldChanged: domain.FieldTitle, NewValue: "c", AddedBy: "admin", DateAdded: t0.Add(4 * time.Second)},
		{ID: 6, IssueID: 2, FieldChanged: domain.FieldTitle, NewValue: "other issue", AddedBy: "admin", DateAdded: t0},
	}
	store.comments = []domain.Comment{
		{ID: 2, IssueID: 1, Text: "one", AddedBy: "dev", DateAdded: t0.Add(time.Second)},
		{ID: 4, IssueID: 1, Text: "tie", AddedBy: "dev", DateAdded: t0.Add(4 * time.Second)},
		{ID: 7, IssueID: 1, Text: "last", AddedBy: "dev", DateAdded: t0.Add(5 * time.Second)},
	}

	lines, err := newRenderer(store).Render(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, []string{
		"[2024-03-01 09:00:00] admin updated title to a",
		"[2024-03-01 09:00:01] dev commented one",
		"[2024-03-01 09:00:02] admin updated title to b",
		"[2024-03-01 09:00:04] admin updated title to c",
		"[2024-03-01 09:00:04] dev commented tie",
		"[2024-03-01 09:00:05] dev commented last",
	}, texts(lines))

	for i := 1; i < len(lines); i++ {
		assert.False(t, lines[i].Timestamp.Before(lines[i-1].Timestamp))
	}
}

func TestHistoryRenderer_LookupFailurePropagates(t *testing.T) {
	store := seededStore()
	store.fail["directory"] = errors.New("connection refused")
	store.history = []domain.HistoryEntry{
		{ID: 1, IssueID: 1, FieldChanged: domain.FieldCenterID, NewValue: "2", AddedBy: "admin", DateAdded: time.Now()},
	}

	_, err := newRenderer(store).Render(context.Background(), 1)

	assert.ErrorContains(t, err, "connection refused")
}

func TestNarrative(t *testing.T) {
	assert.Equal(t, "", Narrative(nil))
	assert.Equal(t, "a\nb", Narrative([]RenderedLine{{Text: "a"}, {Text: "b"}}))
}

func texts(lines []RenderedLine) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}
