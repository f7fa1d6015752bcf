package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/repository"
)

// TimestampLayout formats history timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// RenderedLine is one entry of an issue's merged history/comment narrative.
type RenderedLine struct {
	Timestamp time.Time
	Author    string
	Field     string
	Value     string
	Text      string
}

// HistoryRenderer merges field history and comments into one chronological narrative.
type HistoryRenderer struct {
	history   repository.IssueHistoryRepository
	comments  repository.CommentRepository
	directory repository.DirectoryRepository
}

// NewHistoryRenderer constructs renderer.
func NewHistoryRenderer(history repository.IssueHistoryRepository, comments repository.CommentRepository, directory repository.DirectoryRepository) *HistoryRenderer {
	return &HistoryRenderer{history: history, comments: comments, directory: directory}
}

// Render returns the issue's lines in timestamp order. On equal timestamps a
// field change precedes a comment; within one stream the stored order holds.
func (r *HistoryRenderer) Render(ctx context.Context, issueID int64) ([]RenderedLine, error) {
	entries, err := r.history.ListByIssue(ctx, issueID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	comments, err := r.comments.ListByIssue(ctx, issueID)
	if err != nil {
		return nil, fmt.Errorf("load comments: %w", err)
	}

	labels := labelCache{}
	lines := make([]RenderedLine, 0, len(entries)+len(comments))
	i, j := 0, 0
	for i < len(entries) || j < len(comments) {
		if j >= len(comments) || (i < len(entries) && !comments[j].DateAdded.Before(entries[i].DateAdded)) {
			line, err := r.renderEntry(ctx, labels, entries[i])
			if err != nil {
				return nil, err
			}
			lines = append(lines, line)
			i++
			continue
		}
		lines = append(lines, renderComment(comments[j]))
		j++
	}
	return lines, nil
}

// Narrative joins rendered lines with newlines.
func Narrative(lines []RenderedLine) string {
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	return strings.Join(texts, "\n")
}

func renderComment(c domain.Comment) RenderedLine {
	return RenderedLine{
		Timestamp: c.DateAdded,
		Author:    c.AddedBy,
		Field:     domain.FieldComment,
		Value:     c.Text,
		Text:      fmt.Sprintf("[%s] %s commented %s", c.DateAdded.Format(TimestampLayout), c.AddedBy, c.Text),
	}
}

func (r *HistoryRenderer) renderEntry(ctx context.Context, labels labelCache, e domain.HistoryEntry) (RenderedLine, error) {
	name, value := e.FieldChanged, e.NewValue

	var lookup func(context.Context, int64) (string, error)
	switch e.FieldChanged {
	case domain.FieldModule:
		name, lookup = "module", r.directory.ModuleLabel
	case domain.FieldCenterID:
		name, lookup = "site", r.siteName
	case domain.FieldCandID:
		name, lookup = "PSCID", r.directory.CandidatePSCID
	case domain.FieldSessionID:
		name, lookup = "visit label", r.directory.SessionVisitLabel
	}

	if lookup != nil {
		resolved, err := labels.get(ctx, e.FieldChanged, e.NewValue, lookup)
		if err != nil {
			return RenderedLine{}, fmt.Errorf("render %s %s: %w", e.FieldChanged, e.NewValue, err)
		}
		value = resolved
	}

	return RenderedLine{
		Timestamp: e.DateAdded,
		Author:    e.AddedBy,
		Field:     e.FieldChanged,
		Value:     value,
		Text:      fmt.Sprintf("[%s] %s updated %s to %s", e.DateAdded.Format(TimestampLayout), e.AddedBy, name, value),
	}, nil
}

func (r *HistoryRenderer) siteName(ctx context.Context, centerID int64) (string, error) {
	site, err := r.directory.GetSite(ctx, centerID)
	if err != nil {
		return "", err
	}
	return site.Name, nil
}

// labelCache memoizes directory lookups for the duration of one render.
type labelCache map[string]string

// get resolves raw through lookup. A raw value that is not an id, or an id the
// directory does not know, resolves to "".
func (c labelCache) get(ctx context.Context, field, raw string, lookup func(context.Context, int64) (string, error)) (string, error) {
	key := field + "|" + raw
	if v, ok := c[key]; ok {
		return v, nil
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		c[key] = ""
		return "", nil
	}
	label, err := lookup(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		label, err = "", nil
	}
	if err != nil {
		return "", err
	}
	c[key] = label
	return label, nil
}
