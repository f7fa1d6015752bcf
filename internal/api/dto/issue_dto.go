package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/service"
)

// FieldValue is a submitted form value. JSON bodies may carry it as a string
// or a number; null decodes as not submitted.
type FieldValue string

// UnmarshalText implements encoding.TextUnmarshaler for form decoding.
func (v *FieldValue) UnmarshalText(text []byte) error {
	*v = FieldValue(text)
	return nil
}

// UnmarshalJSON accepts strings, numbers and booleans.
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = FieldValue(s)
		return nil
	}
	switch string(data) {
	case "true", "false":
		*v = FieldValue(data)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*v = FieldValue(n.String())
	return nil
}

// EditIssueRequest is the payload of action=edit.
type EditIssueRequest struct {
	IssueID    *FieldValue `json:"issueID" form:"issueID"`
	Assignee   *FieldValue `json:"assignee" form:"assignee"`
	Status     *FieldValue `json:"status" form:"status"`
	Priority   *FieldValue `json:"priority" form:"priority"`
	VisitLabel *FieldValue `json:"visitLabel" form:"visitLabel"`
	CenterID   *FieldValue `json:"centerID" form:"centerID"`
	Title      *FieldValue `json:"title" form:"title"`
	Category   *FieldValue `json:"category" form:"category"`
	Module     *FieldValue `json:"module" form:"module"`
	Watching   *FieldValue `json:"watching" form:"watching"`
	PSCID      *FieldValue `json:"PSCID" form:"PSCID"`
	Comment    *FieldValue `json:"comment" form:"comment"`
}

// ToInput converts the request. Blank values count as not submitted; a
// non-numeric id is reported as an error naming the field.
func (r EditIssueRequest) ToInput() (service.EditIssueInput, error) {
	var in service.EditIssueInput
	var err error

	if in.IssueID, err = optionalInt("issueID", r.IssueID); err != nil {
		return in, err
	}
	if in.CenterID, err = optionalInt("centerID", r.CenterID); err != nil {
		return in, err
	}
	if in.Module, err = optionalInt("module", r.Module); err != nil {
		return in, err
	}
	if s := optionalString(r.Status); s != nil {
		status := domain.IssueStatus(*s)
		in.Status = &status
	}
	if s := optionalString(r.Priority); s != nil {
		priority := domain.IssuePriority(*s)
		in.Priority = &priority
	}
	in.Assignee = optionalString(r.Assignee)
	in.Title = optionalString(r.Title)
	in.Category = optionalString(r.Category)
	in.PSCID = optionalString(r.PSCID)
	in.VisitLabel = optionalString(r.VisitLabel)
	in.Comment = optionalString(r.Comment)
	if r.Watching != nil {
		w := string(*r.Watching)
		in.Watching = &w
	}
	return in, nil
}

// EditCommentRequest is the payload of action=editComment.
type EditCommentRequest struct {
	IssueCommentID *FieldValue `json:"issueCommentID" form:"issueCommentID"`
	Comment        *FieldValue `json:"comment" form:"comment"`
}

// CommentID parses the required comment id.
func (r EditCommentRequest) CommentID() (int64, error) {
	id, err := optionalInt("issueCommentID", r.IssueCommentID)
	if err != nil {
		return 0, err
	}
	if id == nil {
		return 0, fmt.Errorf("issueCommentID is required")
	}
	return *id, nil
}

// Text returns the submitted comment text.
func (r EditCommentRequest) Text() string {
	if r.Comment == nil {
		return ""
	}
	return string(*r.Comment)
}

// ParseIssueID reads an optional numeric issue id from a query value.
func ParseIssueID(raw string) (*int64, error) {
	v := FieldValue(raw)
	return optionalInt("issueID", &v)
}

func optionalString(v *FieldValue) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(string(*v))
	if s == "" {
		return nil
	}
	return &s
}

func optionalInt(name string, v *FieldValue) (*int64, error) {
	s := optionalString(v)
	if s == nil {
		return nil, nil
	}
	n, err := strconv.ParseInt(*s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be numeric", name)
	}
	return &n, nil
}

// EditResultResponse is returned by action=edit.
type EditResultResponse struct {
	IsValidSubmission bool   `json:"isValidSubmission"`
	InvalidMessage    string `json:"invalidMessage,omitempty"`
	IssueID           *int64 `json:"issueID,omitempty"`
}

// NewEditResultResponse maps a service result.
func NewEditResultResponse(res *service.EditResult) EditResultResponse {
	out := EditResultResponse{IsValidSubmission: res.IsValidSubmission, InvalidMessage: res.InvalidMessage}
	if res.IsValidSubmission {
		id := res.IssueID
		out.IssueID = &id
	}
	return out
}

// HistoryLineResponse is one rendered history line.
type HistoryLineResponse struct {
	DateAdded string `json:"dateAdded"`
	AddedBy   string `json:"addedBy"`
	Field     string `json:"fieldChanged"`
	Value     string `json:"newValue"`
	Text      string `json:"text"`
}

// IssueDataResponse is the issue (or draft) section of getData.
type IssueDataResponse struct {
	IssueID        *int64                `json:"issueID"`
	Title          *string               `json:"title"`
	Status         domain.IssueStatus    `json:"status"`
	Priority       domain.IssuePriority  `json:"priority"`
	Category       *string               `json:"category"`
	Module         *int64                `json:"module"`
	CenterID       *int64                `json:"centerID"`
	CandID         *int64                `json:"candID"`
	SessionID      *int64                `json:"sessionID"`
	Assignee       *string               `json:"assignee"`
	Reporter       string                `json:"reporter"`
	LastUpdatedBy  *string               `json:"lastUpdatedBy"`
	DateCreated    string                `json:"dateCreated"`
	LastUpdate     *string               `json:"lastUpdate"`
	PSCID          *string               `json:"PSCID"`
	VisitLabel     *string               `json:"visitLabel"`
	CommentHistory *string               `json:"commentHistory"`
	History        []HistoryLineResponse `json:"history"`
	Watching       bool                  `json:"watching"`
	Comment        *string               `json:"comment"`
}

// IssueViewResponse is returned by action=getData.
type IssueViewResponse struct {
	Assignees         []domain.Option   `json:"assignees"`
	Sites             []domain.Option   `json:"sites"`
	Statuses          []domain.Option   `json:"statuses"`
	Priorities        []domain.Option   `json:"priorities"`
	Categories        []domain.Option   `json:"categories"`
	Modules           []domain.Option   `json:"modules"`
	IssueData         IssueDataResponse `json:"issueData"`
	HasEditPermission bool              `json:"hasEditPermission"`
	IsOwnIssue        bool              `json:"isOwnIssue"`
}

// NewIssueViewResponse maps a service view.
func NewIssueViewResponse(v *service.IssueView) IssueViewResponse {
	d := v.Issue
	data := IssueDataResponse{
		IssueID:        d.IssueID,
		Title:          d.Title,
		Status:         d.Status,
		Priority:       d.Priority,
		Category:       d.Category,
		Module:         d.Module,
		CenterID:       d.CenterID,
		CandID:         d.CandID,
		SessionID:      d.SessionID,
		Assignee:       d.Assignee,
		Reporter:       d.Reporter,
		LastUpdatedBy:  d.LastUpdatedBy,
		DateCreated:    formatTime(d.DateCreated),
		PSCID:          d.PSCID,
		VisitLabel:     d.VisitLabel,
		CommentHistory: d.CommentHistory,
		History:        make([]HistoryLineResponse, 0, len(d.History)),
		Watching:       d.Watching,
	}
	if d.LastUpdate != nil {
		s := formatTime(*d.LastUpdate)
		data.LastUpdate = &s
	}
	for _, l := range d.History {
		data.History = append(data.History, HistoryLineResponse{
			DateAdded: formatTime(l.Timestamp),
			AddedBy:   l.Author,
			Field:     l.Field,
			Value:     l.Value,
			Text:      l.Text,
		})
	}

	return IssueViewResponse{
		Assignees:         v.Assignees,
		Sites:             v.Sites,
		Statuses:          v.Statuses,
		Priorities:        v.Priorities,
		Categories:        v.Categories,
		Modules:           v.Modules,
		IssueData:         data,
		HasEditPermission: v.HasEditPermission,
		IsOwnIssue:        v.IsOwnIssue,
	}
}

func formatTime(t time.Time) string {
	return t.Format(service.TimestampLayout)
}
