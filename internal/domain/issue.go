package domain

import (
	"strconv"
	"time"
)

// IssueStatus enumerates lifecycle states for issues.
type IssueStatus string

const (
	IssueStatusNew          IssueStatus = "new"
	IssueStatusAcknowledged IssueStatus = "acknowledged"
	IssueStatusAssigned     IssueStatus = "assigned"
	IssueStatusFeedback     IssueStatus = "feedback"
	IssueStatusResolved     IssueStatus = "resolved"
	IssueStatusClosed       IssueStatus = "closed"
)

// IssuePriority enumerates urgency levels.
type IssuePriority string

const (
	IssuePriorityLow       IssuePriority = "low"
	IssuePriorityNormal    IssuePriority = "normal"
	IssuePriorityHigh      IssuePriority = "high"
	IssuePriorityUrgent    IssuePriority = "urgent"
	IssuePriorityImmediate IssuePriority = "immediate"
)

// Statuses lists the status options in display order.
var Statuses = []Option{
	{Value: string(IssueStatusNew), Label: "New"},
	{Value: string(IssueStatusAcknowledged), Label: "Acknowledged"},
	{Value: string(IssueStatusAssigned), Label: "Assigned"},
	{Value: string(IssueStatusFeedback), Label: "Feedback"},
	{Value: string(IssueStatusResolved), Label: "Resolved"},
	{Value: string(IssueStatusClosed), Label: "Closed"},
}

// Priorities lists the priority options in display order.
var Priorities = []Option{
	{Value: string(IssuePriorityLow), Label: "Low"},
	{Value: string(IssuePriorityNormal), Label: "Normal"},
	{Value: string(IssuePriorityHigh), Label: "High"},
	{Value: string(IssuePriorityUrgent), Label: "Urgent"},
	{Value: string(IssuePriorityImmediate), Label: "Immediate"},
}

// Categories lists the issue categories.
var Categories = []Option{
	{Value: "Behavioural Instruments", Label: "Behavioural Instruments"},
	{Value: "Behavioural Battery", Label: "Behavioural Battery"},
	{Value: "Data Entry", Label: "Data Entry"},
	{Value: "Database Problems", Label: "Database Problems"},
	{Value: "Examiners", Label: "Examiners"},
	{Value: "SubprojectID/Project/Plan Changes", Label: "SubprojectID/Project/Plan Changes"},
}

// Valid reports whether s is a known status.
func (s IssueStatus) Valid() bool {
	return hasOption(Statuses, string(s))
}

// Valid reports whether p is a known priority.
func (p IssuePriority) Valid() bool {
	return hasOption(Priorities, string(p))
}

// Issue is the root aggregate of the tracker.
type Issue struct {
	ID            int64
	Title         *string
	Status        IssueStatus
	Priority      IssuePriority
	Category      *string
	Module        *int64
	CenterID      *int64
	CandID        *int64
	SessionID     *int64
	Assignee      *string
	Reporter      string
	LastUpdatedBy *string
	DateCreated   time.Time
	LastUpdate    time.Time

	// Joined from the candidate and session directories.
	PSCID      *string
	VisitLabel *string
}

// Field names as recorded in issues_history.field_changed.
const (
	FieldAssignee      = "assignee"
	FieldStatus        = "status"
	FieldPriority      = "priority"
	FieldCenterID      = "centerID"
	FieldTitle         = "title"
	FieldCategory      = "category"
	FieldModule        = "module"
	FieldCandID        = "candID"
	FieldSessionID     = "sessionID"
	FieldLastUpdatedBy = "lastUpdatedBy"

	// FieldComment marks comment rows when both audit streams are merged.
	FieldComment = "comment"
)

// FieldValue is one changed field in submission order.
type FieldValue struct {
	Field string
	Value string
}

// IssueFields carries the columns written by one edit. Nil pointers are left
// untouched on update and take the column default on insert.
type IssueFields struct {
	Assignee      *string
	Status        *IssueStatus
	Priority      *IssuePriority
	CenterID      *int64
	Title         *string
	Category      *string
	Module        *int64
	CandID        *int64
	SessionID     *int64
	LastUpdatedBy string

	// Set on creation only.
	Reporter    *string
	DateCreated *time.Time
}

// Changes lists the set fields in a fixed order. Reporter and DateCreated are
// creation metadata and are not part of the list. Visit label and watch intent
// are submission inputs, not issue columns, so they never produce history rows.
func (f IssueFields) Changes() []FieldValue {
	var out []FieldValue
	add := func(name string, v *string) {
		if v != nil {
			out = append(out, FieldValue{Field: name, Value: *v})
		}
	}
	addInt := func(name string, v *int64) {
		if v != nil {
			out = append(out, FieldValue{Field: name, Value: strconv.FormatInt(*v, 10)})
		}
	}

	add(FieldAssignee, f.Assignee)
	if f.Status != nil {
		out = append(out, FieldValue{Field: FieldStatus, Value: string(*f.Status)})
	}
	if f.Priority != nil {
		out = append(out, FieldValue{Field: FieldPriority, Value: string(*f.Priority)})
	}
	addInt(FieldCenterID, f.CenterID)
	add(FieldTitle, f.Title)
	add(FieldCategory, f.Category)
	addInt(FieldModule, f.Module)
	out = append(out, FieldValue{Field: FieldLastUpdatedBy, Value: f.LastUpdatedBy})
	addInt(FieldSessionID, f.SessionID)
	addInt(FieldCandID, f.CandID)
	return out
}

// SessionLinkage is an issue's stored candidate/session reference, resolved to
// the human-readable PSCID and visit label.
type SessionLinkage struct {
	CandID     *int64
	SessionID  *int64
	PSCID      *string
	VisitLabel *string
}
