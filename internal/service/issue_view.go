package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/issue-tracker/internal/auth"
	"github.com/spec-kit/issue-tracker/internal/domain"
)

// IssueView is everything the issue form needs: option lists, the issue
// itself and the caller's permissions on it.
type IssueView struct {
	Assignees         []domain.Option
	Sites             []domain.Option
	Statuses          []domain.Option
	Priorities        []domain.Option
	Categories        []domain.Option
	Modules           []domain.Option
	Issue             IssueData
	HasEditPermission bool
	IsOwnIssue        bool
}

// IssueData is an existing issue or a pre-filled draft.
type IssueData struct {
	IssueID        *int64
	Title          *string
	Status         domain.IssueStatus
	Priority       domain.IssuePriority
	Category       *string
	Module         *int64
	CenterID       *int64
	CandID         *int64
	SessionID      *int64
	Assignee       *string
	Reporter       string
	LastUpdatedBy  *string
	DateCreated    time.Time
	LastUpdate     *time.Time
	PSCID          *string
	VisitLabel     *string
	History        []RenderedLine
	CommentHistory *string
	Watching       bool
}

// GetIssueFields assembles the form for issueID, or a draft when issueID is nil.
func (s *IssueService) GetIssueFields(ctx context.Context, actor auth.Identity, issueID *int64) (*IssueView, error) {
	user := actor.CurrentUser()
	view := &IssueView{
		Statuses:          domain.Statuses,
		Priorities:        domain.Priorities,
		Categories:        domain.Categories,
		HasEditPermission: actor.HasCapability(domain.CapabilityIssueTrackerDeveloper),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		assignees, err := s.assigneeOptions(gctx)
		view.Assignees = assignees
		return err
	})
	g.Go(func() error {
		sites, err := s.siteOptions(gctx, actor)
		view.Sites = sites
		return err
	})
	g.Go(func() error {
		modules, err := s.moduleOptions(gctx)
		view.Modules = modules
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load reference data: %w", err)
	}

	if issueID == nil {
		centerID := user.CenterID
		view.Issue = IssueData{
			Status:      domain.IssueStatusNew,
			Priority:    domain.IssuePriorityLow,
			CenterID:    &centerID,
			Reporter:    user.ID,
			DateCreated: s.now(),
		}
		view.IsOwnIssue = true
		return view, nil
	}

	issue, err := s.issues.GetByID(ctx, *issueID)
	if err != nil {
		return nil, s.notFoundOr(err, "issue", *issueID)
	}
	lines, err := s.renderer.Render(ctx, issue.ID)
	if err != nil {
		return nil, err
	}
	watching, err := s.watches.IsWatching(ctx, issue.ID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load watch state: %w", err)
	}

	narrative := Narrative(lines)
	lastUpdate := issue.LastUpdate
	view.Issue = IssueData{
		IssueID:        &issue.ID,
		Title:          issue.Title,
		Status:         issue.Status,
		Priority:       issue.Priority,
		Category:       issue.Category,
		Module:         issue.Module,
		CenterID:       issue.CenterID,
		CandID:         issue.CandID,
		SessionID:      issue.SessionID,
		Assignee:       issue.Assignee,
		Reporter:       issue.Reporter,
		LastUpdatedBy:  issue.LastUpdatedBy,
		DateCreated:    issue.DateCreated,
		LastUpdate:     &lastUpdate,
		PSCID:          issue.PSCID,
		VisitLabel:     issue.VisitLabel,
		History:        lines,
		CommentHistory: &narrative,
		Watching:       watching,
	}
	view.IsOwnIssue = issue.Reporter == user.ID
	return view, nil
}

func (s *IssueService) assigneeOptions(ctx context.Context) ([]domain.Option, error) {
	users, err := s.users.ListAssignees(ctx)
	if err != nil {
		return nil, err
	}
	opts := make([]domain.Option, 0, len(users))
	for _, u := range users {
		opts = append(opts, domain.Option{Value: u.ID, Label: u.RealName})
	}
	return opts, nil
}

// siteOptions always starts with the "All" entry. Callers without
// access_all_profiles see only their own site, and only when it is a study site.
func (s *IssueService) siteOptions(ctx context.Context, actor auth.Identity) ([]domain.Option, error) {
	opts := []domain.Option{{Value: "", Label: "All"}}

	if actor.HasCapability(domain.CapabilityAccessAllProfiles) {
		sites, err := s.directory.ListSites(ctx)
		if err != nil {
			return nil, err
		}
		for _, site := range sites {
			if site.IsStudySite {
				opts = append(opts, domain.Option{Value: strconv.FormatInt(site.CenterID, 10), Label: site.Name})
			}
		}
		return opts, nil
	}

	user := actor.CurrentUser()
	site, err := s.directory.GetSite(ctx, user.CenterID)
	if errors.Is(err, domain.ErrNotFound) {
		return opts, nil
	}
	if err != nil {
		return nil, err
	}
	if site.IsStudySite {
		opts = append(opts, domain.Option{Value: strconv.FormatInt(user.CenterID, 10), Label: user.SiteName})
	}
	return opts, nil
}

func (s *IssueService) moduleOptions(ctx context.Context) ([]domain.Option, error) {
	modules, err := s.directory.ListModules(ctx)
	if err != nil {
		return nil, err
	}
	opts := make([]domain.Option, 0, len(modules))
	for _, m := range modules {
		opts = append(opts, domain.Option{Value: strconv.FormatInt(m.ID, 10), Label: m.Label})
	}
	return opts, nil
}
