package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/issue-tracker/internal/auth"
	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/mail"
)

func ptr[T any](v T) *T { return &v }

type watchKey struct {
	userID  string
	issueID int64
}

type sessionRow struct {
	candID int64
	visit  string
}

// memStore is an in-memory stand-in for every repository the services use.
type memStore struct {
	mu sync.Mutex

	issues       map[int64]domain.Issue
	history      []domain.HistoryEntry
	comments     []domain.Comment
	commentEdits []domain.CommentEdit
	watching     map[watchKey]struct{}

	users      map[string]domain.User
	sites      map[int64]domain.Site
	modules    map[int64]string
	candidates map[int64]string
	sessions   map[int64]sessionRow

	nextID int64
	clock  time.Time
	fail   map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		issues:     map[int64]domain.Issue{},
		watching:   map[watchKey]struct{}{},
		users:      map[string]domain.User{},
		sites:      map[int64]domain.Site{},
		modules:    map[int64]string{},
		candidates: map[int64]string{},
		sessions:   map[int64]sessionRow{},
		clock:      time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		fail:       map[string]error{},
	}
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

type snapshot struct {
	issues       map[int64]domain.Issue
	history      []domain.HistoryEntry
	comments     []domain.Comment
	commentEdits []domain.CommentEdit
	watching     map[watchKey]struct{}
}

func (s *memStore) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		issues:       make(map[int64]domain.Issue, len(s.issues)),
		history:      append([]domain.HistoryEntry(nil), s.history...),
		comments:     append([]domain.Comment(nil), s.comments...),
		commentEdits: append([]domain.CommentEdit(nil), s.commentEdits...),
		watching:     make(map[watchKey]struct{}, len(s.watching)),
	}
	for k, v := range s.issues {
		snap.issues[k] = v
	}
	for k := range s.watching {
		snap.watching[k] = struct{}{}
	}
	return snap
}

func (s *memStore) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issues = snap.issues
	s.history = snap.history
	s.comments = snap.comments
	s.commentEdits = snap.commentEdits
	s.watching = snap.watching
}

// fakeTx rolls the store back when fn fails.
type fakeTx struct {
	store *memStore
}

func (t fakeTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := t.store.snapshot()
	if err := fn(ctx); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

func applyFields(issue *domain.Issue, f domain.IssueFields) {
	if f.Assignee != nil {
		issue.Assignee = f.Assignee
	}
	if f.Status != nil {
		issue.Status = *f.Status
	}
	if f.Priority != nil {
		issue.Priority = *f.Priority
	}
	if f.CenterID != nil {
		issue.CenterID = f.CenterID
	}
	if f.Title != nil {
		issue.Title = f.Title
	}
	if f.Category != nil {
		issue.Category = f.Category
	}
	if f.Module != nil {
		issue.Module = f.Module
	}
	if f.CandID != nil {
		issue.CandID = f.CandID
	}
	if f.SessionID != nil {
		issue.SessionID = f.SessionID
	}
	if f.LastUpdatedBy != "" {
		issue.LastUpdatedBy = ptr(f.LastUpdatedBy)
	}
	if f.Reporter != nil {
		issue.Reporter = *f.Reporter
	}
	if f.DateCreated != nil {
		issue.DateCreated = *f.DateCreated
	}
}

type issueRepo struct{ *memStore }

func (r issueRepo) Create(_ context.Context, f domain.IssueFields) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail["issue"]; err != nil {
		return 0, err
	}
	issue := domain.Issue{ID: r.id(), Status: domain.IssueStatusNew, Priority: domain.IssuePriorityLow}
	applyFields(&issue, f)
	issue.LastUpdate = r.tick()
	r.issues[issue.ID] = issue
	return issue.ID, nil
}

func (r issueRepo) Update(_ context.Context, id int64, f domain.IssueFields) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail["issue"]; err != nil {
		return err
	}
	issue, ok := r.issues[id]
	if !ok {
		return domain.ErrNotFound
	}
	applyFields(&issue, f)
	issue.LastUpdate = r.tick()
	r.issues[id] = issue
	return nil
}

func (r issueRepo) GetByID(_ context.Context, id int64) (*domain.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.issues[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if issue.CandID != nil {
		if pscid, ok := r.candidates[*issue.CandID]; ok {
			issue.PSCID = ptr(pscid)
		}
	}
	if issue.SessionID != nil {
		if s, ok := r.sessions[*issue.SessionID]; ok {
			issue.VisitLabel = ptr(s.visit)
		}
	}
	return &issue, nil
}

func (r issueRepo) GetLinkage(_ context.Context, id int64) (domain.SessionLinkage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.issues[id]
	if !ok {
		return domain.SessionLinkage{}, domain.ErrNotFound
	}
	link := domain.SessionLinkage{CandID: issue.CandID, SessionID: issue.SessionID}
	candID := issue.CandID
	if issue.SessionID != nil {
		if s, ok := r.sessions[*issue.SessionID]; ok {
			link.VisitLabel = ptr(s.visit)
			if candID == nil {
				candID = ptr(s.candID)
			}
		}
	}
	if candID != nil {
		if pscid, ok := r.candidates[*candID]; ok {
			link.PSCID = ptr(pscid)
		}
	}
	return link, nil
}

type historyRepo struct{ *memStore }

func (r historyRepo) Create(_ context.Context, e *domain.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail["history"]; err != nil {
		return err
	}
	e.ID = r.id()
	e.DateAdded = r.tick()
	r.history = append(r.history, *e)
	return nil
}

func (r historyRepo) ListByIssue(_ context.Context, issueID int64) ([]domain.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.HistoryEntry
	for _, e := range r.history {
		if e.IssueID == issueID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DateAdded.Equal(out[j].DateAdded) {
			return out[i].ID < out[j].ID
		}
		return out[i].DateAdded.Before(out[j].DateAdded)
	})
	return out, nil
}

func (r historyRepo) CreateCommentEdit(_ context.Context, e *domain.CommentEdit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.ID = r.id()
	e.DateAdded = r.tick()
	r.commentEdits = append(r.commentEdits, *e)
	return nil
}

type commentRepo struct{ *memStore }

func (r commentRepo) Create(_ context.Context, c *domain.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail["comment"]; err != nil {
		return err
	}
	c.ID = r.id()
	c.DateAdded = r.tick()
	r.comments = append(r.comments, *c)
	return nil
}

func (r commentRepo) GetByID(_ context.Context, id int64) (*domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.comments {
		if c.ID == id {
			c := c
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r commentRepo) ListByIssue(_ context.Context, issueID int64) ([]domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Comment
	for _, c := range r.comments {
		if c.IssueID == issueID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DateAdded.Equal(out[j].DateAdded) {
			return out[i].ID < out[j].ID
		}
		return out[i].DateAdded.Before(out[j].DateAdded)
	})
	return out, nil
}

type watchRepo struct{ *memStore }

func (r watchRepo) Watch(_ context.Context, userID string, issueID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watching[watchKey{userID, issueID}] = struct{}{}
	return nil
}

func (r watchRepo) Unwatch(_ context.Context, userID string, issueID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.watching, watchKey{userID, issueID})
	return nil
}

func (r watchRepo) IsWatching(_ context.Context, userID string, issueID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.watching[watchKey{userID, issueID}]
	return ok, nil
}

func (r watchRepo) ListWatchers(_ context.Context, issueID int64, exclude string) ([]domain.Watcher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Watcher
	for k := range r.watching {
		if k.issueID != issueID || k.userID == exclude {
			continue
		}
		u := r.users[k.userID]
		out = append(out, domain.Watcher{UserID: k.userID, Email: u.Email, RealName: u.RealName})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

type userRepo struct{ *memStore }

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) ListAssignees(context.Context) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.User
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type directoryRepo struct{ *memStore }

func (r directoryRepo) ListSites(context.Context) ([]domain.Site, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Site
	for _, s := range r.sites {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r directoryRepo) GetSite(_ context.Context, id int64) (*domain.Site, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail["directory"]; err != nil {
		return nil, err
	}
	s, ok := r.sites[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (r directoryRepo) ListModules(context.Context) ([]domain.Module, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Module
	for id, label := range r.modules {
		out = append(out, domain.Module{ID: id, Label: label})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (r directoryRepo) ModuleLabel(_ context.Context, id int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	label, ok := r.modules[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	return label, nil
}

func (r directoryRepo) CandidatePSCID(_ context.Context, candID int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pscid, ok := r.candidates[candID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return pscid, nil
}

func (r directoryRepo) CandidateIDByPSCID(_ context.Context, pscid string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.candidates {
		if p == pscid {
			return id, nil
		}
	}
	return 0, domain.ErrNotFound
}

func (r directoryRepo) SessionVisitLabel(_ context.Context, id int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	return s.visit, nil
}

func (r directoryRepo) FindSession(_ context.Context, pscid, visit string) (int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail["directory"]; err != nil {
		return 0, 0, err
	}
	for id, s := range r.sessions {
		if r.candidates[s.candID] == pscid && s.visit == visit {
			return id, s.candID, nil
		}
	}
	return 0, 0, domain.ErrNotFound
}

// recordingQueue captures queued jobs; recipients listed in fail are rejected.
type recordingQueue struct {
	mu   sync.Mutex
	jobs []mail.Job
	fail map[string]bool
}

func (q *recordingQueue) Enqueue(_ context.Context, job mail.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fail[job.To] {
		return errors.New("queue unavailable")
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) Dequeue(context.Context) (*mail.Job, error) { return nil, nil }

// seededStore holds two users, two sites, one module, candidate ABC123 with visit V1.
func seededStore() *memStore {
	s := newMemStore()
	s.users["admin"] = domain.User{ID: "admin", RealName: "Admin Account", Email: "admin@example.org", CenterID: 2, SiteName: "Montreal"}
	s.users["dev"] = domain.User{ID: "dev", RealName: "Dev One", Email: "dev@example.org", CenterID: 1, SiteName: "DCC"}
	s.sites[1] = domain.Site{CenterID: 1, Name: "DCC", IsStudySite: false}
	s.sites[2] = domain.Site{CenterID: 2, Name: "Montreal", IsStudySite: true}
	s.sites[3] = domain.Site{CenterID: 3, Name: "Ottawa", IsStudySite: true}
	s.modules[7] = "Imaging Browser"
	s.candidates[300001] = "ABC123"
	s.sessions[44] = sessionRow{candID: 300001, visit: "V1"}
	s.nextID = 1000
	return s
}

func admin(store *memStore, caps ...string) auth.Identity {
	return authPrincipal(store, "admin", caps...)
}

func authPrincipal(store *memStore, userID string, caps ...string) auth.Identity {
	return auth.NewPrincipal(store.users[userID], caps...)
}
