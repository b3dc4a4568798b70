package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/timesheet-approval/internal/application/port"
	"github.com/garyjia/timesheet-approval/internal/domain/entity"
	"github.com/garyjia/timesheet-approval/internal/domain/event"
)

var testNow = time.Date(2025, 1, 6, 10, 30, 0, 0, time.UTC)

func day(d int) time.Time {
	return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC)
}

func fixedClock(t time.Time) port.Clock {
	return port.ClockFunc(func() time.Time { return t })
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

// Directory and org chart

type mockDirectory struct {
	users       map[string]*entity.User
	getUserFunc func(ctx context.Context, userID string) (*entity.User, error)
	listErr     error
}

func newMockDirectory(users ...*entity.User) *mockDirectory {
	m := &mockDirectory{users: make(map[string]*entity.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockDirectory) GetUser(ctx context.Context, userID string) (*entity.User, error) {
	if m.getUserFunc != nil {
		return m.getUserFunc(ctx, userID)
	}
	return m.users[userID], nil
}

func (m *mockDirectory) ListActiveUsers(ctx context.Context) ([]*entity.User, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var users []*entity.User
	for _, u := range m.users {
		if u.IsActive {
			users = append(users, u)
		}
	}
	return users, nil
}

type mockOrg struct {
	managers map[string]string
	err      error
}

func (m *mockOrg) GetDirectManager(ctx context.Context, userID string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.managers[userID], nil
}

func user(id string, role entity.Role, managerID string) *entity.User {
	return &entity.User{ID: id, DisplayName: "User " + id, Role: role, IsActive: true, ManagerID: managerID}
}

// Delegation repository

type memDelegationRepo struct {
	mu        sync.Mutex
	nextID    int64
	items     map[int64]*entity.Delegation
	queryFunc func(ctx context.Context, filter port.DelegationFilter) ([]*entity.Delegation, error)
	insertErr error
}

func newMemDelegationRepo() *memDelegationRepo {
	return &memDelegationRepo{items: make(map[int64]*entity.Delegation)}
}

func (r *memDelegationRepo) GetByID(ctx context.Context, id int64) (*entity.Delegation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.items[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *memDelegationRepo) Insert(ctx context.Context, d *entity.Delegation) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	d.ID = r.nextID
	cp := *d
	r.items[d.ID] = &cp
	return nil
}

func (r *memDelegationRepo) Update(ctx context.Context, id int64, patch port.DelegationPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.items[id]
	if !ok {
		return port.ErrNotFound
	}
	d.IsActive = patch.IsActive
	d.RevokedAt = patch.RevokedAt
	d.RevokedBy = patch.RevokedBy
	return nil
}

func (r *memDelegationRepo) Query(ctx context.Context, filter port.DelegationFilter) ([]*entity.Delegation, error) {
	if r.queryFunc != nil {
		return r.queryFunc(ctx, filter)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*entity.Delegation
	for _, d := range r.items {
		if filter.DelegatorID != "" && d.DelegatorID != filter.DelegatorID {
			continue
		}
		if filter.DelegateID != "" && d.DelegateID != filter.DelegateID {
			continue
		}
		if filter.ActiveOnly && !d.IsActive {
			continue
		}
		if filter.CoversDate != nil && !d.Period.Contains(*filter.CoversDate) {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		if filter.OrderBy == port.OrderStartAscending {
			return out[i].Period.Start.Before(out[j].Period.Start)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// seed stores a delegation directly, bypassing the service
func (r *memDelegationRepo) seed(d *entity.Delegation) *entity.Delegation {
	_ = r.Insert(context.Background(), d)
	return d
}

// Timesheet repository

type memTimesheetRepo struct {
	mu          sync.Mutex
	sheets      map[int64]*entity.Timesheet
	entries     map[int64][]*entity.TimeEntry
	updateFunc  func(ctx context.Context, id int64, patch port.TimesheetPatch) error
	entriesErr  error
	countErr    error
	getEntries  int
	updateCalls int
}

func newMemTimesheetRepo() *memTimesheetRepo {
	return &memTimesheetRepo{
		sheets:  make(map[int64]*entity.Timesheet),
		entries: make(map[int64][]*entity.TimeEntry),
	}
}

func (r *memTimesheetRepo) GetByID(ctx context.Context, id int64) (*entity.Timesheet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts, ok := r.sheets[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	cp := *ts
	return &cp, nil
}

func (r *memTimesheetRepo) UpdateStatus(ctx context.Context, id int64, patch port.TimesheetPatch) error {
	r.updateCalls++
	if r.updateFunc != nil {
		return r.updateFunc(ctx, id, patch)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ts, ok := r.sheets[id]
	if !ok {
		return port.ErrNotFound
	}
	if ts.Version != patch.ExpectedVersion {
		return port.ErrVersionConflict
	}
	ts.Status = patch.Status
	ts.SubmittedAt = patch.SubmittedAt
	ts.ApprovedAt = patch.ApprovedAt
	ts.ApprovedByUserID = patch.ApprovedByUserID
	ts.ReturnReason = patch.ReturnReason
	ts.IsLocked = patch.IsLocked
	ts.Version++
	return nil
}

func (r *memTimesheetRepo) GetEntries(ctx context.Context, timesheetID int64) ([]*entity.TimeEntry, error) {
	if r.entriesErr != nil {
		return nil, r.entriesErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getEntries++
	return r.entries[timesheetID], nil
}

func (r *memTimesheetRepo) CountEntries(ctx context.Context, timesheetID int64) (int, error) {
	if r.countErr != nil {
		return 0, r.countErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries[timesheetID]), nil
}

func (r *memTimesheetRepo) stored(id int64) *entity.Timesheet {
	ts, _ := r.GetByID(context.Background(), id)
	return ts
}

// Audit sink

type memAuditSink struct {
	mu       sync.Mutex
	entries  []*entity.AuditEntry
	err      error
	detached bool
}

func (s *memAuditSink) Append(ctx context.Context, entry *entity.AuditEntry) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memAuditSink) Detached() bool {
	return s.detached
}

func (s *memAuditSink) last() *entity.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return nil
	}
	return s.entries[len(s.entries)-1]
}

func (s *memAuditSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Transactions and events

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (p *recordingPublisher) DispatchAsync(ctx context.Context, evt *event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) types() []event.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]event.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type mockNotifier struct {
	notifyFunc func(ctx context.Context, user *entity.User, message string) error
	sent       map[string][]string
}

func (m *mockNotifier) Notify(ctx context.Context, user *entity.User, message string) error {
	if m.notifyFunc != nil {
		return m.notifyFunc(ctx, user, message)
	}
	if m.sent == nil {
		m.sent = make(map[string][]string)
	}
	m.sent[user.ID] = append(m.sent[user.ID], message)
	return nil
}
