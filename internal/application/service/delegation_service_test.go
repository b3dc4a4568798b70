package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/timesheet-approval/internal/domain/apperr"
	"github.com/garyjia/timesheet-approval/internal/domain/entity"
	"github.com/garyjia/timesheet-approval/internal/domain/event"
	"github.com/garyjia/timesheet-approval/internal/domain/period"
)

type delegationFixture struct {
	repo      *memDelegationRepo
	directory *mockDirectory
	sink      *memAuditSink
	publisher *recordingPublisher
	svc       DelegationService
}

func newDelegationFixture(now time.Time) *delegationFixture {
	f := &delegationFixture{
		repo: newMemDelegationRepo(),
		directory: newMockDirectory(
			user("mgr-1", entity.RoleManager, "lead-1"),
			user("mgr-2", entity.RoleManager, "lead-1"),
			user("lead-1", entity.RoleLeadership, ""),
			user("admin-1", entity.RoleAdmin, ""),
			user("emp-1", entity.RoleEmployee, "mgr-1"),
			&entity.User{ID: "gone-1", DisplayName: "Former Manager", Role: entity.RoleManager, IsActive: false},
		),
		sink:      &memAuditSink{},
		publisher: &recordingPublisher{},
	}
	f.svc = NewDelegationService(f.repo, f.directory, f.sink, &mockTxManager{}, f.publisher, fixedClock(now), &mockLogger{})
	return f
}

func grant(delegator, delegate string, start, end time.Time) CreateDelegationInput {
	return CreateDelegationInput{
		DelegatorID: delegator,
		DelegateID:  delegate,
		StartDate:   start,
		EndDate:     end,
		Reason:      "annual leave",
		CreatedBy:   delegator,
	}
}

func TestCreateDelegation_Validation(t *testing.T) {
	tests := []struct {
		name    string
		in      CreateDelegationInput
		wantMsg string
	}{
		{name: "self delegation manager", in: grant("mgr-1", "mgr-1", day(6), day(8)), wantMsg: "self-delegation"},
		{name: "self delegation admin", in: grant("admin-1", "admin-1", day(6), day(8)), wantMsg: "self-delegation"},
		{name: "self delegation unknown user", in: grant("ghost", "ghost", day(6), day(8)), wantMsg: "self-delegation"},
		{name: "start after end", in: grant("mgr-1", "mgr-2", day(9), day(8)), wantMsg: "invalid range"},
		{name: "unknown delegate", in: grant("mgr-1", "ghost", day(6), day(8)), wantMsg: "inactive user"},
		{name: "inactive delegate", in: grant("mgr-1", "gone-1", day(6), day(8)), wantMsg: "inactive user"},
		{name: "inactive delegator", in: grant("gone-1", "mgr-2", day(6), day(8)), wantMsg: "inactive user"},
		{name: "employee delegate", in: grant("mgr-1", "emp-1", day(6), day(8)), wantMsg: "ineligible delegate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDelegationFixture(testNow)

			d, err := f.svc.CreateDelegation(context.Background(), tt.in)
			require.Error(t, err)
			assert.Nil(t, d)
			assert.ErrorIs(t, err, apperr.ErrValidation)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Zero(t, f.sink.count())
		})
	}
}

func TestCreateDelegation_SingleDayRangeIsValid(t *testing.T) {
	f := newDelegationFixture(testNow)

	d, err := f.svc.CreateDelegation(context.Background(), grant("mgr-1", "mgr-2", day(6), day(6)))
	require.NoError(t, err)
	assert.Equal(t, 1, d.Period.Days())
}

func TestCreateDelegation_Success(t *testing.T) {
	f := newDelegationFixture(testNow)

	in := grant("mgr-1", "lead-1", day(6).Add(15*time.Hour), day(8))
	in.Reason = "  PTO  "
	d, err := f.svc.CreateDelegation(context.Background(), in)
	require.NoError(t, err)

	assert.NotZero(t, d.ID)
	assert.True(t, d.IsActive)
	assert.Equal(t, "PTO", d.Reason)
	assert.Equal(t, day(6), d.Period.Start, "start is truncated to its calendar date")
	assert.Equal(t, testNow, d.CreatedAt)

	entry := f.sink.last()
	require.NotNil(t, entry)
	assert.Equal(t, entity.SubjectDelegation, entry.SubjectKind)
	assert.Equal(t, entity.AuditActionCreated, entry.Action)
	assert.Equal(t, d.ID, entry.SubjectID)
	assert.Equal(t, entity.DelegationCreated{
		DelegatorID: "mgr-1",
		DelegateID:  "lead-1",
		StartDate:   "2025-01-06",
		EndDate:     "2025-01-08",
		Reason:      "PTO",
	}, entry.Details)

	require.Len(t, f.publisher.events, 1)
	evt := f.publisher.events[0]
	assert.Equal(t, event.TypeDelegationCreated, evt.Type)
	assert.Equal(t, "lead-1", evt.GetPayloadString(event.KeyRecipientUserID))
}

func TestCreateDelegation_Overlap(t *testing.T) {
	tests := []struct {
		name      string
		start     time.Time
		end       time.Time
		delegator string
		wantErr   error
	}{
		{name: "inside existing window", start: day(3), end: day(5), delegator: "mgr-1", wantErr: apperr.ErrConflict},
		{name: "straddles end", start: day(8), end: day(15), delegator: "mgr-1", wantErr: apperr.ErrConflict},
		{name: "touches first day", start: time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC), end: day(1), delegator: "mgr-1", wantErr: apperr.ErrConflict},
		{name: "touches last day", start: day(10), end: day(10), delegator: "mgr-1", wantErr: apperr.ErrConflict},
		{name: "covers existing window", start: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), end: day(31), delegator: "mgr-1", wantErr: apperr.ErrConflict},
		{name: "starts day after", start: day(11), end: day(20), delegator: "mgr-1"},
		{name: "ends day before", start: time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC), end: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), delegator: "mgr-1"},
		{name: "other delegator same delegate", start: day(1), end: day(10), delegator: "mgr-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDelegationFixture(testNow)
			existing, err := f.svc.CreateDelegation(context.Background(), grant("mgr-1", "lead-1", day(1), day(10)))
			require.NoError(t, err)

			_, err = f.svc.CreateDelegation(context.Background(), grant(tt.delegator, "lead-1", tt.start, tt.end))
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), "2025-01-01..2025-01-10")

			conflict, ok := apperr.DetailOf(err).(*entity.Delegation)
			require.True(t, ok, "conflict carries the existing delegation")
			assert.Equal(t, existing.ID, conflict.ID)
		})
	}
}

func TestCreateDelegation_RevokedDoesNotBlockOverlap(t *testing.T) {
	f := newDelegationFixture(testNow)
	first, err := f.svc.CreateDelegation(context.Background(), grant("mgr-1", "lead-1", day(1), day(10)))
	require.NoError(t, err)
	_, err = f.svc.RevokeDelegation(context.Background(), first.ID, "mgr-1")
	require.NoError(t, err)

	_, err = f.svc.CreateDelegation(context.Background(), grant("mgr-1", "mgr-2", day(5), day(12)))
	assert.NoError(t, err)
}

func TestCreateDelegation_CreatorMustBeDelegatorOrAdmin(t *testing.T) {
	f := newDelegationFixture(testNow)

	in := grant("mgr-1", "mgr-2", day(6), day(8))
	in.CreatedBy = "lead-1"
	_, err := f.svc.CreateDelegation(context.Background(), in)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)

	for _, creator := range []string{"", "ghost", "gone-1"} {
		in.CreatedBy = creator
		_, err = f.svc.CreateDelegation(context.Background(), in)
		assert.ErrorIs(t, err, apperr.ErrAuthorization, "creator %q", creator)
	}

	in.CreatedBy = "admin-1"
	d, err := f.svc.CreateDelegation(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", d.CreatedBy)
	assert.Equal(t, "admin-1", f.sink.last().ActorID)
}

func TestCreateDelegation_StoreUnavailable(t *testing.T) {
	f := newDelegationFixture(testNow)
	f.repo.insertErr = errors.New("database is locked")

	_, err := f.svc.CreateDelegation(context.Background(), grant("mgr-1", "mgr-2", day(6), day(8)))
	assert.ErrorIs(t, err, apperr.ErrServiceUnavailable)
	assert.Empty(t, f.publisher.events)
}

func TestCreateDelegation_AuditFailure(t *testing.T) {
	t.Run("transactional sink fails the operation", func(t *testing.T) {
		f := newDelegationFixture(testNow)
		f.sink.err = errors.New("disk full")

		d, err := f.svc.CreateDelegation(context.Background(), grant("mgr-1", "mgr-2", day(6), day(8)))
		require.Error(t, err)
		assert.Nil(t, d)
		assert.ErrorIs(t, err, apperr.ErrInternal)
		assert.Contains(t, err.Error(), "audit write failed")
		assert.Empty(t, f.publisher.events)
	})

	t.Run("detached sink reports partial failure", func(t *testing.T) {
		f := newDelegationFixture(testNow)
		f.sink.err = errors.New("audit service timeout")
		f.sink.detached = true

		_, err := f.svc.CreateDelegation(context.Background(), grant("mgr-1", "mgr-2", day(6), day(8)))
		require.Error(t, err)
		assert.ErrorIs(t, err, apperr.ErrPartialFailure)

		stored, qerr := f.svc.DelegationsGivenBy(context.Background(), "mgr-1")
		require.NoError(t, qerr)
		assert.Len(t, stored, 1, "the delegation itself was committed")
	})
}

func TestRevokeDelegation(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		f := newDelegationFixture(testNow)
		_, err := f.svc.RevokeDelegation(context.Background(), 99, "mgr-1")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("unrelated actor", func(t *testing.T) {
		f := newDelegationFixture(testNow)
		d, err := f.svc.CreateDelegation(context.Background(), grant("mgr-1", "mgr-2", day(6), day(8)))
		require.NoError(t, err)

		_, err = f.svc.RevokeDelegation(context.Background(), d.ID, "mgr-2")
		assert.ErrorIs(t, err, apperr.ErrAuthorization)
	})

	t.Run("delegator revokes then revocation is terminal", func(t *testing.T) {
		f := newDelegationFixture(testNow)
		d, err := f.svc.CreateDelegation(context.Background(), grant("mgr-1", "mgr-2", day(6), day(8)))
		require.NoError(t, err)

		revoked, err := f.svc.RevokeDelegation(context.Background(), d.ID, "mgr-1")
		require.NoError(t, err)
		assert.False(t, revoked.IsActive)
		require.NotNil(t, revoked.RevokedAt)
		assert.Equal(t, testNow, *revoked.RevokedAt)
		assert.Equal(t, "mgr-1", revoked.RevokedBy)

		entry := f.sink.last()
		assert.Equal(t, entity.AuditActionRevoked, entry.Action)
		assert.Equal(t, entity.DelegationRevoked{DelegatorID: "mgr-1", DelegateID: "mgr-2", ActorRole: entity.RoleManager}, entry.Details)

		_, err = f.svc.RevokeDelegation(context.Background(), d.ID, "mgr-1")
		assert.ErrorIs(t, err, apperr.ErrState)

		active, err := f.svc.ActiveDelegationsFor(context.Background(), "mgr-2", testNow)
		require.NoError(t, err)
		assert.Empty(t, active, "revoked delegation is excluded inside its window")

		assert.Equal(t, []event.Type{event.TypeDelegationCreated, event.TypeDelegationRevoked}, f.publisher.types())
	})

	t.Run("admin revokes someone else's delegation", func(t *testing.T) {
		f := newDelegationFixture(testNow)
		d, err := f.svc.CreateDelegation(context.Background(), grant("mgr-1", "mgr-2", day(6), day(8)))
		require.NoError(t, err)

		_, err = f.svc.RevokeDelegation(context.Background(), d.ID, "admin-1")
		require.NoError(t, err)
		assert.Equal(t, entity.RoleAdmin, f.sink.last().Details.(entity.DelegationRevoked).ActorRole)
	})

	t.Run("admin role comes from the directory", func(t *testing.T) {
		f := newDelegationFixture(testNow)
		d, err := f.svc.CreateDelegation(context.Background(), grant("mgr-1", "mgr-2", day(6), day(8)))
		require.NoError(t, err)

		for _, actor := range []string{"lead-1", "ghost", "gone-1", ""} {
			_, err = f.svc.RevokeDelegation(context.Background(), d.ID, actor)
			assert.ErrorIs(t, err, apperr.ErrAuthorization, "actor %q", actor)
		}

		f.directory.users["admin-1"].IsActive = false
		_, err = f.svc.RevokeDelegation(context.Background(), d.ID, "admin-1")
		assert.ErrorIs(t, err, apperr.ErrAuthorization, "a deactivated admin keeps no override")

		stored, err := f.svc.GetDelegation(context.Background(), d.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsActive)
	})

	t.Run("directory unavailable", func(t *testing.T) {
		f := newDelegationFixture(testNow)
		d, err := f.svc.CreateDelegation(context.Background(), grant("mgr-1", "mgr-2", day(6), day(8)))
		require.NoError(t, err)
		f.directory.getUserFunc = func(ctx context.Context, userID string) (*entity.User, error) {
			return nil, errors.New("connection refused")
		}

		_, err = f.svc.RevokeDelegation(context.Background(), d.ID, "mgr-1")
		assert.ErrorIs(t, err, apperr.ErrServiceUnavailable)
	})
}

func TestActiveDelegationsFor(t *testing.T) {
	t.Run("expiry is evaluated at query time", func(t *testing.T) {
		f := newDelegationFixture(testNow)
		r, _ := period.New(day(1), day(10))
		f.repo.seed(&entity.Delegation{DelegatorID: "mgr-1", DelegateID: "mgr-2", Period: r, IsActive: true})

		active, err := f.svc.ActiveDelegationsFor(context.Background(), "mgr-2", day(10).Add(23*time.Hour))
		require.NoError(t, err)
		assert.Len(t, active, 1, "last day is inclusive")

		active, err = f.svc.ActiveDelegationsFor(context.Background(), "mgr-2", day(11))
		require.NoError(t, err)
		assert.Empty(t, active)

		stored, err := f.svc.GetDelegation(context.Background(), 1)
		require.NoError(t, err)
		assert.True(t, stored.IsActive, "expiry never touches storage")
	})

	t.Run("earliest start first across delegators", func(t *testing.T) {
		f := newDelegationFixture(testNow)
		late, _ := period.New(day(5), day(9))
		early, _ := period.New(day(2), day(9))
		f.repo.seed(&entity.Delegation{DelegatorID: "mgr-1", DelegateID: "lead-1", Period: late, IsActive: true})
		f.repo.seed(&entity.Delegation{DelegatorID: "mgr-2", DelegateID: "lead-1", Period: early, IsActive: true})

		active, err := f.svc.ActiveDelegationsFor(context.Background(), "lead-1", time.Time{})
		require.NoError(t, err)
		require.Len(t, active, 2)
		assert.Equal(t, "mgr-2", active[0].DelegatorID)
		assert.Equal(t, "mgr-1", active[1].DelegatorID)
	})

	t.Run("future delegation is not active", func(t *testing.T) {
		f := newDelegationFixture(testNow)
		_, err := f.svc.CreateDelegation(context.Background(), grant("mgr-1", "mgr-2", day(7), day(9)))
		require.NoError(t, err)

		active, err := f.svc.ActiveDelegationsFor(context.Background(), "mgr-2", testNow)
		require.NoError(t, err)
		assert.Empty(t, active)
	})
}

func TestDelegationHistory(t *testing.T) {
	f := newDelegationFixture(testNow)
	first, err := f.svc.CreateDelegation(context.Background(), grant("mgr-1", "mgr-2", day(6), day(8)))
	require.NoError(t, err)
	second, err := f.svc.CreateDelegation(context.Background(), grant("mgr-1", "lead-1", day(20), day(22)))
	require.NoError(t, err)

	given, err := f.svc.DelegationsGivenBy(context.Background(), "mgr-1")
	require.NoError(t, err)
	require.Len(t, given, 2)
	assert.Equal(t, second.ID, given[0].ID)
	assert.Equal(t, first.ID, given[1].ID)

	received, err := f.svc.DelegationsReceivedBy(context.Background(), "lead-1")
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, second.ID, received[0].ID)
}

func TestEligibleDelegates(t *testing.T) {
	f := newDelegationFixture(testNow)
	f.directory.users["mgr-2"].DisplayName = "Alice"
	f.directory.users["lead-1"].DisplayName = "Bob"
	f.directory.users["admin-1"].DisplayName = "Carol"

	users, err := f.svc.EligibleDelegates(context.Background(), "mgr-1")
	require.NoError(t, err)

	var ids []string
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	assert.Equal(t, []string{"mgr-2", "lead-1", "admin-1"}, ids)

	f.directory.listErr = errors.New("directory offline")
	_, err = f.svc.EligibleDelegates(context.Background(), "mgr-1")
	assert.ErrorIs(t, err, apperr.ErrServiceUnavailable)
}
