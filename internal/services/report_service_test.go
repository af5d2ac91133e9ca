package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/reportbot/internal/models"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/rate"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu        sync.Mutex
	submitted []models.Report
	claimed   []models.Report
	closed    []models.Report
	err       error
}

func (n *recordingNotifier) ReportSubmitted(_ context.Context, r models.Report) (LogMessage, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.submitted = append(n.submitted, r)
	if n.err != nil {
		return LogMessage{}, n.err
	}
	return LogMessage{ChannelID: "log-channel", MessageID: fmt.Sprintf("msg-%d", r.ID)}, nil
}

func (n *recordingNotifier) ReportClaimed(_ context.Context, r models.Report) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.claimed = append(n.claimed, r)
	return n.err
}

func (n *recordingNotifier) ReportClosed(_ context.Context, r models.Report) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = append(n.closed, r)
	return n.err
}

type harness struct {
	svc      *ReportService
	store    store.Store
	clock    *fakeClock
	notifier *recordingNotifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "reports.json"))
	require.NoError(t, err)
	return newHarnessWithStore(t, st)
}

func newHarnessWithStore(t *testing.T, st store.Store) *harness {
	t.Helper()
	h := &harness{
		store:    st,
		clock:    &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		notifier: &recordingNotifier{},
	}
	svc, err := NewReportService(context.Background(), st, rate.NewCooldown(rate.DefaultCooldown),
		WithClock(h.clock.Now),
		WithNotifier(h.notifier),
	)
	require.NoError(t, err)
	h.svc = svc
	return h
}

func (h *harness) submit(t *testing.T, reporter string) models.Report {
	t.Helper()
	r, err := h.svc.Submit(context.Background(), SubmitInput{TargetUserID: "12345", Reason: "spam", ReporterID: reporter})
	require.NoError(t, err)
	return r
}

func TestReportLifecycle_Scenario(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	r, err := h.svc.Submit(ctx, SubmitInput{TargetUserID: "12345", Reason: "spam", ReporterID: "A"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.ID)
	assert.Equal(t, models.StatusOpen, r.Status())

	r, err = h.svc.Claim(ctx, 1, "M1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusClaimed, r.Status())
	assert.Equal(t, "M1", r.ClaimedByID())

	_, err = h.svc.Claim(ctx, 1, "M2")
	assert.ErrorIs(t, err, ErrAlreadyClaimed)

	_, err = h.svc.Close(ctx, 1, "M2", "x")
	assert.ErrorIs(t, err, ErrNotClaimant)

	r, err = h.svc.Close(ctx, 1, "M1", "resolved")
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, r.Status())
	assert.Equal(t, "M1", r.ResolvedByID())
	require.NotNil(t, r.CloseReason)
	assert.Equal(t, "resolved", *r.CloseReason)

	stored, err := h.store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, r, stored)

	require.Len(t, h.notifier.submitted, 1)
	require.Len(t, h.notifier.claimed, 1)
	require.Len(t, h.notifier.closed, 1)
	assert.Equal(t, int64(1), h.notifier.closed[0].ID)
}

func TestSubmit_SavesLogMessage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	r := h.submit(t, "A")

	channelID, messageID, ok := r.LogMessage()
	require.True(t, ok)
	assert.Equal(t, "log-channel", channelID)
	assert.Equal(t, "msg-1", messageID)

	stored, err := h.store.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r, stored)
}

func TestTransitions_CarryLogMessage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.submit(t, "A")

	_, err := h.svc.Claim(ctx, 1, "M1")
	require.NoError(t, err)
	_, err = h.svc.Close(ctx, 1, "M1", "warned")
	require.NoError(t, err)

	require.Len(t, h.notifier.claimed, 1)
	claimed := h.notifier.claimed[0]
	assert.Equal(t, models.StatusClaimed, claimed.Status())
	_, messageID, ok := claimed.LogMessage()
	require.True(t, ok)
	assert.Equal(t, "msg-1", messageID)

	require.Len(t, h.notifier.closed, 1)
	closed := h.notifier.closed[0]
	assert.Equal(t, models.StatusClosed, closed.Status())
	_, messageID, ok = closed.LogMessage()
	require.True(t, ok)
	assert.Equal(t, "msg-1", messageID)
}

func TestTransitions_FailedGuardDoesNotNotify(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.submit(t, "A")

	_, err := h.svc.Close(ctx, 1, "M1", "x")
	require.ErrorIs(t, err, ErrNotClaimant)
	_, err = h.svc.Claim(ctx, 1, "M1")
	require.NoError(t, err)
	_, err = h.svc.Claim(ctx, 1, "M2")
	require.ErrorIs(t, err, ErrAlreadyClaimed)

	assert.Len(t, h.notifier.claimed, 1)
	assert.Empty(t, h.notifier.closed)
}

func TestSubmit_IDsStrictlyIncrease(t *testing.T) {
	h := newHarness(t)

	var last int64
	for i := 0; i < 10; i++ {
		r := h.submit(t, fmt.Sprintf("reporter-%d", i))
		assert.Greater(t, r.ID, last)
		last = r.ID
	}
	assert.Equal(t, int64(10), last)
}

func TestSubmit_ConcurrentIDsAreUnique(t *testing.T) {
	h := newHarness(t)

	const n = 25
	ids := make([]int64, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			r, err := h.svc.Submit(context.Background(), SubmitInput{
				TargetUserID: "42",
				Reason:       "raid",
				ReporterID:   fmt.Sprintf("member-%d", i),
			})
			ids[i] = r.ID
			return err
		})
	}
	require.NoError(t, g.Wait())

	seen := map[int64]bool{}
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	reports, err := h.svc.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, reports, n)
}

func TestSubmit_ContinuesAfterExistingReports(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "reports.json"))
	require.NoError(t, err)
	for _, id := range []int64{2, 5} {
		require.NoError(t, st.Append(ctx, models.Report{ID: id, TargetUserID: "1", Reason: "r", ReporterID: "x"}))
	}

	h := newHarnessWithStore(t, st)
	assert.Equal(t, int64(6), h.submit(t, "A").ID)
}

func TestSubmit_Cooldown(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.submit(t, "A")

	h.clock.Advance(30 * time.Second)
	_, err := h.svc.Submit(ctx, SubmitInput{TargetUserID: "12345", Reason: "again", ReporterID: "A"})
	require.ErrorIs(t, err, ErrRateLimited)

	var rl *RateLimitedError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 90*time.Second, rl.RetryAfter)

	h.submit(t, "B")

	h.clock.Advance(90 * time.Second)
	r := h.submit(t, "A")
	assert.Equal(t, int64(3), r.ID)
}

func TestSubmit_Validation(t *testing.T) {
	tests := []struct {
		name   string
		target string
		reason string
		msg    string
	}{
		{name: "letters in target", target: "abc123", reason: "spam", msg: "only digits"},
		{name: "empty target", target: "", reason: "spam", msg: "only digits"},
		{name: "signed target", target: "-12", reason: "spam", msg: "only digits"},
		{name: "target too long", target: strings.Repeat("1", MaxTargetIDLength+1), reason: "spam", msg: "at most 32 digits"},
		{name: "empty reason", target: "12345", reason: "   ", msg: "reason is required"},
		{name: "reason too long", target: "12345", reason: strings.Repeat("x", MaxReasonLength+1), msg: "at most"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t)

			_, err := h.svc.Submit(ctx, SubmitInput{TargetUserID: tt.target, Reason: tt.reason, ReporterID: "A"})
			require.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, err.Error(), tt.msg)

			reports, err := h.svc.List(ctx, "")
			require.NoError(t, err)
			assert.Empty(t, reports)
			assert.Empty(t, h.notifier.submitted)

			// The counter did not move.
			assert.Equal(t, int64(1), h.submit(t, "B").ID)
		})
	}
}

func TestSubmit_RejectedSubmissionConsumesCooldown(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Submit(context.Background(), SubmitInput{TargetUserID: "abc123", Reason: "spam", ReporterID: "A"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = h.svc.Submit(context.Background(), SubmitInput{TargetUserID: "123", Reason: "spam", ReporterID: "A"})
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestSubmit_TrimsInput(t *testing.T) {
	h := newHarness(t)

	r, err := h.svc.Submit(context.Background(), SubmitInput{TargetUserID: " 12345\n", Reason: "  spam  ", ReporterID: "A"})
	require.NoError(t, err)
	assert.Equal(t, "12345", r.TargetUserID)
	assert.Equal(t, "spam", r.Reason)
}

func TestSubmit_RequiresReporter(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Submit(context.Background(), SubmitInput{TargetUserID: "1", Reason: "spam"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSubmit_TargetAtLengthLimit(t *testing.T) {
	h := newHarness(t)

	r, err := h.svc.Submit(context.Background(), SubmitInput{
		TargetUserID: strings.Repeat("9", MaxTargetIDLength), Reason: "spam", ReporterID: "A",
	})
	require.NoError(t, err)
	assert.Len(t, r.TargetUserID, MaxTargetIDLength)
}

func TestMemberIDLength(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	uuidSubject := "0b6f3c1e-8a4d-4f5e-9c2b-7d1e6a3f9b20"
	tooLong := strings.Repeat("x", MaxMemberIDLength+1)

	_, err := h.svc.Submit(ctx, SubmitInput{TargetUserID: "12345", Reason: "spam", ReporterID: tooLong})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "reporter ID must be at most 64 characters")

	r, err := h.svc.Submit(ctx, SubmitInput{TargetUserID: "12345", Reason: "spam", ReporterID: uuidSubject})
	require.NoError(t, err)
	assert.Equal(t, uuidSubject, r.ReporterID)

	_, err = h.svc.Claim(ctx, r.ID, tooLong)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = h.svc.Close(ctx, r.ID, tooLong, "done")
	assert.ErrorIs(t, err, ErrValidation)

	stored, err := h.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, stored.Status())
}

type failingAppendStore struct {
	store.Store
	fail bool
}

func (s *failingAppendStore) Append(ctx context.Context, r models.Report) error {
	if s.fail {
		return errors.New("disk full")
	}
	return s.Store.Append(ctx, r)
}

func TestSubmit_StoreFailureKeepsCounter(t *testing.T) {
	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "reports.json"))
	require.NoError(t, err)
	flaky := &failingAppendStore{Store: st, fail: true}
	h := newHarnessWithStore(t, flaky)

	_, err = h.svc.Submit(context.Background(), SubmitInput{TargetUserID: "1", Reason: "spam", ReporterID: "A"})
	require.Error(t, err)
	assert.False(t, IsUserError(err))
	assert.Empty(t, h.notifier.submitted)

	flaky.fail = false
	assert.Equal(t, int64(1), h.submit(t, "B").ID)
}

func TestSubmit_NotificationFailureKeepsReport(t *testing.T) {
	h := newHarness(t)
	h.notifier.err = errors.New("discord down")

	r := h.submit(t, "A")
	_, _, ok := r.LogMessage()
	assert.False(t, ok)

	stored, err := h.svc.Get(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, r, stored)
}

func TestClaim_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.submit(t, "A")

	const staff = 20
	results := make([]error, staff)
	var g errgroup.Group
	for i := 0; i < staff; i++ {
		g.Go(func() error {
			_, results[i] = h.svc.Claim(ctx, 1, fmt.Sprintf("M%d", i))
			return nil
		})
	}
	require.NoError(t, g.Wait())

	winners := 0
	winner := ""
	for i, err := range results {
		if err == nil {
			winners++
			winner = fmt.Sprintf("M%d", i)
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyClaimed)
	}
	require.Equal(t, 1, winners)

	r, err := h.svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, winner, r.ClaimedByID())
}

func TestClaim_Errors(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.svc.Claim(ctx, 99, "M1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.False(t, IsUserError(err))

	h.submit(t, "A")
	_, err = h.svc.Claim(ctx, 1, "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.svc.Claim(ctx, 1, "M1")
	require.NoError(t, err)
	_, err = h.svc.Close(ctx, 1, "M1", "done")
	require.NoError(t, err)

	_, err = h.svc.Claim(ctx, 1, "M2")
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
}

func TestClaim_LegacyClosedWithoutClaimant(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "reports.json"))
	require.NoError(t, err)
	require.NoError(t, st.Append(ctx, models.Report{ID: 1, TargetUserID: "1", Reason: "r", ReporterID: "x", IsClosed: true}))
	h := newHarnessWithStore(t, st)

	_, err = h.svc.Claim(ctx, 1, "M1")
	assert.ErrorIs(t, err, ErrAlreadyClosed)
}

func TestClose_Guards(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.submit(t, "A")

	_, err := h.svc.Close(ctx, 1, "M1", "done")
	assert.ErrorIs(t, err, ErrNotClaimant, "unclaimed report")

	_, err = h.svc.Claim(ctx, 1, "M1")
	require.NoError(t, err)

	_, err = h.svc.Close(ctx, 1, "A", "done")
	assert.ErrorIs(t, err, ErrNotClaimant, "the submitter is not the claimant")

	_, err = h.svc.Close(ctx, 1, "M1", " ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.svc.Close(ctx, 1, "M1", "done")
	require.NoError(t, err)

	_, err = h.svc.Close(ctx, 1, "M1", "again")
	assert.ErrorIs(t, err, ErrAlreadyClosed)
	_, err = h.svc.Close(ctx, 1, "M2", "again")
	assert.ErrorIs(t, err, ErrAlreadyClosed)

	r, err := h.svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "M1", r.ResolvedByID())
	assert.Equal(t, "done", *r.CloseReason)
	assert.Len(t, h.notifier.closed, 1)

	_, err = h.svc.Close(ctx, 2, "M1", "done")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCheckCloser(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.submit(t, "A")
	_, err := h.svc.Claim(ctx, 1, "M1")
	require.NoError(t, err)

	r, err := h.svc.CheckCloser(ctx, 1, "M1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.ID)

	_, err = h.svc.CheckCloser(ctx, 1, "M2")
	assert.ErrorIs(t, err, ErrNotClaimant)

	r, err = h.svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, r.IsClosed)
}

func TestList_FiltersByStatus(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	for _, reporter := range []string{"A", "B", "C"} {
		h.submit(t, reporter)
	}
	_, err := h.svc.Claim(ctx, 2, "M1")
	require.NoError(t, err)
	_, err = h.svc.Claim(ctx, 3, "M1")
	require.NoError(t, err)
	_, err = h.svc.Close(ctx, 3, "M1", "warned")
	require.NoError(t, err)

	tests := map[models.ReportStatus][]int64{
		"":                   {1, 2, 3},
		models.StatusOpen:    {1},
		models.StatusClaimed: {2},
		models.StatusClosed:  {3},
	}
	for status, want := range tests {
		reports, err := h.svc.List(ctx, status)
		require.NoError(t, err)
		got := make([]int64, 0, len(reports))
		for _, r := range reports {
			got = append(got, r.ID)
		}
		assert.Equal(t, want, got, "status %q", status)
	}
}

func TestIsUserError(t *testing.T) {
	assert.True(t, IsUserError(validationError("bad")))
	assert.True(t, IsUserError(&RateLimitedError{RetryAfter: time.Second}))
	assert.True(t, IsUserError(fmt.Errorf("wrapped: %w", ErrAlreadyClosed)))
	assert.False(t, IsUserError(store.ErrDuplicateID))
	assert.False(t, IsUserError(errors.New("boom")))
}
