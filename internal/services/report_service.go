package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ahmetcoskunkizilkaya/reportbot/internal/logging"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/models"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/rate"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/store"
)

const (
	// MaxReasonLength matches the Discord embed field value limit so that a
	// report always renders in full.
	MaxReasonLength = 1024
	// MaxTargetIDLength fits any Discord snowflake with room to spare.
	MaxTargetIDLength = 32
	// MaxMemberIDLength bounds reporter and staff identities. API callers are
	// identified by their token subject, which may be a UUID rather than a
	// snowflake.
	MaxMemberIDLength = 64
)

type SubmitInput struct {
	TargetUserID string
	Reason       string
	ReporterID   string
}

// ReportService owns the report lifecycle: open -> claimed -> closed.
type ReportService struct {
	store    store.Store
	cooldown *rate.Cooldown
	notifier Notifier
	now      func() time.Time

	mu     sync.Mutex
	nextID int64
}

type Option func(*ReportService)

func WithNotifier(n Notifier) Option {
	return func(s *ReportService) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *ReportService) {
		s.now = now
	}
}

// NewReportService reads the next free report ID once; afterwards IDs are
// handed out from memory for the lifetime of the service.
func NewReportService(ctx context.Context, st store.Store, cooldown *rate.Cooldown, opts ...Option) (*ReportService, error) {
	next, err := st.NextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("initial report id: %w", err)
	}

	s := &ReportService{
		store:    st,
		cooldown: cooldown,
		notifier: NopNotifier{},
		now:      time.Now,
		nextID:   next,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submit files a new open report. The reporter's cooldown is consumed as soon
// as it is checked, so a submission rejected by validation still counts.
func (s *ReportService) Submit(ctx context.Context, in SubmitInput) (models.Report, error) {
	if err := validateMemberID("reporter", in.ReporterID); err != nil {
		return models.Report{}, err
	}

	now := s.now()
	if ok, retryAfter := s.cooldown.Allow(in.ReporterID, now); !ok {
		return models.Report{}, &RateLimitedError{RetryAfter: retryAfter}
	}

	target := strings.TrimSpace(in.TargetUserID)
	if !isDigits(target) {
		return models.Report{}, validationError("user ID must contain only digits")
	}
	if len(target) > MaxTargetIDLength {
		return models.Report{}, validationError(fmt.Sprintf("user ID must be at most %d digits", MaxTargetIDLength))
	}
	reason := strings.TrimSpace(in.Reason)
	if err := validateText("reason", reason); err != nil {
		return models.Report{}, err
	}

	s.mu.Lock()
	report := models.Report{
		ID:           s.nextID,
		TargetUserID: target,
		Reason:       reason,
		ReporterID:   in.ReporterID,
	}
	if err := s.store.Append(ctx, report); err != nil {
		s.mu.Unlock()
		return models.Report{}, fmt.Errorf("save report %d: %w", report.ID, err)
	}
	s.nextID++
	s.mu.Unlock()

	log := logging.FromContext(ctx)
	log.Info("report submitted", "action", "submit", "report_id", report.ID, "user_id", in.ReporterID, "target_user_id", target)

	msg, err := s.notifier.ReportSubmitted(ctx, report)
	if err != nil {
		log.Error("new report notification failed", "action", "submit", "report_id", report.ID, "error", err)
		return report, nil
	}
	if msg.IsZero() {
		return report, nil
	}

	updated, err := s.store.Update(ctx, report.ID, func(r *models.Report) error {
		r.LogChannelID = &msg.ChannelID
		r.LogMessageID = &msg.MessageID
		return nil
	})
	if err != nil {
		log.Error("log message reference not saved", "action", "submit", "report_id", report.ID, "error", err)
		return report, nil
	}
	// A claim or close that landed before the reference was saved could not
	// redraw the announcement. ReportClaimed only redraws, so the closed log
	// is not posted twice.
	if updated.Status() != models.StatusOpen {
		if err := s.notifier.ReportClaimed(ctx, updated); err != nil {
			log.Error("report notification failed", "action", "submit", "report_id", report.ID, "error", err)
		}
	}
	return updated, nil
}

// Claim assigns an open report to staffID. The first claimer wins.
func (s *ReportService) Claim(ctx context.Context, id int64, staffID string) (models.Report, error) {
	if err := validateMemberID("staff member", staffID); err != nil {
		return models.Report{}, err
	}

	report, err := s.store.Update(ctx, id, func(r *models.Report) error {
		if r.ClaimedBy != nil {
			return ErrAlreadyClaimed
		}
		if r.IsClosed {
			return ErrAlreadyClosed
		}
		claimant := staffID
		r.ClaimedBy = &claimant
		return nil
	})
	if err != nil {
		return models.Report{}, err
	}

	logging.FromContext(ctx).Info("report claimed", "action", "claim", "report_id", id, "user_id", staffID)
	s.notifyTransition(ctx, report)
	return report, nil
}

// Close resolves a claimed report. Only the claimant may close it.
func (s *ReportService) Close(ctx context.Context, id int64, staffID, closingReason string) (models.Report, error) {
	if err := validateMemberID("staff member", staffID); err != nil {
		return models.Report{}, err
	}
	reason := strings.TrimSpace(closingReason)
	if err := validateText("closing reason", reason); err != nil {
		return models.Report{}, err
	}

	report, err := s.store.Update(ctx, id, func(r *models.Report) error {
		if err := checkCloser(*r, staffID); err != nil {
			return err
		}
		closer := staffID
		r.IsClosed = true
		r.ResolvedBy = &closer
		r.CloseReason = &reason
		return nil
	})
	if err != nil {
		return models.Report{}, err
	}

	logging.FromContext(ctx).Info("report closed", "action", "close", "report_id", id, "user_id", staffID)
	s.notifyTransition(ctx, report)
	return report, nil
}

// notifyTransition runs the hook for the report's current status. Failures
// are logged only; the transition is already stored.
func (s *ReportService) notifyTransition(ctx context.Context, r models.Report) {
	var err error
	switch r.Status() {
	case models.StatusClaimed:
		err = s.notifier.ReportClaimed(ctx, r)
	case models.StatusClosed:
		err = s.notifier.ReportClosed(ctx, r)
	default:
		return
	}
	if err != nil {
		logging.FromContext(ctx).Error("report notification failed", "action", string(r.Status()), "report_id", r.ID, "error", err)
	}
}

// CheckCloser applies the close guards without changing anything. The chat
// layer uses it before asking for a closing reason; Close checks again.
func (s *ReportService) CheckCloser(ctx context.Context, id int64, staffID string) (models.Report, error) {
	report, err := s.store.Get(ctx, id)
	if err != nil {
		return models.Report{}, err
	}
	if err := checkCloser(report, staffID); err != nil {
		return report, err
	}
	return report, nil
}

func (s *ReportService) Get(ctx context.Context, id int64) (models.Report, error) {
	return s.store.Get(ctx, id)
}

// List returns all reports, or only those in status when it is non-empty.
func (s *ReportService) List(ctx context.Context, status models.ReportStatus) ([]models.Report, error) {
	reports, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return reports, nil
	}

	filtered := make([]models.Report, 0, len(reports))
	for _, r := range reports {
		if r.Status() == status {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

func checkCloser(r models.Report, staffID string) error {
	if r.IsClosed {
		return ErrAlreadyClosed
	}
	if r.ClaimedBy == nil || *r.ClaimedBy != staffID {
		return ErrNotClaimant
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func validateMemberID(field, id string) error {
	if id == "" {
		return validationError(field + " is required")
	}
	if len(id) > MaxMemberIDLength {
		return validationError(fmt.Sprintf("%s ID must be at most %d characters", field, MaxMemberIDLength))
	}
	return nil
}

func validateText(field, value string) error {
	if value == "" {
		return validationError(field + " is required")
	}
	if utf8.RuneCountInString(value) > MaxReasonLength {
		return validationError(fmt.Sprintf("%s must be at most %d characters", field, MaxReasonLength))
	}
	return nil
}
