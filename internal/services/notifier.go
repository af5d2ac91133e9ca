package services

import (
	"context"

	"github.com/ahmetcoskunkizilkaya/reportbot/internal/models"
)

// LogMessage locates the announcement of a report in the support channel.
type LogMessage struct {
	ChannelID string
	MessageID string
}

func (m LogMessage) IsZero() bool {
	return m.ChannelID == "" || m.MessageID == ""
}

// Notifier publishes lifecycle events to the audit channels. Every hook gets
// the report as stored after the transition.
type Notifier interface {
	// ReportSubmitted goes to the channel watched by support staff. The
	// returned location is saved on the report so later hooks can redraw it.
	ReportSubmitted(ctx context.Context, r models.Report) (LogMessage, error)
	// ReportClaimed redraws the announcement from r. It posts nothing new.
	ReportClaimed(ctx context.Context, r models.Report) error
	// ReportClosed goes to the closed-reports log and redraws the
	// announcement.
	ReportClosed(ctx context.Context, r models.Report) error
}

type NopNotifier struct{}

func (NopNotifier) ReportSubmitted(context.Context, models.Report) (LogMessage, error) {
	return LogMessage{}, nil
}
func (NopNotifier) ReportClaimed(context.Context, models.Report) error { return nil }
func (NopNotifier) ReportClosed(context.Context, models.Report) error  { return nil }
