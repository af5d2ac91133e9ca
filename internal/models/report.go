package models

// ReportStatus is the lifecycle state derived from a report's fields.
type ReportStatus string

const (
	StatusOpen    ReportStatus = "open"
	StatusClaimed ReportStatus = "claimed"
	StatusClosed  ReportStatus = "closed"
)

// Label returns the human-readable form used in chat embeds.
func (s ReportStatus) Label() string {
	switch s {
	case StatusClaimed:
		return "Claimed"
	case StatusClosed:
		return "Closed"
	default:
		return "Open"
	}
}

// ParseReportStatus accepts open, claimed or closed.
func ParseReportStatus(s string) (ReportStatus, bool) {
	switch ReportStatus(s) {
	case StatusOpen, StatusClaimed, StatusClosed:
		return ReportStatus(s), true
	}
	return "", false
}

// Report is a member's complaint against another member. The JSON tags are the
// on-disk layout of the reports file and must stay stable.
type Report struct {
	ID           int64   `gorm:"column:report_id;primaryKey;autoIncrement:false" json:"report_id"`
	TargetUserID string  `gorm:"column:user_id;size:32;not null;index" json:"user_id"`
	Reason       string  `gorm:"type:text;not null" json:"reason"`
	ReporterID   string  `gorm:"column:reported_by;size:64;not null;index" json:"reported_by"`
	IsClosed     bool    `gorm:"not null;default:false;index" json:"is_closed"`
	ResolvedBy   *string `gorm:"size:64" json:"resolved_by"`
	ClaimedBy    *string `gorm:"size:64" json:"claimed_by"`
	CloseReason  *string `gorm:"type:text" json:"close_reason,omitempty"`
	LogChannelID *string `gorm:"size:32" json:"log_channel_id,omitempty"`
	LogMessageID *string `gorm:"size:32" json:"log_message_id,omitempty"`
}

func (Report) TableName() string {
	return "reports"
}

func (r Report) Status() ReportStatus {
	switch {
	case r.IsClosed:
		return StatusClosed
	case r.ClaimedBy != nil:
		return StatusClaimed
	default:
		return StatusOpen
	}
}

// ClaimedByID returns the claimant or "" when unclaimed.
func (r Report) ClaimedByID() string {
	if r.ClaimedBy == nil {
		return ""
	}
	return *r.ClaimedBy
}

// ResolvedByID returns the closer or "" while the report is open.
func (r Report) ResolvedByID() string {
	if r.ResolvedBy == nil {
		return ""
	}
	return *r.ResolvedBy
}

// LogMessage returns where the report was announced, if that was recorded.
func (r Report) LogMessage() (channelID, messageID string, ok bool) {
	if r.LogChannelID == nil || r.LogMessageID == nil {
		return "", "", false
	}
	return *r.LogChannelID, *r.LogMessageID, true
}
