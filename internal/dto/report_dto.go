package dto

import "github.com/ahmetcoskunkizilkaya/reportbot/internal/models"

type CreateReportRequest struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

type CloseReportRequest struct {
	Reason string `json:"reason"`
}

// ReportView is the rendered form of a report shared by chat embeds and the
// staff API. It is rebuilt from stored state after every transition.
type ReportView struct {
	ID           int64               `json:"report_id"`
	TargetUserID string              `json:"user_id"`
	Reason       string              `json:"reason"`
	ReporterID   string              `json:"reported_by"`
	Status       models.ReportStatus `json:"status"`
	StatusLabel  string              `json:"status_label"`
	ClaimedBy    string              `json:"claimed_by,omitempty"`
	ResolvedBy   string              `json:"resolved_by,omitempty"`
	CloseReason  string              `json:"close_reason,omitempty"`
}

func NewReportView(r models.Report) ReportView {
	v := ReportView{
		ID:           r.ID,
		TargetUserID: r.TargetUserID,
		Reason:       r.Reason,
		ReporterID:   r.ReporterID,
		Status:       r.Status(),
		StatusLabel:  r.Status().Label(),
		ClaimedBy:    r.ClaimedByID(),
		ResolvedBy:   r.ResolvedByID(),
	}
	if r.CloseReason != nil {
		v.CloseReason = *r.CloseReason
	}
	return v
}

func NewReportViews(reports []models.Report) []ReportView {
	views := make([]ReportView, 0, len(reports))
	for _, r := range reports {
		views = append(views, NewReportView(r))
	}
	return views
}

type ReportListResponse struct {
	Reports []ReportView `json:"reports"`
	Total   int          `json:"total"`
}
