package store

import "time"

// ReportStatus is the lifecycle state of an analysis report.
type ReportStatus string

const (
	StatusPending   ReportStatus = "PENDING"
	StatusRunning   ReportStatus = "RUNNING"
	StatusCompleted ReportStatus = "COMPLETED"
	StatusFailed    ReportStatus = "FAILED"
)

// Terminal reports never transition again.
func (s ReportStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Client is an advertiser account the dashboard tracks.
type Client struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	AccessToken    string    `json:"-"`
	AdAccountID    string    `json:"ad_account_id"`
	SpendThreshold *float64  `json:"spend_threshold,omitempty"`
	CPAThreshold   *float64  `json:"cpa_threshold,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Report is one analysis run for a client.
type Report struct {
	ID             int64        `json:"id"`
	ClientID       int64        `json:"client_id"`
	Status         ReportStatus `json:"status"`
	MediaType      string       `json:"media_type"` // "image", "video" or "top"
	AdIDs          []string     `json:"ad_ids"`
	AnalysisHTML   string       `json:"analysis_html"`
	ScriptHTML     string       `json:"script_html"`
	AnalysisCost   float64      `json:"analysis_cost"`
	GenerationCost float64      `json:"generation_cost"`
	TotalCost      float64      `json:"total_cost"`
	ReportPath     string       `json:"report_path"`
	ErrorMessage   string       `json:"error_message"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// AdScript holds the AI-proposed script for one (report, ad) pair plus a
// user-editable override.
type AdScript struct {
	ID         int64     `json:"id"`
	ReportID   int64     `json:"report_id"`
	AdID       string    `json:"ad_id"`
	ScriptHTML string    `json:"script_html"`
	EditedHTML string    `json:"edited_html"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AnalysisError records a single ad's failure inside a multi-ad run.
type AnalysisError struct {
	ID        int64     `json:"id"`
	ReportID  int64     `json:"report_id"`
	AdID      string    `json:"ad_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
