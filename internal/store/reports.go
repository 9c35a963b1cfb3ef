package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CreateReport inserts a PENDING report for a client.
func (s *Store) CreateReport(clientID int64, mediaType string) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO reports (client_id, status, media_type) VALUES (?, ?, ?)
	`, clientID, StatusPending, mediaType)
	if err != nil {
		return 0, fmt.Errorf("insert report: %w", err)
	}
	return res.LastInsertId()
}

// GetReport returns the report with the given id.
func (s *Store) GetReport(id int64) (*Report, error) {
	row := s.db.QueryRow(`
		SELECT id, client_id, status, media_type, ad_ids, analysis_html, script_html,
			analysis_cost, generation_cost, total_cost, report_path, error_message,
			created_at, updated_at
		FROM reports WHERE id = ?
	`, id)

	var r Report
	var adIDs string
	err := row.Scan(&r.ID, &r.ClientID, &r.Status, &r.MediaType, &adIDs,
		&r.AnalysisHTML, &r.ScriptHTML, &r.AnalysisCost, &r.GenerationCost,
		&r.TotalCost, &r.ReportPath, &r.ErrorMessage, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(adIDs), &r.AdIDs); err != nil {
		return nil, fmt.Errorf("decode ad ids for report %d: %w", r.ID, err)
	}
	return &r, nil
}

// ListReportsForClient returns a client's reports, newest first.
func (s *Store) ListReportsForClient(clientID int64) ([]Report, error) {
	rows, err := s.db.Query(`
		SELECT id, client_id, status, media_type, ad_ids, analysis_html, script_html,
			analysis_cost, generation_cost, total_cost, report_path, error_message,
			created_at, updated_at
		FROM reports WHERE client_id = ? ORDER BY created_at DESC, id DESC
	`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		var r Report
		var adIDs string
		if err := rows.Scan(&r.ID, &r.ClientID, &r.Status, &r.MediaType, &adIDs,
			&r.AnalysisHTML, &r.ScriptHTML, &r.AnalysisCost, &r.GenerationCost,
			&r.TotalCost, &r.ReportPath, &r.ErrorMessage, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(adIDs), &r.AdIDs); err != nil {
			return nil, fmt.Errorf("decode ad ids for report %d: %w", r.ID, err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// TransitionReport moves a report from one status to another. The WHERE
// clause guards monotonicity: a COMPLETED or FAILED row never matches and
// the update is reported as ErrNotFound.
func (s *Store) TransitionReport(id int64, from, to ReportStatus) error {
	res, err := s.db.Exec(`
		UPDATE reports SET status = ?, updated_at = ? WHERE id = ? AND status = ?
	`, to, time.Now().UTC(), id, from)
	if err != nil {
		return fmt.Errorf("transition report %d %s->%s: %w", id, from, to, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetReportAdIDs records which ads a running report covers.
func (s *Store) SetReportAdIDs(id int64, adIDs []string) error {
	data, _ := json.Marshal(adIDs)
	_, err := s.db.Exec(`UPDATE reports SET ad_ids = ?, updated_at = ? WHERE id = ?`,
		string(data), time.Now().UTC(), id)
	return err
}

// ReportResult is the terminal payload written when a run finishes.
type ReportResult struct {
	AnalysisHTML   string
	ScriptHTML     string
	AnalysisCost   float64
	GenerationCost float64
	ReportPath     string
}

// CompleteReport stores the result and moves RUNNING -> COMPLETED.
func (s *Store) CompleteReport(id int64, res ReportResult) error {
	out, err := s.db.Exec(`
		UPDATE reports SET status = ?, analysis_html = ?, script_html = ?,
			analysis_cost = ?, generation_cost = ?, total_cost = ?,
			report_path = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, StatusCompleted, res.AnalysisHTML, res.ScriptHTML,
		res.AnalysisCost, res.GenerationCost, res.AnalysisCost+res.GenerationCost,
		res.ReportPath, time.Now().UTC(), id, StatusRunning)
	if err != nil {
		return fmt.Errorf("complete report %d: %w", id, err)
	}
	if n, _ := out.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// FailReport records the error and moves a non-terminal report to FAILED.
func (s *Store) FailReport(id int64, message string) error {
	out, err := s.db.Exec(`
		UPDATE reports SET status = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)
	`, StatusFailed, message, time.Now().UTC(), id, StatusPending, StatusRunning)
	if err != nil {
		return fmt.Errorf("fail report %d: %w", id, err)
	}
	if n, _ := out.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteReport removes a report; scripts and errors cascade.
func (s *Store) DeleteReport(id int64) error {
	res, err := s.db.Exec(`DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
