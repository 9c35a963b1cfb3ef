package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SaveAdScript inserts or replaces the AI-proposed script for a (report, ad) pair.
func (s *Store) SaveAdScript(reportID int64, adID, scriptHTML string) error {
	_, err := s.db.Exec(`
		INSERT INTO ad_scripts (report_id, ad_id, script_html, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(report_id, ad_id) DO UPDATE SET
			script_html = excluded.script_html,
			updated_at = excluded.updated_at
	`, reportID, adID, scriptHTML, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save ad script: %w", err)
	}
	return nil
}

// UpdateAdScriptEdit stores the user-editable override for a script row.
func (s *Store) UpdateAdScriptEdit(id int64, editedHTML string) error {
	res, err := s.db.Exec(`
		UPDATE ad_scripts SET edited_html = ?, updated_at = ? WHERE id = ?
	`, editedHTML, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update ad script %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetAdScript returns one script row.
func (s *Store) GetAdScript(id int64) (*AdScript, error) {
	row := s.db.QueryRow(`
		SELECT id, report_id, ad_id, script_html, edited_html, updated_at
		FROM ad_scripts WHERE id = ?
	`, id)

	var sc AdScript
	err := row.Scan(&sc.ID, &sc.ReportID, &sc.AdID, &sc.ScriptHTML, &sc.EditedHTML, &sc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

// ListAdScripts returns all script rows for a report.
func (s *Store) ListAdScripts(reportID int64) ([]AdScript, error) {
	rows, err := s.db.Query(`
		SELECT id, report_id, ad_id, script_html, edited_html, updated_at
		FROM ad_scripts WHERE report_id = ? ORDER BY id
	`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scripts []AdScript
	for rows.Next() {
		var sc AdScript
		if err := rows.Scan(&sc.ID, &sc.ReportID, &sc.AdID, &sc.ScriptHTML, &sc.EditedHTML, &sc.UpdatedAt); err != nil {
			return nil, err
		}
		scripts = append(scripts, sc)
	}
	return scripts, rows.Err()
}

// RecordAnalysisError appends a per-ad failure for a multi-ad run.
func (s *Store) RecordAnalysisError(reportID int64, adID, message string) error {
	_, err := s.db.Exec(`
		INSERT INTO analysis_errors (report_id, ad_id, message) VALUES (?, ?, ?)
	`, reportID, adID, message)
	if err != nil {
		return fmt.Errorf("record analysis error: %w", err)
	}
	return nil
}

// ListAnalysisErrors returns the per-ad failures for a report.
func (s *Store) ListAnalysisErrors(reportID int64) ([]AnalysisError, error) {
	rows, err := s.db.Query(`
		SELECT id, report_id, ad_id, message, created_at
		FROM analysis_errors WHERE report_id = ? ORDER BY id
	`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var errs []AnalysisError
	for rows.Next() {
		var e AnalysisError
		if err := rows.Scan(&e.ID, &e.ReportID, &e.AdID, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		errs = append(errs, e)
	}
	return errs, rows.Err()
}
