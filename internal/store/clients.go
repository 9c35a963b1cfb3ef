package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// CreateClient inserts a client and returns its id.
func (s *Store) CreateClient(c *Client) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO clients (name, access_token, ad_account_id, spend_threshold, cpa_threshold)
		VALUES (?, ?, ?, ?, ?)
	`, c.Name, c.AccessToken, c.AdAccountID, c.SpendThreshold, c.CPAThreshold)
	if err != nil {
		return 0, fmt.Errorf("insert client: %w", err)
	}
	return res.LastInsertId()
}

// GetClient returns the client with the given id.
func (s *Store) GetClient(id int64) (*Client, error) {
	row := s.db.QueryRow(`
		SELECT id, name, access_token, ad_account_id, spend_threshold, cpa_threshold, created_at
		FROM clients WHERE id = ?
	`, id)
	return scanClient(row)
}

// ListClients returns all clients ordered by creation time.
func (s *Store) ListClients() ([]Client, error) {
	rows, err := s.db.Query(`
		SELECT id, name, access_token, ad_account_id, spend_threshold, cpa_threshold, created_at
		FROM clients ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.Name, &c.AccessToken, &c.AdAccountID, &c.SpendThreshold, &c.CPAThreshold, &c.CreatedAt); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// DeleteClient removes a client; reports, scripts and errors cascade.
func (s *Store) DeleteClient(id int64) error {
	res, err := s.db.Exec(`DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanClient(row *sql.Row) (*Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.Name, &c.AccessToken, &c.AdAccountID, &c.SpendThreshold, &c.CPAThreshold, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
