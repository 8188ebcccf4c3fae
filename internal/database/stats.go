package database

// GetStats returns aggregate database statistics for the dashboard.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM sources", &s.TotalSources},
		{"SELECT COUNT(*) FROM sources WHERE active = 1", &s.ActiveSources},
		{"SELECT COUNT(*) FROM items", &s.TotalItems},
		{"SELECT COUNT(*) FROM events", &s.TotalEvents},
		{"SELECT COUNT(*) FROM runs", &s.TotalRuns},
		{"SELECT COUNT(*) FROM briefs", &s.TotalBriefs},
		{"SELECT COUNT(*) FROM approvals WHERE status = 'pending'", &s.PendingApprovals},
		{"SELECT COUNT(*) FROM action_items WHERE status IN ('pending', 'in_progress')", &s.OpenActionItems},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	return s, nil
}
