package database

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM users", &s.Users},
		{"SELECT COUNT(*) FROM messages", &s.Messages},
		{"SELECT COUNT(*) FROM knowledge_items", &s.KnowledgeItems},
		{"SELECT COUNT(*) FROM seen_articles", &s.SeenArticles},
		{"SELECT COUNT(*) FROM curation_runs", &s.CurationRuns},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	lastRun, err := db.GetLatestCurationRun()
	if err != nil {
		return nil, err
	}
	s.LastRun = lastRun

	return s, nil
}
