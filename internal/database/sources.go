package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DefaultSources seed an empty installation with a starter watchlist of
// hospitality and travel-industry origins.
var DefaultSources = []struct {
	Name     string
	URL      string
	Category string
}{
	{"Marriott News", "https://news.marriott.com", "hotel"},
	{"Hilton Stories", "https://stories.hilton.com", "hotel"},
	{"Airbnb Newsroom", "https://news.airbnb.com", "accommodation"},
	{"Reuters Business", "https://www.reuters.com/business", "news"},
	{"U.S. Travel Association", "https://www.ustravel.org/press", "association"},
	{"TravelZoo Deals", "https://www.travelzoo.com/deals", "deals"},
}

// InsertSource creates a source and returns the stored row.
func (db *DB) InsertSource(name, url, category string) (*Source, error) {
	s := &Source{
		ID:        uuid.NewString(),
		Name:      name,
		URL:       url,
		Category:  category,
		Active:    true,
		CreatedAt: nowUTC(),
	}
	_, err := db.conn.Exec(
		`INSERT INTO sources (id, name, url, category, active, created_at)
		VALUES (?, ?, ?, ?, 1, ?)`,
		s.ID, s.Name, s.URL, s.Category, s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// SeedDefaultSources inserts the default watchlist when no sources exist.
// Returns the number of sources inserted.
func (db *DB) SeedDefaultSources() (int, error) {
	var count int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM sources").Scan(&count); err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}
	for _, d := range DefaultSources {
		if _, err := db.InsertSource(d.Name, d.URL, d.Category); err != nil {
			return 0, err
		}
	}
	return len(DefaultSources), nil
}

// GetAllSources returns every source, newest first.
func (db *DB) GetAllSources() ([]Source, error) {
	return db.querySources("SELECT id, name, url, category, active, created_at FROM sources ORDER BY created_at DESC")
}

// GetActiveSources returns sources eligible for the next run.
func (db *DB) GetActiveSources() ([]Source, error) {
	return db.querySources("SELECT id, name, url, category, active, created_at FROM sources WHERE active = 1 ORDER BY created_at")
}

// GetSource returns a single source by ID, or nil if missing.
func (db *DB) GetSource(sourceID string) (*Source, error) {
	row := db.conn.QueryRow(
		"SELECT id, name, url, category, active, created_at FROM sources WHERE id = ?",
		sourceID,
	)
	s, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// UpdateSource updates the provided fields. Returns false when the source
// does not exist.
func (db *DB) UpdateSource(sourceID string, name, url, category *string, active *bool) (bool, error) {
	var updates []string
	var args []any

	if name != nil {
		updates = append(updates, "name = ?")
		args = append(args, *name)
	}
	if url != nil {
		updates = append(updates, "url = ?")
		args = append(args, *url)
	}
	if category != nil {
		updates = append(updates, "category = ?")
		args = append(args, *category)
	}
	if active != nil {
		updates = append(updates, "active = ?")
		args = append(args, boolInt(*active))
	}
	if len(updates) == 0 {
		return false, nil
	}

	args = append(args, sourceID)
	query := fmt.Sprintf("UPDATE sources SET %s WHERE id = ?", strings.Join(updates, ", "))
	result, err := db.conn.Exec(query, args...)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// ToggleSource flips the active flag. Returns false when the source does
// not exist.
func (db *DB) ToggleSource(sourceID string) (bool, error) {
	result, err := db.conn.Exec(
		"UPDATE sources SET active = NOT active WHERE id = ?", sourceID,
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// DeleteSource removes a source immediately. Historical items and events
// are left in place.
func (db *DB) DeleteSource(sourceID string) (bool, error) {
	result, err := db.conn.Exec("DELETE FROM sources WHERE id = ?", sourceID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (db *DB) querySources(query string, args ...any) ([]Source, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var s Source
		var active int
		if err := rows.Scan(&s.ID, &s.Name, &s.URL, &s.Category, &active, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Active = active != 0
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

func scanSource(row *sql.Row) (*Source, error) {
	var s Source
	var active int
	if err := row.Scan(&s.ID, &s.Name, &s.URL, &s.Category, &active, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Active = active != 0
	return &s, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
