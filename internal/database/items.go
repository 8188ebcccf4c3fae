package database

import (
	"database/sql"

	"github.com/google/uuid"
)

// GetItemByURL returns the stored item for a URL, or nil when the URL has
// never been fetched.
func (db *DB) GetItemByURL(url string) (*Item, error) {
	row := db.conn.QueryRow(
		`SELECT id, source_id, url, title, content_text, content_hash, fetched_at, last_seen_at
		FROM items WHERE url = ?`, url,
	)
	var it Item
	err := row.Scan(&it.ID, &it.SourceID, &it.URL, &it.Title, &it.ContentText,
		&it.ContentHash, &it.FetchedAt, &it.LastSeenAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// InsertItem stores a newly seen URL.
func (db *DB) InsertItem(sourceID, url string, title, contentText *string, contentHash string) (*Item, error) {
	now := nowUTC()
	it := &Item{
		ID:          uuid.NewString(),
		SourceID:    sourceID,
		URL:         url,
		Title:       title,
		ContentText: contentText,
		ContentHash: contentHash,
		FetchedAt:   now,
		LastSeenAt:  now,
	}
	_, err := db.conn.Exec(
		`INSERT INTO items (id, source_id, url, title, content_text, content_hash, fetched_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.SourceID, it.URL, it.Title, it.ContentText, it.ContentHash, it.FetchedAt, it.LastSeenAt,
	)
	if err != nil {
		return nil, err
	}
	return it, nil
}

// UpdateItemContent replaces an item's content after a change was detected.
// Last writer wins when concurrent runs touch the same URL.
func (db *DB) UpdateItemContent(itemID string, title, contentText *string, contentHash string) error {
	now := nowUTC()
	_, err := db.conn.Exec(
		`UPDATE items SET title = ?, content_text = ?, content_hash = ?, fetched_at = ?, last_seen_at = ?
		WHERE id = ?`,
		title, contentText, contentHash, now, now, itemID,
	)
	return err
}

// TouchItem refreshes last_seen_at for unchanged content.
func (db *DB) TouchItem(itemID string) error {
	_, err := db.conn.Exec(
		"UPDATE items SET last_seen_at = ? WHERE id = ?", nowUTC(), itemID,
	)
	return err
}

// GetRecentItems returns the most recently fetched items.
func (db *DB) GetRecentItems(limit int) ([]Item, error) {
	rows, err := db.conn.Query(
		`SELECT id, source_id, url, title, content_text, content_hash, fetched_at, last_seen_at
		FROM items ORDER BY fetched_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.SourceID, &it.URL, &it.Title, &it.ContentText,
			&it.ContentHash, &it.FetchedAt, &it.LastSeenAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
