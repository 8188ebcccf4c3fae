package database

import (
	"github.com/google/uuid"
)

// InsertTeamMember adds a member to the assignment roster.
func (db *DB) InsertTeamMember(name string, title, email *string, roleType string) (*TeamMember, error) {
	m := &TeamMember{
		ID:        uuid.NewString(),
		Name:      name,
		Title:     title,
		Email:     email,
		RoleType:  roleType,
		Active:    true,
		CreatedAt: nowUTC(),
	}
	_, err := db.conn.Exec(
		`INSERT INTO team_members (id, name, title, email, role_type, active, created_at)
		VALUES (?, ?, ?, ?, ?, 1, ?)`,
		m.ID, m.Name, m.Title, m.Email, m.RoleType, m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetTeamMembers returns the full roster in join order.
func (db *DB) GetTeamMembers() ([]TeamMember, error) {
	return db.queryTeamMembers(
		"SELECT id, name, title, email, role_type, active, created_at FROM team_members ORDER BY created_at")
}

// GetActiveTeamMembers returns members eligible for task assignment, in
// join order so round-robin assignment is stable.
func (db *DB) GetActiveTeamMembers() ([]TeamMember, error) {
	return db.queryTeamMembers(
		"SELECT id, name, title, email, role_type, active, created_at FROM team_members WHERE active = 1 ORDER BY created_at")
}

func (db *DB) queryTeamMembers(query string, args ...any) ([]TeamMember, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []TeamMember
	for rows.Next() {
		var m TeamMember
		var active int
		if err := rows.Scan(&m.ID, &m.Name, &m.Title, &m.Email, &m.RoleType,
			&active, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Active = active != 0
		members = append(members, m)
	}
	return members, rows.Err()
}
