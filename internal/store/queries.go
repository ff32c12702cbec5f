package store

import (
	"slices"
	"time"

	"github.com/lib/pq"
)

func (db *PgBuzzRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	res := db.conn.QueryRow(
		"INSERT INTO messages (id, text, sender_id, is_automated, sender_name, sender_avatar, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, text, sender_id, is_automated, created_at",
		params.Id,
		params.Text,
		params.SenderId,
		params.IsAutomated,
		params.SenderName,
		params.SenderAvatar,
		time.Now().UTC(),
	)

	var m Message
	err := res.Scan(
		&m.Id,
		&m.Text,
		&m.SenderId,
		&m.IsAutomated,
		&m.CreatedAt,
	)

	return m, err
}

// ListMessages returns the most recent limit messages in ascending creation
// order. The query selects newest-first so a large table still yields the
// current tail of the conversation, then the rows are reversed back into
// chronological order.
const listMessagesQuery = "SELECT id, text, sender_id, is_automated, COALESCE(sender_name, ''), COALESCE(sender_avatar, ''), created_at " +
	"FROM messages ORDER BY created_at DESC LIMIT $1"

func (db *PgBuzzRepository) ListMessages(limit int) ([]Message, error) {
	rows, err := db.conn.Query(listMessagesQuery, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.Id,
			&m.Text,
			&m.SenderId,
			&m.IsAutomated,
			&m.SenderName,
			&m.SenderAvatar,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.Reverse(messages)
	return messages, nil
}

func (db *PgBuzzRepository) GetProfile(id string) (Profile, error) {
	row := db.conn.QueryRow(
		"SELECT id, name, COALESCE(avatar, ''), tags, COALESCE(custom_status, ''), is_admin, updated_at "+
			"FROM profiles WHERE id = $1 LIMIT 1",
		id,
	)

	var p Profile
	err := row.Scan(
		&p.Id,
		&p.Name,
		&p.Avatar,
		pq.Array(&p.Tags),
		&p.CustomStatus,
		&p.IsAdmin,
		&p.UpdatedAt,
	)

	return p, err
}

func (db *PgBuzzRepository) UpdateProfile(params UpdateProfileParams) (Profile, error) {
	row := db.conn.QueryRow(
		"UPDATE profiles SET name = $2, avatar = $3, tags = $4, custom_status = $5, updated_at = $6 "+
			"WHERE id = $1 RETURNING id, name, COALESCE(avatar, ''), tags, COALESCE(custom_status, ''), is_admin, updated_at",
		params.Id,
		params.Name,
		params.Avatar,
		pq.Array(params.Tags),
		params.CustomStatus,
		time.Now().UTC(),
	)

	var p Profile
	err := row.Scan(
		&p.Id,
		&p.Name,
		&p.Avatar,
		pq.Array(&p.Tags),
		&p.CustomStatus,
		&p.IsAdmin,
		&p.UpdatedAt,
	)

	return p, err
}
