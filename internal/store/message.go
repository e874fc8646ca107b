package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/drakeet/messagestore/message"
)

// created_at is persisted as a zero-padded decimal string so that the
// lexical ORDER BY matches numeric timestamp order.
const createdAtWidth = 20

func encodeCreatedAt(ms int64) string {
	return fmt.Sprintf("%0*d", createdAtWidth, ms)
}

func decodeCreatedAt(s string) (int64, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode created_at %q: %w", s, err)
	}
	return ms, nil
}

// InsertMessage persists a new message row.
func (db *DB) InsertMessage(m *message.Message) error {
	_, err := db.Exec(`
		INSERT INTO messages (id, content, from_user_id, to_user_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.Content, m.FromUserID, m.ToUserID, encodeCreatedAt(m.CreatedAt))
	return err
}

// UpdateMessage rewrites the row with m's id. Updating a missing id
// affects zero rows and is not an error.
func (db *DB) UpdateMessage(m *message.Message) error {
	_, err := db.Exec(`
		UPDATE messages
		SET content = ?, from_user_id = ?, to_user_id = ?, created_at = ?
		WHERE id = ?`,
		m.Content, m.FromUserID, m.ToUserID, encodeCreatedAt(m.CreatedAt), m.ID)
	return err
}

// DeleteMessage removes the row with the given id, if present.
func (db *DB) DeleteMessage(id string) error {
	_, err := db.Exec(`DELETE FROM messages WHERE id = ?`, id)
	return err
}

// DeleteAll empties the messages table.
func (db *DB) DeleteAll() error {
	_, err := db.Exec(`DELETE FROM messages`)
	return err
}

// ListMessages loads the full table ordered by creation time ascending.
// Direction is derived per row by comparing to_user_id against
// currentUserID. Any row that fails to decode aborts the whole load.
func (db *DB) ListMessages(ctx context.Context, currentUserID string) ([]message.Message, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, content, from_user_id, to_user_id, created_at
		FROM messages
		ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	msgs := []message.Message{}
	for rows.Next() {
		m, err := scanMessage(rows, currentUserID)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func scanMessage(rows *sql.Rows, currentUserID string) (message.Message, error) {
	var m message.Message
	var createdAt string
	if err := rows.Scan(&m.ID, &m.Content, &m.FromUserID, &m.ToUserID, &createdAt); err != nil {
		return message.Message{}, err
	}
	ms, err := decodeCreatedAt(createdAt)
	if err != nil {
		return message.Message{}, err
	}
	m.CreatedAt = ms
	m.Direction = message.DirectionFor(m.ToUserID, currentUserID)
	return m, nil
}
