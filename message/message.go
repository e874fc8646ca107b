// Package message defines the chat message domain type shared by the
// storage gateway, the write sequencer and the snapshot repository.
package message

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Direction classifies a message relative to the current user. It is
// derived when rows are loaded, never persisted.
type Direction int

const (
	// Inbound is a message whose recipient is not the current user.
	Inbound Direction = iota
	// Outbound is a message addressed to the current user identity.
	Outbound
)

func (d Direction) String() string {
	if d == Outbound {
		return "outbound"
	}
	return "inbound"
}

// Message is a single chat message. CreatedAt is the ordering key,
// expressed in Unix milliseconds.
type Message struct {
	ID         string
	FromUserID string
	ToUserID   string
	Content    string
	CreatedAt  int64
	Direction  Direction
}

// NewText builds an outgoing text message with a fresh id and the
// current time as its ordering key.
func NewText(fromUserID, toUserID, content string) *Message {
	return &Message{
		ID:         uuid.NewString(),
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Content:    content,
		CreatedAt:  time.Now().UnixMilli(),
	}
}

// DirectionFor returns Outbound when the recipient is the current user
// identity, Inbound otherwise.
func DirectionFor(toUserID, currentUserID string) Direction {
	if toUserID == currentUserID {
		return Outbound
	}
	return Inbound
}

// Validate reports whether the message can be persisted.
func (m *Message) Validate() error {
	if m == nil {
		return errors.New("nil message")
	}
	if m.ID == "" {
		return errors.New("message id is empty")
	}
	if m.FromUserID == "" || m.ToUserID == "" {
		return errors.New("message participants are empty")
	}
	if m.CreatedAt <= 0 {
		return errors.New("message created_at is not set")
	}
	return nil
}
