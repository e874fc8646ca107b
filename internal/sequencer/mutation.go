package sequencer

import "github.com/drakeet/messagestore/message"

// Op identifies a mutation variant.
type Op int

const (
	OpInsert Op = iota
	OpUpdate
	OpDelete
	OpClear
)

func (o Op) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	case OpClear:
		return "clear"
	}
	return "unknown"
}

// Mutation is one pending write. It is immutable after Enqueue; the
// sequencer owns it from that point on.
type Mutation struct {
	Op      Op
	Message *message.Message // insert and update
	ID      string           // delete
}

// Insert builds an insert mutation for m.
func Insert(m *message.Message) Mutation {
	return Mutation{Op: OpInsert, Message: m}
}

// Update builds an update mutation for m, keyed by m.ID.
func Update(m *message.Message) Mutation {
	return Mutation{Op: OpUpdate, Message: m}
}

// Delete builds a delete mutation for the given message id.
func Delete(id string) Mutation {
	return Mutation{Op: OpDelete, ID: id}
}

// Clear builds a delete-all mutation.
func Clear() Mutation {
	return Mutation{Op: OpClear}
}

func (m Mutation) messageID() string {
	if m.Message != nil {
		return m.Message.ID
	}
	return m.ID
}
