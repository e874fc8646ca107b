package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/drakeet/messagestore/message"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate; a second run must be a no-op.
	version, changed, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Error("second Migrate() should report changed=false")
	}
	if version != 1 {
		t.Errorf("version = %d, want 1", version)
	}
}

func TestInsertAndListOrdering(t *testing.T) {
	db := testDB(t)

	// Insert out of timestamp order; List must sort by created_at.
	later := &message.Message{ID: "m2", Content: "yo", FromUserID: "u2", ToUserID: "u1", CreatedAt: 200}
	earlier := &message.Message{ID: "m1", Content: "hi", FromUserID: "u1", ToUserID: "u2", CreatedAt: 100}
	if err := db.InsertMessage(later); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertMessage(earlier); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListMessages(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].ID != "m1" || msgs[1].ID != "m2" {
		t.Errorf("order = [%s %s], want [m1 m2]", msgs[0].ID, msgs[1].ID)
	}
	if msgs[0].CreatedAt != 100 {
		t.Errorf("created_at = %d, want 100", msgs[0].CreatedAt)
	}
}

func TestCreatedAtSortsAcrossWidths(t *testing.T) {
	db := testDB(t)

	// "99" sorts after "100" as plain text; the padded encoding must not.
	if err := db.InsertMessage(&message.Message{ID: "big", Content: "x", FromUserID: "a", ToUserID: "b", CreatedAt: 100}); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertMessage(&message.Message{ID: "small", Content: "x", FromUserID: "a", ToUserID: "b", CreatedAt: 99}); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListMessages(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if msgs[0].ID != "small" {
		t.Errorf("first id = %q, want small", msgs[0].ID)
	}
}

func TestDirectionDerivedAtLoad(t *testing.T) {
	db := testDB(t)

	if err := db.InsertMessage(&message.Message{ID: "to-me", Content: "x", FromUserID: "u2", ToUserID: "u1", CreatedAt: 1}); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertMessage(&message.Message{ID: "to-peer", Content: "x", FromUserID: "u1", ToUserID: "u2", CreatedAt: 2}); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListMessages(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if msgs[0].Direction != message.Outbound {
		t.Errorf("to_user_id=current user: direction = %v, want outbound", msgs[0].Direction)
	}
	if msgs[1].Direction != message.Inbound {
		t.Errorf("to_user_id=peer: direction = %v, want inbound", msgs[1].Direction)
	}
}

func TestUpdateMessage(t *testing.T) {
	db := testDB(t)

	m := &message.Message{ID: "m1", Content: "hi", FromUserID: "u1", ToUserID: "u2", CreatedAt: 100}
	if err := db.InsertMessage(m); err != nil {
		t.Fatal(err)
	}
	m.Content = "hi, edited"
	if err := db.UpdateMessage(m); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListMessages(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Content != "hi, edited" {
		t.Errorf("got %v, want single edited message", msgs)
	}
}

func TestDeleteAndClear(t *testing.T) {
	db := testDB(t)

	for _, m := range []*message.Message{
		{ID: "m1", Content: "a", FromUserID: "u1", ToUserID: "u2", CreatedAt: 1},
		{ID: "m2", Content: "b", FromUserID: "u1", ToUserID: "u2", CreatedAt: 2},
	} {
		if err := db.InsertMessage(m); err != nil {
			t.Fatal(err)
		}
	}

	if err := db.DeleteMessage("m1"); err != nil {
		t.Fatal(err)
	}
	msgs, err := db.ListMessages(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].ID != "m2" {
		t.Errorf("after delete got %v, want [m2]", msgs)
	}

	// Deleting a missing id is not an error.
	if err := db.DeleteMessage("nope"); err != nil {
		t.Errorf("delete missing id: %v", err)
	}

	if err := db.DeleteAll(); err != nil {
		t.Fatal(err)
	}
	msgs, err = db.ListMessages(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Errorf("after clear got %d messages, want 0", len(msgs))
	}
	// Clearing an empty table is also fine.
	if err := db.DeleteAll(); err != nil {
		t.Errorf("second clear: %v", err)
	}
}

func TestListAbortsOnMalformedRow(t *testing.T) {
	db := testDB(t)

	if _, err := db.Exec(
		`INSERT INTO messages (id, content, from_user_id, to_user_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		"bad", "x", "u1", "u2", "not-a-timestamp"); err != nil {
		t.Fatal(err)
	}

	if _, err := db.ListMessages(context.Background(), "u1"); err == nil {
		t.Error("expected decode error for malformed created_at")
	}
}

func TestListHonorsCancellation(t *testing.T) {
	db := testDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := db.ListMessages(ctx, "u1"); err == nil {
		t.Error("expected error from cancelled context")
	}
}
