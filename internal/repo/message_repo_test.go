package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-realtime/internal/domain"
)

func TestCreateMessage_InsertsAndReadsBack(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	seedConversations(t, db, "c1", "c2")

	msg, err := CreateMessage(ctx, db, "c1", "A", "hello", "https://cdn/x.png")
	if err != nil {
		t.Fatalf("CreateMessage error: %v", err)
	}
	if msg.ID == "" || msg.ConversationID != "c1" || msg.SenderID != "A" || msg.Content != "hello" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.CreatedAt.IsZero() || time.Since(msg.CreatedAt) > time.Minute {
		t.Fatalf("CreatedAt not set reasonably: %v", msg.CreatedAt)
	}

	got, err := GetMessage(ctx, db, msg.ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if got.ID != msg.ID || got.AttachmentURL != "https://cdn/x.png" {
		t.Fatalf("roundtrip mismatch: %+v vs %+v", got, msg)
	}

	if _, err := GetMessage(ctx, db, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func seedMessages(t *testing.T, db *gorm.DB, conv, prefix string, at ...time.Time) []string {
	t.Helper()
	ids := make([]string, 0, len(at))
	for i, ts := range at {
		m := &domain.Message{
			ID:             prefix + string(rune('a'+i)),
			ConversationID: conv,
			SenderID:       "A",
			Content:        "m",
			CreatedAt:      ts,
			UpdatedAt:      ts,
		}
		if err := db.Create(m).Error; err != nil {
			t.Fatalf("seed message: %v", err)
		}
		ids = append(ids, m.ID)
	}
	return ids
}

func TestListMessagesPage_OrderAndSince(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	seedConversations(t, db, "c1", "c2")

	t0 := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	seedMessages(t, db, "c1", "", t0, t0, t0.Add(time.Second), t0.Add(2*time.Second))
	seedMessages(t, db, "c2", "x", t0)

	all, err := ListMessagesPage(ctx, db, "c1", nil, 0, 10)
	if err != nil {
		t.Fatalf("ListMessagesPage: %v", err)
	}
	if len(all) != 4 || all[0].ID != "a" || all[1].ID != "b" || all[3].ID != "d" {
		t.Fatalf("unexpected order: %+v", all)
	}

	page, _ := ListMessagesPage(ctx, db, "c1", nil, 1, 2)
	if len(page) != 2 || page[0].ID != "b" || page[1].ID != "c" {
		t.Fatalf("unexpected page: %+v", page)
	}

	since := t0
	visible, _ := ListMessagesPage(ctx, db, "c1", &since, 0, 10)
	if len(visible) != 2 || visible[0].ID != "c" {
		t.Fatalf("since filter: %+v", visible)
	}

	n, err := CountMessages(ctx, db, "c1", &since)
	if err != nil || n != 2 {
		t.Fatalf("CountMessages since = %d, %v", n, err)
	}
	n, _ = CountMessages(ctx, db, "c1", nil)
	if n != 4 {
		t.Fatalf("CountMessages = %d", n)
	}
}

func TestEditMessage_AndRecall(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	seedConversations(t, db, "c1", "c2")
	m, _ := CreateMessage(ctx, db, "c1", "A", "hello", "")
	at := time.Now().UTC()

	if err := EditMessage(ctx, db, m.ID, "hello!", at); err != nil {
		t.Fatalf("EditMessage: %v", err)
	}
	got, _ := GetMessage(ctx, db, m.ID)
	if got.Content != "hello!" || got.EditedAt == nil {
		t.Fatalf("edit not applied: %+v", got)
	}

	if err := RecallMessage(ctx, db, m.ID, "A", at); err != nil {
		t.Fatalf("RecallMessage: %v", err)
	}
	got, _ = GetMessage(ctx, db, m.ID)
	if !got.Recalled() || got.Content != "" || got.RecalledBy != "A" {
		t.Fatalf("recall not applied: %+v", got)
	}

	if err := RecallMessage(ctx, db, m.ID, "A", at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second recall should be ErrNotFound, got %v", err)
	}
	if err := EditMessage(ctx, db, m.ID, "x", at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("editing a recalled message should be ErrNotFound, got %v", err)
	}
}

func TestDeleteConversationMessages(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	seedConversations(t, db, "c1", "c2")
	m1, _ := CreateMessage(ctx, db, "c1", "A", "one", "")
	_, _ = CreateMessage(ctx, db, "c1", "B", "two", "")
	keep, _ := CreateMessage(ctx, db, "c2", "A", "other", "")
	if _, err := CreateReaction(ctx, db, m1.ID, "B", "like"); err != nil {
		t.Fatalf("CreateReaction: %v", err)
	}

	n, err := DeleteConversationMessages(ctx, db, "c1")
	if err != nil || n != 2 {
		t.Fatalf("DeleteConversationMessages = %d, %v", n, err)
	}
	if _, err := GetMessage(ctx, db, keep.ID); err != nil {
		t.Fatalf("other conversation's message removed: %v", err)
	}
	var reactions int64
	db.Model(&domain.Reaction{}).Count(&reactions)
	if reactions != 0 {
		t.Fatalf("expected reactions removed, got %d", reactions)
	}
}

func TestCreateReaction_DuplicateRejected(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	seedConversations(t, db, "c1", "c2")
	m, _ := CreateMessage(ctx, db, "c1", "A", "one", "")

	if _, err := CreateReaction(ctx, db, m.ID, "B", "like"); err != nil {
		t.Fatalf("CreateReaction: %v", err)
	}
	if _, err := CreateReaction(ctx, db, m.ID, "B", "like"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if _, err := CreateReaction(ctx, db, m.ID, "B", "heart"); err != nil {
		t.Fatalf("different type should be allowed: %v", err)
	}
}
