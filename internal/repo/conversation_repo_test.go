package repo

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/tbourn/go-chat-realtime/internal/domain"
)

func TestPairKey_OrderIndependent(t *testing.T) {
	if PairKey("b", "a") != PairKey("a", "b") {
		t.Fatalf("pair key must not depend on argument order")
	}
	if got := PairKey("u2", "u1"); got != "u1|u2" {
		t.Fatalf("unexpected pair key %q", got)
	}
}

func TestCreateGroup_OwnerAndMembers(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	c, err := CreateGroup(ctx, db, "A", "team", "", []string{"B", "C"})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if !c.IsGroup() || c.OwnerID != "A" || c.PairKey != nil {
		t.Fatalf("unexpected group: %+v", c)
	}

	ids, err := ListMemberIDs(ctx, db, c.ID)
	if err != nil {
		t.Fatalf("ListMemberIDs: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"A", "B", "C"}) {
		t.Fatalf("members = %v", ids)
	}
	owner, err := GetMember(ctx, db, c.ID, "A")
	if err != nil || owner.Role != domain.RoleOwner {
		t.Fatalf("owner row: %+v err=%v", owner, err)
	}
}

func TestCreatePrivate_UniquePerPair(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	c, err := CreatePrivate(ctx, db, "A", "B")
	if err != nil {
		t.Fatalf("CreatePrivate: %v", err)
	}
	if _, err := CreatePrivate(ctx, db, "B", "A"); err == nil {
		t.Fatalf("expected unique violation for the same pair")
	}

	got, err := FindPrivateConversation(ctx, db, "B", "A")
	if err != nil {
		t.Fatalf("FindPrivateConversation: %v", err)
	}
	if got.ID != c.ID {
		t.Fatalf("found %s, want %s", got.ID, c.ID)
	}

	if _, err := FindPrivateConversation(ctx, db, "A", "C"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListConversationIDsForUser_ExcludesSoftDeleted(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	g1, _ := CreateGroup(ctx, db, "A", "one", "", nil)
	g2, _ := CreateGroup(ctx, db, "A", "two", "", nil)
	if err := db.Delete(&domain.Conversation{}, "id = ?", g2.ID).Error; err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	ids, err := ListConversationIDsForUser(ctx, db, "A")
	if err != nil {
		t.Fatalf("ListConversationIDsForUser: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{g1.ID}) {
		t.Fatalf("ids = %v, want [%s]", ids, g1.ID)
	}
}

func TestAddMembers_ReturnsOnlyNewlyAdded(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	g, _ := CreateGroup(ctx, db, "A", "g", "", []string{"B"})

	added, err := AddMembers(ctx, db, g.ID, []string{"B", "C", "C", "D"})
	if err != nil {
		t.Fatalf("AddMembers: %v", err)
	}
	if !reflect.DeepEqual(added, []string{"C", "D"}) {
		t.Fatalf("added = %v", added)
	}
	ids, _ := ListMemberIDs(ctx, db, g.ID)
	if !reflect.DeepEqual(ids, []string{"A", "B", "C", "D"}) {
		t.Fatalf("members = %v", ids)
	}

	if added, err := AddMembers(ctx, db, g.ID, nil); err != nil || added != nil {
		t.Fatalf("empty add: %v %v", added, err)
	}
}

func TestRemoveMember_NotFoundWhenAbsent(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	g, _ := CreateGroup(ctx, db, "A", "g", "", []string{"B"})

	if err := RemoveMember(ctx, db, g.ID, "B"); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if err := RemoveMember(ctx, db, g.ID, "B"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second removal, got %v", err)
	}
}

func TestDeleteConversation_CascadesChildren(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	g, _ := CreateGroup(ctx, db, "A", "g", "", []string{"B"})
	m, err := CreateMessage(ctx, db, g.ID, "A", "hi", "")
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if _, err := CreateReaction(ctx, db, m.ID, "B", "like"); err != nil {
		t.Fatalf("CreateReaction: %v", err)
	}

	if err := DeleteConversation(ctx, db, g.ID); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}

	for _, tc := range []struct {
		model any
		name  string
	}{
		{&domain.Conversation{}, "conversations"},
		{&domain.ConversationMember{}, "members"},
		{&domain.Message{}, "messages"},
		{&domain.Reaction{}, "reactions"},
	} {
		var n int64
		if err := db.Unscoped().Model(tc.model).Count(&n).Error; err != nil {
			t.Fatalf("count %s: %v", tc.name, err)
		}
		if n != 0 {
			t.Fatalf("expected no %s after delete, got %d", tc.name, n)
		}
	}

	if err := DeleteConversation(ctx, db, g.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestListConversationsPage_OrdersByActivity(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	g1, _ := CreateGroup(ctx, db, "A", "one", "", nil)
	g2, _ := CreateGroup(ctx, db, "A", "two", "", nil)
	_, _ = CreateGroup(ctx, db, "B", "other", "", nil)

	base := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	if err := TouchConversation(ctx, db, g1.ID, base.Add(time.Hour)); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if err := TouchConversation(ctx, db, g2.ID, base); err != nil {
		t.Fatalf("touch: %v", err)
	}

	total, err := CountConversations(ctx, db, "A")
	if err != nil || total != 2 {
		t.Fatalf("CountConversations = %d, %v", total, err)
	}
	page, err := ListConversationsPage(ctx, db, "A", 0, 10)
	if err != nil {
		t.Fatalf("ListConversationsPage: %v", err)
	}
	if len(page) != 2 || page[0].ID != g1.ID || page[1].ID != g2.ID {
		t.Fatalf("unexpected order: %+v", page)
	}
}

func TestUpdateConversation_NotFound(t *testing.T) {
	db := newRepoDB(t)
	err := UpdateConversation(context.Background(), db, "missing", map[string]any{"name": "x"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetClearedAt(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	g, _ := CreateGroup(ctx, db, "A", "g", "", nil)
	at := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)

	if err := SetClearedAt(ctx, db, g.ID, "A", at); err != nil {
		t.Fatalf("SetClearedAt: %v", err)
	}
	m, _ := GetMember(ctx, db, g.ID, "A")
	if m.ClearedAt == nil || !m.ClearedAt.Equal(at) {
		t.Fatalf("cleared_at = %v", m.ClearedAt)
	}
	if err := SetClearedAt(ctx, db, g.ID, "Z", at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for non-member, got %v", err)
	}
}
