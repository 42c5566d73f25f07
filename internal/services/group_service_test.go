package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-chat-realtime/internal/realtime"
	"github.com/tbourn/go-chat-realtime/internal/repo"
)

func TestGroupService_Create_JoinsAndNotifiesMembers(t *testing.T) {
	e := newEnv(t, "A", "B", "C")
	a1 := e.connect(t, "a1", "A")
	b1 := e.connect(t, "b1", "B")
	c1 := e.connect(t, "c1", "C")
	svc := NewGroupService(e.db, e.coord)

	g, err := svc.Create(context.Background(), "A", "  Weekend   plans ", "", []string{"B", "B", "A", ""})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if g.Name != "Weekend plans" || g.OwnerID != "A" || !equalStrings(g.Members, []string{"A", "B"}) {
		t.Fatalf("unexpected group: %+v", g)
	}

	room := realtime.ConversationRoom(g.ID)
	for _, c := range []*liveConn{a1, b1} {
		if !e.hub.Joined(c.ID(), room) {
			t.Fatalf("%s should be in the group room", c.ID())
		}
		if n := c.count(realtime.EventGroupCreated); n != 1 {
			t.Fatalf("%s got group_created %d times", c.ID(), n)
		}
	}
	if e.hub.Joined("c1", room) || len(c1.got()) != 0 {
		t.Fatal("non-member must not be joined or notified")
	}
}

func TestGroupService_Create_Validation(t *testing.T) {
	e := newEnv(t, "A", "B")
	svc := NewGroupService(e.db, e.coord)

	if _, err := svc.Create(context.Background(), "A", "   ", "", []string{"B"}); !errors.Is(err, ErrInvalidGroup) {
		t.Fatalf("blank name: want ErrInvalidGroup, got %v", err)
	}
	if _, err := svc.Create(context.Background(), "A", "solo", "", []string{"A"}); !errors.Is(err, ErrInvalidGroup) {
		t.Fatalf("no other members: want ErrInvalidGroup, got %v", err)
	}
	if _, err := svc.Create(context.Background(), "A", "ghosts", "", []string{"B", "ghost"}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown member: want ErrUserNotFound, got %v", err)
	}
}

// Removing a member takes their connections out of the room before the
// removal is announced, so they get removed-from-group on their own channel
// and none of the group's later traffic.
func TestGroupService_RemoveMember_StopsDelivery(t *testing.T) {
	e := newEnv(t, "A", "B", "C")
	a1 := e.connect(t, "a1", "A")
	b1 := e.connect(t, "b1", "B")
	b2 := e.connect(t, "b2", "B")
	c1 := e.connect(t, "c1", "C")
	svc := NewGroupService(e.db, e.coord)
	msgs := newMessageService(e)

	g, err := svc.Create(context.Background(), "A", "trio", "", []string{"B", "C"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, c := range []*liveConn{a1, b1, b2, c1} {
		c.reset()
	}

	if err := svc.RemoveMember(context.Background(), "C", g.ID, "B"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-owner remove: want ErrForbidden, got %v", err)
	}
	if err := svc.RemoveMember(context.Background(), "A", g.ID, "B"); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}

	room := realtime.ConversationRoom(g.ID)
	for _, c := range []*liveConn{b1, b2} {
		if e.hub.Joined(c.ID(), room) {
			t.Fatalf("%s still in room after removal", c.ID())
		}
		if got := c.got(); !equalStrings(got, []string{realtime.EventRemovedFromGroup}) {
			t.Fatalf("%s events = %v", c.ID(), got)
		}
	}
	for _, c := range []*liveConn{a1, c1} {
		if got := c.got(); !equalStrings(got, []string{realtime.EventGroupMemberRemoved}) {
			t.Fatalf("%s events = %v", c.ID(), got)
		}
	}

	if _, err := msgs.Send(context.Background(), "A", g.ID, "after", ""); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n := b1.count(realtime.EventNewMessage) + b2.count(realtime.EventNewMessage); n != 0 {
		t.Fatalf("removed member received %d messages", n)
	}
	if n := c1.count(realtime.EventNewMessage); n != 1 {
		t.Fatalf("c1 got new_message %d times", n)
	}
}

func TestGroupService_AddMembers(t *testing.T) {
	e := newEnv(t, "A", "B", "C", "D")
	a1 := e.connect(t, "a1", "A")
	d1 := e.connect(t, "d1", "D")
	svc := NewGroupService(e.db, e.coord)

	g, err := svc.Create(context.Background(), "A", "grow", "", []string{"B"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	a1.reset()

	added, err := svc.AddMembers(context.Background(), "B", g.ID, []string{"A", "B", "D", "D"})
	if err != nil {
		t.Fatalf("AddMembers: %v", err)
	}
	if !equalStrings(added, []string{"D"}) {
		t.Fatalf("added = %v, want [D]", added)
	}
	if !e.hub.Joined("d1", realtime.ConversationRoom(g.ID)) {
		t.Fatal("new member should be joined to the room")
	}
	if n := d1.count(realtime.EventGroupMembersAdded); n != 1 {
		t.Fatalf("d1 got group-members-added %d times", n)
	}
	if n := a1.count(realtime.EventGroupMembersAdded); n != 1 {
		t.Fatalf("a1 got group-members-added %d times", n)
	}

	again, err := svc.AddMembers(context.Background(), "A", g.ID, []string{"D"})
	if err != nil || len(again) != 0 || again == nil {
		t.Fatalf("re-adding existing member: added=%v err=%v", again, err)
	}

	if _, err := svc.AddMembers(context.Background(), "C", g.ID, []string{"C"}); err != nil {
		t.Fatalf("self-only add should be a no-op, got %v", err)
	}
	if _, err := svc.AddMembers(context.Background(), "C", g.ID, []string{"B"}); !errors.Is(err, ErrNotMember) {
		t.Fatalf("outsider add: want ErrNotMember, got %v", err)
	}
}

func TestGroupService_LeaveAndUpdate(t *testing.T) {
	e := newEnv(t, "A", "B")
	a1 := e.connect(t, "a1", "A")
	b1 := e.connect(t, "b1", "B")
	svc := NewGroupService(e.db, e.coord)

	g, err := svc.Create(context.Background(), "A", "club", "", []string{"B"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	name := "renamed"
	if _, err := svc.Update(context.Background(), "B", g.ID, GroupPatch{Name: &name}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-owner update: want ErrForbidden, got %v", err)
	}
	view, err := svc.Update(context.Background(), "A", g.ID, GroupPatch{Name: &name})
	if err != nil || view.Name != "renamed" {
		t.Fatalf("Update: view=%+v err=%v", view, err)
	}
	if n := b1.count(realtime.EventGroupUpdated); n != 1 {
		t.Fatalf("b1 got group_updated %d times", n)
	}

	if err := svc.Leave(context.Background(), "A", g.ID); !errors.Is(err, ErrOwnerCannotLeave) {
		t.Fatalf("owner leave: want ErrOwnerCannotLeave, got %v", err)
	}
	a1.reset()
	b1.reset()
	if err := svc.Leave(context.Background(), "B", g.ID); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if got := b1.got(); !equalStrings(got, []string{realtime.EventLeftGroup}) {
		t.Fatalf("b1 events = %v", got)
	}
	if got := a1.got(); !equalStrings(got, []string{realtime.EventUserLeftGroup}) {
		t.Fatalf("a1 events = %v", got)
	}
	if e.hub.Joined("b1", realtime.ConversationRoom(g.ID)) {
		t.Fatal("b1 should have left the room")
	}
}

func TestGroupService_Delete(t *testing.T) {
	e := newEnv(t, "A", "B")
	a1 := e.connect(t, "a1", "A")
	b1 := e.connect(t, "b1", "B")
	svc := NewGroupService(e.db, e.coord)
	msgs := newMessageService(e)

	g, err := svc.Create(context.Background(), "A", "doomed", "", []string{"B"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := msgs.Send(context.Background(), "B", g.ID, "bye", ""); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := svc.Delete(context.Background(), "B", g.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-owner delete: want ErrForbidden, got %v", err)
	}
	a1.reset()
	b1.reset()

	if err := svc.Delete(context.Background(), "A", g.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	for _, c := range []*liveConn{a1, b1} {
		if got := c.got(); !equalStrings(got, []string{realtime.EventGroupDeleted}) {
			t.Fatalf("%s events = %v", c.ID(), got)
		}
		if e.hub.Joined(c.ID(), realtime.ConversationRoom(g.ID)) {
			t.Fatalf("%s still in deleted group room", c.ID())
		}
	}
	if _, err := repo.GetConversation(context.Background(), e.db, g.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("group should be gone, got %v", err)
	}
}
