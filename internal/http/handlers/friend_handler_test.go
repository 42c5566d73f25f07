package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFriendRequests_AcceptFlow(t *testing.T) {
	a := newAPI(t, "alice", "bob")
	srv := httptest.NewServer(a.engine)
	t.Cleanup(srv.Close)
	alice := a.dial(t, srv, "alice")
	bob := a.dial(t, srv, "bob")

	w := a.do(t, http.MethodPost, "/friends/requests", "alice", SendFriendRequestRequest{RecipientID: "bob"})
	wantStatus(t, w, http.StatusCreated)
	req := decode[FriendRequestResponse](t, w).Request
	bob.expect(t, "friend_request")

	wantCode(t, a.do(t, http.MethodPost, "/friends/requests", "alice", SendFriendRequestRequest{RecipientID: "bob"}), http.StatusConflict, ErrCodeConflict)

	w = a.do(t, http.MethodGet, "/friends/requests", "bob", nil)
	wantStatus(t, w, http.StatusOK)
	pending := decode[PendingRequestsResponse](t, w)
	if len(pending.Incoming) != 1 || len(pending.Outgoing) != 0 || pending.Incoming[0].ID != req.ID {
		t.Fatalf("unexpected pending: %+v", pending)
	}

	// Only the recipient accepts.
	wantCode(t, a.do(t, http.MethodPost, "/friends/requests/"+req.ID+"/accept", "alice", nil), http.StatusNotFound, ErrCodeNotFound)
	wantStatus(t, a.do(t, http.MethodPost, "/friends/requests/"+req.ID+"/accept", "bob", nil), http.StatusOK)
	alice.expect(t, "friend_accepted")

	for user, other := range map[string]string{"alice": "bob", "bob": "alice"} {
		w = a.do(t, http.MethodGet, "/friends", user, nil)
		wantStatus(t, w, http.StatusOK)
		friends := decode[FriendsResponse](t, w).Friends
		if len(friends) != 1 || friends[0].FriendID != other {
			t.Fatalf("%s friends=%+v", user, friends)
		}
	}
}

func TestFriendRequests_RejectAndCancel(t *testing.T) {
	a := newAPI(t, "alice", "bob", "carol")
	srv := httptest.NewServer(a.engine)
	t.Cleanup(srv.Close)
	alice := a.dial(t, srv, "alice")
	carol := a.dial(t, srv, "carol")

	w := a.do(t, http.MethodPost, "/friends/requests", "alice", SendFriendRequestRequest{RecipientID: "bob"})
	wantStatus(t, w, http.StatusCreated)
	toBob := decode[FriendRequestResponse](t, w).Request

	wantStatus(t, a.do(t, http.MethodPost, "/friends/requests/"+toBob.ID+"/reject", "bob", nil), http.StatusOK)
	alice.expect(t, "friend_rejected")

	w = a.do(t, http.MethodPost, "/friends/requests", "alice", SendFriendRequestRequest{RecipientID: "carol"})
	wantStatus(t, w, http.StatusCreated)
	toCarol := decode[FriendRequestResponse](t, w).Request
	carol.expect(t, "friend_request")

	wantCode(t, a.do(t, http.MethodDelete, "/friends/requests/"+toCarol.ID, "carol", nil), http.StatusNotFound, ErrCodeNotFound)
	w = a.do(t, http.MethodDelete, "/friends/requests/"+toCarol.ID, "alice", nil)
	wantStatus(t, w, http.StatusOK)
	if got := decode[FriendRequestResponse](t, w).Request.Status; got != "canceled" {
		t.Fatalf("status=%q", got)
	}
	carol.expect(t, "friend_request_canceled")

	wantCode(t, a.do(t, http.MethodPost, "/friends/requests", "alice", SendFriendRequestRequest{RecipientID: "alice"}), http.StatusBadRequest, ErrCodeBadRequest)
	wantCode(t, a.do(t, http.MethodPost, "/friends/requests", "alice", map[string]string{}), http.StatusBadRequest, ErrCodeBadRequest)
}
