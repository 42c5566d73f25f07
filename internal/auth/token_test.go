package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestIssueAndParse(t *testing.T) {
	req := require.New(t)
	iss := NewIssuer(testSecret, time.Hour, "go-chat-realtime")

	tok, exp, err := iss.Issue("user-1")
	req.NoError(err)
	req.NotEmpty(tok)
	req.WithinDuration(time.Now().Add(time.Hour), exp, 5*time.Second)

	uid, err := iss.Parse(tok)
	req.NoError(err)
	req.Equal("user-1", uid)
}

func TestIssue_RejectsBlankUser(t *testing.T) {
	_, _, err := NewIssuer(testSecret, time.Hour, "x").Issue("  ")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_Rejections(t *testing.T) {
	req := require.New(t)
	iss := NewIssuer(testSecret, time.Hour, "go-chat-realtime")
	good, _, err := iss.Issue("user-1")
	req.NoError(err)

	other := NewIssuer("another-secret-of-enough-length", time.Hour, "go-chat-realtime")
	forged, _, _ := other.Issue("user-1")

	wrongIssuer := NewIssuer(testSecret, time.Hour, "someone-else")
	foreign, _, _ := wrongIssuer.Issue("user-1")

	expired := NewIssuer(testSecret, time.Hour, "go-chat-realtime")
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, _, _ := expired.Issue("user-1")

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"truncated", good[:len(good)-4]},
		{"wrong secret", forged},
		{"wrong issuer", foreign},
		{"expired", stale},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := iss.Parse(tt.token)
			require.True(t, errors.Is(err, ErrInvalidToken), "got %v", err)
		})
	}
}
