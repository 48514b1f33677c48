package command

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leafchat/internal/api"
	"leafchat/internal/pkg/logx"
)

type fakeBackend struct {
	inviteCalls   []int
	registrations []api.RegisterRequest
	inviteErr     error
	registerErr   error
}

func (f *fakeBackend) CreateInvites(_ context.Context, amount int) (*api.InviteResult, error) {
	f.inviteCalls = append(f.inviteCalls, amount)
	if f.inviteErr != nil {
		return nil, f.inviteErr
	}
	tokens := make([]string, amount)
	for i := range tokens {
		tokens[i] = "tok" + string(rune('A'+i))
	}
	return &api.InviteResult{Message: "Invites created", Tokens: tokens}, nil
}

func (f *fakeBackend) Register(_ context.Context, req api.RegisterRequest) error {
	f.registrations = append(f.registrations, req)
	return f.registerErr
}

func (f *fakeBackend) calls() int {
	return len(f.inviteCalls) + len(f.registrations)
}

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  Command
		ok    bool
	}{
		{"hello", Command{}, false},
		{"  /User Create bob pw ", Command{Verb: "user", Subverb: "create", Args: []string{"bob", "pw"}, Raw: "/User Create bob pw"}, true},
		{"/invites create", Command{Verb: "invites", Subverb: "create", Raw: "/invites create"}, true},
		{"/", Command{Raw: "/"}, true},
		{"/help", Command{Verb: "help", Raw: "/help"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := Parse(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNonAdminNeverReachesBackend(t *testing.T) {
	logx.Discard()
	b := &fakeBackend{}
	d := NewDispatcher(b)
	for _, input := range []string{"/user create bob pw", "/invites create 5", "/anything", "/"} {
		cmd, ok := Parse(input)
		require.True(t, ok)
		res := d.Dispatch(context.Background(), cmd, false)
		assert.Equal(t, NoticePermissionDenied, res.Notice, input)
		assert.True(t, res.Failed)
	}
	assert.Zero(t, b.calls())
}

func TestAdminUnknownCommand(t *testing.T) {
	b := &fakeBackend{}
	cmd, _ := Parse("/user delete bob")
	res := NewDispatcher(b).Dispatch(context.Background(), cmd, true)
	assert.Equal(t, NoticeInvalidCommand, res.Notice)
	assert.Zero(t, b.calls())
}

func TestUserCreateWithCredentials(t *testing.T) {
	b := &fakeBackend{}
	cmd, _ := Parse("/user create bob hunter2")
	res := NewDispatcher(b).Dispatch(context.Background(), cmd, true)

	assert.False(t, res.Failed)
	assert.Equal(t, "User created: bob", res.Notice)
	assert.Equal(t, []int{1}, b.inviteCalls)
	require.Len(t, b.registrations, 1)
	assert.Equal(t, api.RegisterRequest{Username: "bob", Password: "hunter2", InviteToken: "tokA"}, b.registrations[0])
}

func TestUserCreateGeneratesCredentials(t *testing.T) {
	b := &fakeBackend{}
	cmd, _ := Parse("/user create")
	res := NewDispatcher(b).Dispatch(context.Background(), cmd, true)

	require.False(t, res.Failed)
	require.Len(t, b.registrations, 1)
	reg := b.registrations[0]
	assert.Regexp(t, regexp.MustCompile(`^user_[0-9A-Za-z]{6}$`), reg.Username)
	assert.Len(t, reg.Password, 12)
	assert.Contains(t, res.Notice, reg.Username)
	assert.Contains(t, res.Notice, reg.Password)
}

func TestUserCreateFailures(t *testing.T) {
	logx.Discard()
	b := &fakeBackend{inviteErr: errors.New("boom")}
	cmd, _ := Parse("/user create bob pw")
	res := NewDispatcher(b).Dispatch(context.Background(), cmd, true)
	assert.True(t, res.Failed)
	assert.Contains(t, res.Notice, "Failed to create user")
	assert.Empty(t, b.registrations)

	b = &fakeBackend{registerErr: errors.New("taken")}
	res = NewDispatcher(b).Dispatch(context.Background(), cmd, true)
	assert.True(t, res.Failed)
	assert.Contains(t, res.Notice, "taken")
}

func TestInvitesCreate(t *testing.T) {
	b := &fakeBackend{}
	d := NewDispatcher(b)

	cmd, _ := Parse("/invites create")
	res := d.Dispatch(context.Background(), cmd, true)
	assert.Equal(t, "Invites created: tokA", res.Notice)

	cmd, _ = Parse("/invites create 3")
	res = d.Dispatch(context.Background(), cmd, true)
	assert.Equal(t, "Invites created: tokA, tokB, tokC", res.Notice)
	assert.Equal(t, []int{1, 3}, b.inviteCalls)

	for _, bad := range []string{"/invites create 0", "/invites create 101", "/invites create many", "/invites create 2 3"} {
		cmd, _ = Parse(bad)
		res = d.Dispatch(context.Background(), cmd, true)
		assert.Equal(t, NoticeInvitesUsage, res.Notice, bad)
	}
	assert.Len(t, b.inviteCalls, 2)
}
