package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"leafchat/internal/api"
	"leafchat/internal/pkg/errs"
	"leafchat/internal/pkg/logx"
	"leafchat/internal/pkg/randx"
)

// Backend is the part of the API client commands need.
type Backend interface {
	CreateInvites(ctx context.Context, amount int) (*api.InviteResult, error)
	Register(ctx context.Context, req api.RegisterRequest) error
}

// Result is the local notice produced by a command.
type Result struct {
	Notice string
	Failed bool
}

// Notices shown without any network access.
const (
	NoticePermissionDenied = "Permission denied: only admins can run commands."
	NoticeInvalidCommand   = "Invalid command. Try /user create [username password] or /invites create [amount]."
	NoticeInvitesUsage     = "Usage: /invites create [amount], amount between 1 and 100."
	NoticeUserCreateUsage  = "Usage: /user create [username password]"
)

const maxInvites = 100

type handler func(ctx context.Context, b Backend, cmd Command) Result

// Dispatcher routes parsed commands to their handlers.
type Dispatcher struct {
	backend Backend
	table   map[string]handler
}

// NewDispatcher returns a dispatcher with the built-in commands.
func NewDispatcher(b Backend) *Dispatcher {
	return &Dispatcher{
		backend: b,
		table: map[string]handler{
			"user create":    userCreate,
			"invites create": invitesCreate,
		},
	}
}

// Dispatch runs cmd on behalf of a user. Every command is admin only, and
// non-admins are refused before the table lookup.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command, isAdmin bool) Result {
	if !isAdmin {
		return Result{Notice: NoticePermissionDenied, Failed: true}
	}
	run, ok := d.table[cmd.Key()]
	if !ok {
		return Result{Notice: NoticeInvalidCommand, Failed: true}
	}
	return run(ctx, d.backend, cmd)
}

// Known reports whether key is in the table.
func (d *Dispatcher) Known(key string) bool {
	_, ok := d.table[key]
	return ok
}

func userCreate(ctx context.Context, b Backend, cmd Command) Result {
	username, password := cmd.Arg(0), cmd.Arg(1)
	if len(cmd.Args) > 2 {
		return Result{Notice: NoticeUserCreateUsage, Failed: true}
	}
	generated := false
	if strings.TrimSpace(username) == "" {
		username = randx.Username()
		generated = true
	}
	if strings.TrimSpace(password) == "" {
		password = randx.Password()
		generated = true
	}

	invites, err := b.CreateInvites(ctx, 1)
	if err != nil {
		logx.Error(err, "user create: invite failed", "username", username)
		return Result{Notice: "Failed to create user: " + errs.UserMessage(err), Failed: true}
	}
	if len(invites.Tokens) == 0 {
		return Result{Notice: "Failed to create user: server returned no invite token", Failed: true}
	}
	err = b.Register(ctx, api.RegisterRequest{
		Username:    username,
		Password:    password,
		InviteToken: invites.Tokens[0],
	})
	if err != nil {
		logx.Error(err, "user create: register failed", "username", username)
		return Result{Notice: "Failed to create user: " + errs.UserMessage(err), Failed: true}
	}
	if generated {
		return Result{Notice: fmt.Sprintf("User created: %s (password: %s)", username, password)}
	}
	return Result{Notice: "User created: " + username}
}

func invitesCreate(ctx context.Context, b Backend, cmd Command) Result {
	amount := 1
	if raw := cmd.Arg(0); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxInvites || len(cmd.Args) > 1 {
			return Result{Notice: NoticeInvitesUsage, Failed: true}
		}
		amount = n
	}
	res, err := b.CreateInvites(ctx, amount)
	if err != nil {
		logx.Error(err, "invites create failed", "amount", amount)
		return Result{Notice: "Failed to create invites: " + errs.UserMessage(err), Failed: true}
	}
	notice := res.Message
	if notice == "" {
		notice = fmt.Sprintf("Created %d invite token(s)", len(res.Tokens))
	}
	if len(res.Tokens) > 0 {
		notice += ": " + strings.Join(res.Tokens, ", ")
	}
	return Result{Notice: notice}
}
