package api

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"leafchat/internal/domain"
	"leafchat/internal/pkg/errs"
)

const (
	pathSession  = "/api/v1/users/session"
	pathUsers    = "/api/v1/users"
	pathUserData = "/api/v1/userdata/user/"
	pathLogin    = "/api/v1/login"
	pathRegister = "/api/v1/register"
	pathLogout   = "/api/v1/logout"
	pathInvite   = "/api/v1/invite"
	pathUpdate   = "/api/v1/users/update"
	pathUpload   = "/api/v1/upload"
)

// Session returns the username bound to the current cookie, or "" when there is none.
func (c *Client) Session(ctx context.Context) (string, error) {
	var resp sessionResponse
	if err := c.doJSONRequest(ctx, "session", http.MethodGet, pathSession, nil, &resp); err != nil {
		if IsUnauthorized(err) {
			return "", nil
		}
		return "", err
	}
	if resp.Username == "null" {
		return "", nil
	}
	return resp.Username, nil
}

// Users returns the full user directory.
func (c *Client) Users(ctx context.Context) ([]domain.Profile, error) {
	var users []domain.Profile
	if err := c.doJSONRequest(ctx, "users", http.MethodGet, pathUsers, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UserData looks up one profile.
func (c *Client) UserData(ctx context.Context, username string) (domain.Profile, error) {
	if username == "" {
		return domain.Profile{}, errs.NewError(errs.ErrInvalidParams, "empty username")
	}
	var resp userDataResponse
	if err := c.doJSONRequest(ctx, "userdata", http.MethodGet, pathUserData+url.PathEscape(username), nil, &resp); err != nil {
		return domain.Profile{}, err
	}
	if resp.User == nil {
		return domain.Profile{}, errs.NewError(errs.ErrNotFound, "userdata")
	}
	if resp.User.Username == "" {
		resp.User.Username = username
	}
	return *resp.User, nil
}

// Lookup makes Client usable as a roster resolver.
func (c *Client) Lookup(ctx context.Context, username string) (domain.Profile, error) {
	return c.UserData(ctx, username)
}

// Login exchanges credentials for a session cookie and returns the canonical username.
func (c *Client) Login(ctx context.Context, req LoginRequest) (string, error) {
	if err := validateRequest("login", req); err != nil {
		return "", err
	}
	var resp loginResponse
	if err := c.doJSONRequest(ctx, "login", http.MethodPost, pathLogin, req, &resp); err != nil {
		return "", err
	}
	if err := checkSuccess("login", resp.statusResponse); err != nil {
		return "", err
	}
	if resp.User.Username == "" {
		return req.Username, nil
	}
	return resp.User.Username, nil
}

// Register creates an account with an invite token.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	if err := validateRequest("register", req); err != nil {
		return err
	}
	var resp statusResponse
	if err := c.doJSONRequest(ctx, "register", http.MethodPost, pathRegister, req, &resp); err != nil {
		return err
	}
	return checkSuccess("register", resp)
}

// Logout ends the server session. The local jar is not touched.
func (c *Client) Logout(ctx context.Context) error {
	var resp statusResponse
	if err := c.doJSONRequest(ctx, "logout", http.MethodGet, pathLogout, nil, &resp); err != nil {
		return err
	}
	return checkSuccess("logout", resp)
}

// CreateInvites mints amount invite tokens. Admin only, enforced by the server.
func (c *Client) CreateInvites(ctx context.Context, amount int) (*InviteResult, error) {
	req := InviteRequest{Amount: amount}
	if err := validateRequest("invite", req); err != nil {
		return nil, errs.Wrap(errs.ErrInvalidAmount, err, 100)
	}
	var resp inviteResponse
	if err := c.doJSONRequest(ctx, "invite", http.MethodPost, pathInvite, req, &resp); err != nil {
		return nil, err
	}
	if err := checkSuccess("invite", resp.statusResponse); err != nil {
		return nil, err
	}
	tokens := resp.Tokens
	if len(tokens) == 0 && resp.Token != "" {
		tokens = []string{resp.Token}
	}
	return &InviteResult{Message: resp.Message, Tokens: tokens}, nil
}

// UpdateProfile stores a new nickname and picture.
func (c *Client) UpdateProfile(ctx context.Context, req ProfileUpdate) error {
	if err := validateRequest("update profile", req); err != nil {
		return err
	}
	var resp statusResponse
	if err := c.doJSONRequest(ctx, "update profile", http.MethodPost, pathUpdate, req, &resp); err != nil {
		return err
	}
	return checkSuccess("update profile", resp)
}

// Upload posts the file at path as multipart field "file". The MIME type is
// sniffed from the content, so a misnamed file is still classified correctly.
func (c *Client) Upload(ctx context.Context, path string) (*UploadResult, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrFileUnreadable, err, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrFileUnreadable, err, path)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", multipartDisposition(filepath.Base(path)))
	header.Set("Content-Type", mtype.String())
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInvalidParams, err, "upload")
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, errs.Wrap(errs.ErrFileUnreadable, err, path)
	}
	if err := writer.Close(); err != nil {
		return nil, errs.Wrap(errs.ErrInvalidParams, err, "upload")
	}

	req, err := c.newRequest(ctx, http.MethodPost, pathUpload, &body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInvalidParams, err, "upload")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var resp uploadResponse
	if err := c.do("upload", req, &resp); err != nil {
		return nil, err
	}
	if err := checkSuccess("upload", resp.statusResponse); err != nil {
		return nil, err
	}
	if resp.FileURL == "" {
		return nil, errs.NewError(errs.ErrBadResponse, "upload")
	}
	return &UploadResult{URL: resp.FileURL, MIME: mtype.String()}, nil
}

func multipartDisposition(filename string) string {
	return `form-data; name="file"; filename="` + quoteEscaper(filename) + `"`
}

func quoteEscaper(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
