package api

import "leafchat/internal/domain"

// LoginRequest is the body of POST /api/v1/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the body of POST /api/v1/register.
type RegisterRequest struct {
	Username    string `json:"username" validate:"required,max=64"`
	Password    string `json:"password" validate:"required"`
	InviteToken string `json:"inviteToken" validate:"required"`
}

// InviteRequest is the body of POST /api/v1/invite.
type InviteRequest struct {
	Amount int `json:"amount" validate:"min=1,max=100"`
}

// ProfileUpdate is the body of POST /api/v1/users/update.
type ProfileUpdate struct {
	ProfilePicture string `json:"profilePicture"`
	Nickname       string `json:"nickname" validate:"max=64"`
	Username       string `json:"username" validate:"required"`
}

// InviteResult is what the server answered to an invite request.
type InviteResult struct {
	Message string
	Tokens  []string
}

// UploadResult describes a stored upload.
type UploadResult struct {
	URL string
	// MIME is detected locally from the file content.
	MIME string
}

// IsImage reports an image/ MIME prefix.
func (u UploadResult) IsImage() bool { return hasPrefix(u.MIME, "image/") }

// IsVideo reports a video/ MIME prefix.
func (u UploadResult) IsVideo() bool { return hasPrefix(u.MIME, "video/") }

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (s statusResponse) reason() string {
	if s.Message != "" {
		return s.Message
	}
	if s.Error != "" {
		return s.Error
	}
	return "request failed"
}

type sessionResponse struct {
	Username string `json:"username"`
}

type userDataResponse struct {
	User *domain.Profile `json:"user"`
}

type loginResponse struct {
	statusResponse
	User struct {
		Username string `json:"username"`
	} `json:"user"`
}

type inviteResponse struct {
	statusResponse
	Token  string   `json:"token"`
	Tokens []string `json:"tokens"`
}

type uploadResponse struct {
	statusResponse
	FileURL string `json:"fileUrl"`
}
