package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"leafchat/internal/pkg/logx"
)

type ctxKey struct{}

type credentialsRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	InviteToken string `json:"inviteToken"`
}

type inviteRequest struct {
	Amount int `json:"amount"`
}

type updateRequest struct {
	ProfilePicture string `json:"profilePicture"`
	Nickname       string `json:"nickname"`
	Username       string `json:"username"`
}

type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (s *Server) HandleSession(w http.ResponseWriter, r *http.Request) {
	username := s.sessionUser(r)
	if username == "" {
		writeJSON(w, http.StatusOK, map[string]any{"username": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"username": username})
}

func (s *Server) HandleUsers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.directory())
}

func (s *Server) HandleUserData(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.profile(chi.URLParam(r, "username"))
	if !ok {
		writeJSON(w, http.StatusNotFound, statusResponse{Message: "User not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": profile})
}

func (s *Server) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, statusResponse{Message: err.Error()})
		return
	}
	profile, ok := s.authenticate(strings.TrimSpace(req.Username), req.Password)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, statusResponse{Message: "Invalid credentials"})
		return
	}
	sess, _ := s.sessions.Get(r, sessionName)
	sess.Values[sessionUserKey] = profile.Username
	if err := sess.Save(r, w); err != nil {
		writeJSON(w, http.StatusInternalServerError, statusResponse{Message: err.Error()})
		return
	}
	s.metrics.IncLogin()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged in",
		"user":    map[string]string{"username": profile.Username},
	})
}

func (s *Server) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, statusResponse{Message: err.Error()})
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" || req.InviteToken == "" {
		writeJSON(w, http.StatusBadRequest, statusResponse{Message: "username, password and inviteToken are required"})
		return
	}
	if err := s.register(username, req.Password, req.InviteToken); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrUserExists) || errors.Is(err, ErrInvalidInvite) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, statusResponse{Message: err.Error()})
		return
	}
	s.metrics.IncRegistration()
	writeJSON(w, http.StatusOK, statusResponse{Success: true, Message: "User registered"})
}

func (s *Server) HandleLogout(w http.ResponseWriter, r *http.Request) {
	sess, _ := s.sessions.Get(r, sessionName)
	if _, ok := sess.Values[sessionUserKey]; !ok {
		writeJSON(w, http.StatusOK, statusResponse{Message: "Not logged in"})
		return
	}
	delete(sess.Values, sessionUserKey)
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		writeJSON(w, http.StatusInternalServerError, statusResponse{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Success: true, Message: "Logged out"})
}

func (s *Server) HandleInvite(w http.ResponseWriter, r *http.Request) {
	profile, _ := s.profile(userFromContext(r.Context()))
	if !profile.IsAdmin {
		writeJSON(w, http.StatusForbidden, statusResponse{Message: "Admin only"})
		return
	}
	req := inviteRequest{Amount: 1}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, statusResponse{Message: err.Error()})
		return
	}
	if req.Amount < 1 || req.Amount > 100 {
		writeJSON(w, http.StatusBadRequest, statusResponse{Message: "amount must be between 1 and 100"})
		return
	}
	tokens := make([]string, 0, req.Amount)
	for i := 0; i < req.Amount; i++ {
		tokens = append(tokens, s.CreateInvite())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": inviteMessage(len(tokens)),
		"tokens":  tokens,
	})
}

func inviteMessage(n int) string {
	if n == 1 {
		return "Created 1 invite token"
	}
	return "Created " + strconv.Itoa(n) + " invite tokens"
}

func (s *Server) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	caller := userFromContext(r.Context())
	var req updateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, statusResponse{Message: err.Error()})
		return
	}
	target := req.Username
	if target == "" {
		target = caller
	}
	if target != caller {
		if p, _ := s.profile(caller); !p.IsAdmin {
			writeJSON(w, http.StatusForbidden, statusResponse{Message: "Cannot update another user"})
			return
		}
	}
	if !s.updateProfile(target, strings.TrimSpace(req.Nickname), req.ProfilePicture) {
		writeJSON(w, http.StatusNotFound, statusResponse{Message: "User not found"})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Success: true, Message: "Profile updated"})
}

func (s *Server) sessionUser(r *http.Request) string {
	sess, err := s.sessions.Get(r, sessionName)
	if err != nil {
		return ""
	}
	username, _ := sess.Values[sessionUserKey].(string)
	if _, ok := s.profile(username); !ok {
		return ""
	}
	return username
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username := s.sessionUser(r)
		if username == "" {
			writeJSON(w, http.StatusUnauthorized, statusResponse{Message: "Not logged in"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, username)))
	})
}

func (s *Server) limitAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientIP(r)) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userFromContext(ctx context.Context) string {
	username, _ := ctx.Value(ctxKey{}).(string)
	return username
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logx.Debug("devserver request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start).String(),
		)
	})
}

func decodeJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
