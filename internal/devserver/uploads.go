package devserver

import (
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"leafchat/internal/pkg/logx"
)

const uploadDir = "uploads"

// HandleUpload stores the multipart "file" field and returns its public URL.
func (s *Server) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxFileSize)
	if err := r.ParseMultipartForm(s.opts.MaxFileSize); err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, statusResponse{Message: "file too large"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, statusResponse{Message: "no file provided"})
		return
	}
	defer file.Close()

	name := uuid.NewString() + strings.ToLower(filepath.Ext(header.Filename))
	if err := s.files.MkdirAll(uploadDir, 0o755); err != nil {
		writeJSON(w, http.StatusInternalServerError, statusResponse{Message: err.Error()})
		return
	}
	dst, err := s.files.Create(path.Join(uploadDir, name))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, statusResponse{Message: err.Error()})
		return
	}
	size, err := io.Copy(dst, file)
	closeErr := dst.Close()
	if err != nil || closeErr != nil {
		_ = s.files.Remove(path.Join(uploadDir, name))
		writeJSON(w, http.StatusInternalServerError, statusResponse{Message: "failed to store file"})
		return
	}
	s.metrics.IncUpload()
	logx.Info("devserver upload stored",
		"user", userFromContext(r.Context()),
		"name", name,
		"original", header.Filename,
		"size", size,
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"fileUrl": publicBase(r) + "/uploads/" + name,
	})
}

// HandleDownload serves a stored upload with a content-sniffed type.
func (s *Server) HandleDownload(w http.ResponseWriter, r *http.Request) {
	name := path.Base(chi.URLParam(r, "name"))
	data, err := afero.ReadFile(s.files, path.Join(uploadDir, name))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", mimetype.Detect(data).String())
	_, _ = w.Write(data)
}

func publicBase(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
