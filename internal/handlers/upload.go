package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// AllowedUploadExtensions are the file types clients may attach to an NPC.
var AllowedUploadExtensions = []string{".pdf", ".txt", ".cs", ".png", ".jpg", ".jpeg", ".webp"}

type UploadResponse struct {
	FilePath string `json:"file_path"`
}

// UploadHandler stores a multipart "file" under a random name in the
// upload directory.
// POST /v1/upload
type UploadHandler struct {
	dir      string
	maxBytes int64
	logger   *slog.Logger
}

func NewUploadHandler(dir string, maxBytes int64, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{dir: dir, maxBytes: maxBytes, logger: logger}
}

func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if methodNotAllowed(w, r, h.logger, http.MethodPost) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, h.logger, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("File too large. Maximum size is %d bytes.", h.maxBytes))
			return
		}
		h.logger.Warn("Invalid upload", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid upload. Expected multipart form with a 'file' field.")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !slices.Contains(AllowedUploadExtensions, ext) {
		writeError(w, h.logger, http.StatusBadRequest,
			"Invalid file type. Allowed: "+strings.Join(AllowedUploadExtensions, ", "))
		return
	}

	path, err := h.save(file, ext)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, h.logger, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("File too large. Maximum size is %d bytes.", h.maxBytes))
			return
		}
		h.logger.Error("Failed to save upload", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to save file.")
		return
	}

	h.logger.Info("File uploaded", "original_name", header.Filename, "path", path)
	writeJSON(w, h.logger, http.StatusOK, UploadResponse{FilePath: path})
}

func (h *UploadHandler) save(src io.Reader, ext string) (string, error) {
	// Clients pass the returned path back to /v1/initialize, so it must not
	// depend on the server's working directory.
	dir, err := filepath.Abs(h.dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve upload directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}
	path := filepath.Join(dir, uuid.NewString()+ext)
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write upload file: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to close upload file: %w", err)
	}
	return path, nil
}
