package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"hostelgate/internal/logger"
	"hostelgate/internal/service"
)

const maxCheckinUpload = 32 << 20

var allowedDocumentExt = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".heic": true, ".pdf": true,
}

// CheckIn - POST /api/checkin
// Accepts multipart/form-data with the guest in a "data" JSON field (or as
// plain form fields) and document images under "documents". A JSON body is
// accepted as well.
func (h *Handlers) CheckIn(c *gin.Context) {
	raw, err := readCheckinFields(c)
	if err != nil {
		bindError(c, err)
		return
	}
	sub := service.BuildSubmission(raw)

	saved, err := h.saveDocuments(c)
	if err != nil {
		bindError(c, err)
		return
	}
	sub.Documents = saved

	resp, err := h.guests.CheckIn(c.Request.Context(), sub)
	if err != nil {
		h.removeDocuments(c, saved)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func readCheckinFields(c *gin.Context) (map[string]any, error) {
	if strings.HasPrefix(c.ContentType(), "application/json") {
		return decodeObject(c.Request.Body)
	}

	if err := c.Request.ParseMultipartForm(maxCheckinUpload); err != nil && err != http.ErrNotMultipart {
		return nil, fmt.Errorf("invalid form: %w", err)
	}
	if data := c.PostForm("data"); data != "" {
		return decodeObject(strings.NewReader(data))
	}

	raw := make(map[string]any)
	for key, values := range c.Request.PostForm {
		if len(values) > 0 {
			raw[key] = values[0]
		}
	}
	if companions := c.PostForm("companions"); companions != "" {
		var list []any
		if err := json.Unmarshal([]byte(companions), &list); err != nil {
			return nil, fmt.Errorf("companions must be a JSON array: %w", err)
		}
		raw["companions"] = list
	}
	return raw, nil
}

func decodeObject(r io.Reader) (map[string]any, error) {
	var raw map[string]any
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("invalid JSON: expected an object")
	}
	return raw, nil
}

// saveDocuments stores uploaded files under generated names and returns
// those names.
func (h *Handlers) saveDocuments(c *gin.Context) ([]string, error) {
	form := c.Request.MultipartForm
	if form == nil || len(form.File["documents"]) == 0 {
		return []string{}, nil
	}
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to prepare upload directory: %w", err)
	}

	saved := make([]string, 0, len(form.File["documents"]))
	for _, file := range form.File["documents"] {
		ext := strings.ToLower(filepath.Ext(file.Filename))
		if !allowedDocumentExt[ext] {
			h.removeDocuments(c, saved)
			return nil, fmt.Errorf("unsupported document type %q", ext)
		}
		name := uuid.NewString() + ext
		if err := c.SaveUploadedFile(file, filepath.Join(h.uploadDir, name)); err != nil {
			h.removeDocuments(c, saved)
			return nil, fmt.Errorf("failed to store document: %w", err)
		}
		saved = append(saved, name)
	}
	return saved, nil
}

func (h *Handlers) removeDocuments(c *gin.Context, names []string) {
	for _, name := range names {
		if err := os.Remove(filepath.Join(h.uploadDir, name)); err != nil {
			logger.WithContext(c.Request.Context()).Warn("Failed to remove uploaded document", "file", name, "error", err)
		}
	}
}
