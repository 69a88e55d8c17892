package http

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/opentrusty/console/internal/audit"
	"github.com/opentrusty/console/internal/backend"
	"github.com/opentrusty/console/internal/observability/logger"
)

const (
	// MaxAvatarSize is the largest accepted avatar file.
	MaxAvatarSize = 5 << 20
	// multipartOverhead bounds the framing allowed around the file.
	multipartOverhead = 64 << 10

	avatarField = "avatar"

	routeAvatarFetch  = "/avatar-proxy/{filename}"
	routeAvatarUpload = "/avatar-proxy/upload"
)

var avatarContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
}

var allowedUploadTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// avatarContentType maps a filename suffix to a content type.
// The backend's own Content-Type is never trusted.
func avatarContentType(filename string) string {
	if ct, ok := avatarContentTypes[strings.ToLower(path.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// avatarFilename extracts a single path segment filename from the request.
// The name is decoded exactly once from the escaped request path.
func avatarFilename(r *http.Request) (string, bool) {
	raw, ok := escapedWildcard(r, "/avatar-proxy/")
	if !ok || raw == "" {
		return "", false
	}
	name, err := url.PathUnescape(raw)
	if err != nil {
		return "", false
	}
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\") {
		return "", false
	}
	return name, true
}

// GetAvatar streams an avatar image from the backend
func (h *Handler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	filename, ok := avatarFilename(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Filename is required")
		return
	}

	ctx, span := h.tracer.StartProxy(r.Context(), routeAvatarFetch, r.Method)
	defer span.End()

	resp, err := h.backend.Get(ctx, routeAvatarFetch, "/api/avatars/"+url.PathEscape(filename), r.Header.Get("Authorization"))
	if err != nil {
		slog.ErrorContext(ctx, "failed to fetch avatar", logger.Filename(filename), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to fetch avatar")
		return
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		respondError(w, http.StatusNotFound, "Avatar not found")
		return
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		slog.ErrorContext(ctx, "backend rejected avatar fetch",
			logger.Filename(filename),
			logger.BackendStatus(resp.StatusCode),
		)
		respondError(w, http.StatusInternalServerError, "Failed to fetch avatar")
		return
	}

	w.Header().Set("Content-Type", avatarContentType(filename))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp.Body)
}

// errTooLarge marks an upload that crossed MaxAvatarSize
var errTooLarge = errors.New("avatar exceeds maximum size")

// avatarUpload is the result of scanning a multipart body
type avatarUpload struct {
	files    []backend.File
	rejected []string
}

// readAvatarUpload walks the multipart body part by part. Parts under other
// field names and files of a disallowed type are drained without buffering.
func readAvatarUpload(mr *multipart.Reader) (*avatarUpload, error) {
	upload := &avatarUpload{}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return upload, nil
		}
		if err != nil {
			return nil, err
		}

		if err := upload.consume(part); err != nil {
			part.Close()
			return nil, err
		}
		part.Close()
	}
}

func (u *avatarUpload) consume(part *multipart.Part) error {
	filename := part.FileName()
	if part.FormName() != avatarField || filename == "" {
		_, err := io.Copy(io.Discard, part)
		return err
	}

	mediaType, _, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
	if err != nil || !allowedUploadTypes[mediaType] {
		u.rejected = append(u.rejected, filename)
		_, err = io.Copy(io.Discard, part)
		return err
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(part, MaxAvatarSize+1))
	if err != nil {
		return err
	}
	if n > MaxAvatarSize {
		return errTooLarge
	}

	u.files = append(u.files, backend.File{
		FieldName:   avatarField,
		Filename:    filename,
		ContentType: mediaType,
		Data:        buf.Bytes(),
	})
	return nil
}

// UploadAvatar forwards a single validated avatar image to the backend
func (h *Handler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxAvatarSize+multipartOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		h.rejectUpload(w, r, http.StatusBadRequest, "No valid avatar file uploaded", "not_multipart")
		return
	}

	upload, err := readAvatarUpload(mr)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.Is(err, errTooLarge) || errors.As(err, &maxErr) {
			h.rejectUpload(w, r, http.StatusRequestEntityTooLarge, "File too large", "too_large")
			return
		}
		slog.WarnContext(r.Context(), "malformed avatar upload", logger.Error(err))
		h.rejectUpload(w, r, http.StatusBadRequest, "No valid avatar file uploaded", "malformed")
		return
	}

	switch len(upload.files) {
	case 0:
		reason := "missing"
		if len(upload.rejected) > 0 {
			reason = "unsupported_type"
		}
		h.rejectUpload(w, r, http.StatusBadRequest, "No valid avatar file uploaded", reason)
		return
	case 1:
	default:
		h.rejectUpload(w, r, http.StatusBadRequest, "Only one avatar file may be uploaded", "multiple_files")
		return
	}
	file := upload.files[0]

	ctx, span := h.tracer.StartProxy(r.Context(), routeAvatarUpload, r.Method)
	defer span.End()

	resp, err := h.backend.PostMultipart(ctx, routeAvatarUpload, "/api/me/avatar", r.Header.Get("Authorization"), file)
	if err != nil {
		slog.ErrorContext(ctx, "failed to upload avatar",
			logger.Filename(file.Filename),
			logger.Size(int64(len(file.Data))),
			logger.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "Failed to upload avatar")
		return
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		h.auditLogger.Log(ctx, audit.Event{
			Type:      audit.TypeAvatarUploaded,
			Resource:  file.Filename,
			IPAddress: getClientIP(r),
			UserAgent: r.UserAgent(),
			Metadata: map[string]any{
				"content_type": file.ContentType,
				"size_bytes":   len(file.Data),
			},
		})
	} else {
		slog.WarnContext(ctx, "backend rejected avatar upload",
			logger.Filename(file.Filename),
			logger.BackendStatus(resp.StatusCode),
		)
	}

	// Backend status and body are relayed verbatim, errors included.
	respondBackend(w, resp)
}

func (h *Handler) rejectUpload(w http.ResponseWriter, r *http.Request, status int, message, reason string) {
	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeAvatarUploadRejected,
		Resource:  routeAvatarUpload,
		IPAddress: getClientIP(r),
		UserAgent: r.UserAgent(),
		Metadata:  map[string]any{"reason": reason},
	})
	respondError(w, status, message)
}
