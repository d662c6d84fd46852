package api

import (
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/querypilot/querypilot/internal/auth"
)

type exportRequest struct {
	Database string `json:"database"`
	SQL      string `json:"sql"`
}

func handleCreateExport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Exporter == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "EXPORT_NOT_CONFIGURED", "result export is not configured", false, nil)
		return
	}
	if !requireRole(w, r, auth.RoleAsker) {
		return
	}

	var req exportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid export request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Database) == "" || strings.TrimSpace(req.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", "database and sql are required", false, nil)
		return
	}

	exp, err := deps.Exporter.Export(r.Context(), req.Database, req.SQL)
	if err != nil {
		writeDomainError(r, w, err, "EXPORT_FAILED", "failed to export result")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"key":          exp.Key,
		"database":     exp.Database,
		"size":         exp.Size,
		"rows":         exp.Rows,
		"truncated":    exp.Truncated,
		"created_at":   exp.CreatedAt,
		"download_url": "/v1/exports/" + exp.Key,
	})
}

func handleDownloadExport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Exporter == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "EXPORT_NOT_CONFIGURED", "result export is not configured", false, nil)
		return
	}
	if !requireRole(w, r, auth.RoleAsker) {
		return
	}

	key := r.PathValue("key")
	body, info, err := deps.Exporter.Download(r.Context(), key)
	if err != nil {
		writeDomainError(r, w, err, "EXPORT_DOWNLOAD_FAILED", "failed to download export")
		return
	}
	defer func() { _ = body.Close() }()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(key)+`"`)
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil && deps.Logger != nil {
		deps.Logger.WarnContext(r.Context(), "export_download_interrupted", "key", key, "error", err)
	}
}
