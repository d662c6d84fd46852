package api

import (
	"net/http"
	"strings"

	"github.com/querypilot/querypilot/internal/assist"
	"github.com/querypilot/querypilot/internal/auth"
)

type askRequest struct {
	Database string `json:"database"`
	Question string `json:"question"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Assistant == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASK_NOT_CONFIGURED", "question answering is not configured", false, nil)
		return
	}
	if !requireRole(w, r, auth.RoleAsker) {
		return
	}

	var req askRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Database) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "DATABASE_REQUIRED", "database is required", false, nil)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	answer, err := deps.Assistant.Ask(r.Context(), req.Database, req.Question)
	if err != nil {
		writeDomainError(r, w, err, "ASK_FAILED", "failed to answer question")
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func handleConfirm(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Assistant == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASK_NOT_CONFIGURED", "question answering is not configured", false, nil)
		return
	}
	if !requireRole(w, r, auth.RoleAsker) {
		return
	}

	var req assist.ConfirmInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid confirm request body", false, map[string]any{"details": err.Error()})
		return
	}
	result, err := deps.Assistant.Confirm(r.Context(), req)
	if err != nil {
		writeDomainError(r, w, err, "CONFIRM_FAILED", "failed to save confirmed query")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
