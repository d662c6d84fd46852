package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/querypilot/querypilot/internal/auth"
	"github.com/querypilot/querypilot/internal/history"
)

type historyEntry struct {
	Database  string     `json:"db"`
	ID        int64      `json:"id"`
	Question  string     `json:"question"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

func handleListHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.HistoryLister == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", "history dependency is not configured", false, nil)
		return
	}
	if !requireRole(w, r, auth.RoleAsker) {
		return
	}

	items, err := deps.HistoryLister.ListAll(r.Context())
	if err != nil {
		writeDomainError(r, w, err, "HISTORY_LIST_FAILED", "failed to list history")
		return
	}
	entries := make([]historyEntry, 0, len(items))
	for _, item := range items {
		entry := historyEntry{Database: item.Database, ID: item.ID, Question: item.Question}
		if !item.CreatedAt.IsZero() {
			createdAt := item.CreatedAt
			entry.CreatedAt = &createdAt
		}
		entries = append(entries, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

func handleGetHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	store, id, ok := historyStoreFromPath(deps, w, r, auth.RoleAsker)
	if !ok {
		return
	}
	item, err := store.GetHistory(r.Context(), id)
	if err != nil {
		writeDomainError(r, w, err, "HISTORY_FETCH_FAILED", "failed to load history item")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "success",
		"question":      item.Question,
		"generated_sql": item.GeneratedSQL,
	})
}

func handleDeleteHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	store, id, ok := historyStoreFromPath(deps, w, r, auth.RoleHistoryAdmin)
	if !ok {
		return
	}
	if err := store.DeleteHistory(r.Context(), id); err != nil {
		writeDomainError(r, w, err, "HISTORY_DELETE_FAILED", "failed to delete history item")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "db": r.PathValue("db"), "id": id})
}

func historyStoreFromPath(deps Dependencies, w http.ResponseWriter, r *http.Request, role string) (history.Store, int64, bool) {
	if deps.Histories == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", "history dependency is not configured", false, nil)
		return nil, 0, false
	}
	if !requireRole(w, r, role) {
		return nil, 0, false
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_HISTORY_ID", "history id must be a positive integer", false, nil)
		return nil, 0, false
	}
	store, err := deps.Histories.History(r.Context(), r.PathValue("db"))
	if err != nil {
		writeDomainError(r, w, err, "DATABASE_OPEN_FAILED", "failed to open database")
		return nil, 0, false
	}
	return store, id, true
}
