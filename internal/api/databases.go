package api

import (
	"net/http"

	"github.com/querypilot/querypilot/internal/auth"
)

func handleListDatabases(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Databases == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "DATABASES_NOT_CONFIGURED", "database dependency is not configured", false, nil)
		return
	}
	if !requireRole(w, r, auth.RoleAsker) {
		return
	}

	names, err := deps.Databases.ListDatabases(r.Context())
	if err != nil {
		writeDomainError(r, w, err, "DATABASE_LIST_FAILED", "failed to list databases")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"databases": names})
}

func handleGetSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Databases == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "DATABASES_NOT_CONFIGURED", "database dependency is not configured", false, nil)
		return
	}
	if !requireRole(w, r, auth.RoleAsker) {
		return
	}

	name := r.PathValue("db")
	target, err := deps.Databases.Target(r.Context(), name)
	if err != nil {
		writeDomainError(r, w, err, "DATABASE_OPEN_FAILED", "failed to open database")
		return
	}
	schema, err := target.Schema(r.Context())
	if err != nil {
		writeDomainError(r, w, err, "SCHEMA_FETCH_FAILED", "failed to load schema")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"database": target.Name(),
		"ddl":      schema.DDL,
		"tables":   schema.Tables,
	})
}

// requireRole writes 403 and reports false when the caller lacks role.
// Requests without an identity (auth disabled) pass.
func requireRole(w http.ResponseWriter, r *http.Request, role string) bool {
	if err := auth.RequireRole(r, role); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return false
	}
	return true
}
