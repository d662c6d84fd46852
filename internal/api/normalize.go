package api

import (
	"net/http"

	"github.com/querypilot/querypilot/internal/auth"
	"github.com/querypilot/querypilot/internal/rules"
)

type normalizeRequest struct {
	Text string `json:"text"`
}

func handleNormalize(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, auth.RoleAsker) {
		return
	}
	var req normalizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid normalize request body", false, map[string]any{"details": err.Error()})
		return
	}

	normalizer := deps.Normalizer
	if normalizer == nil {
		normalizer = rules.New(nil)
	}
	normalized, subs := normalizer.Explain(req.Text)
	if subs == nil {
		subs = []rules.Substitution{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"text":          req.Text,
		"normalized":    normalized,
		"substitutions": subs,
	})
}
