package audit

import (
	"net/http"
	"strconv"

	"github.com/noah-isme/quotedesk/internal/common"
)

// Handler exposes the audit trail to admins.
type Handler struct {
	Store Store
}

// List returns entries newest first. ?limit is capped at 200.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_NOT_CONFIGURED", "audit store not configured", nil)
		return
	}
	limit := atoiDefault(r.URL.Query().Get("limit"), 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := atoiDefault(r.URL.Query().Get("offset"), 0)
	if offset < 0 {
		offset = 0
	}

	entries, err := h.Store.List(r.Context(), limit, offset)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_QUERY_FAILED", "unable to fetch audit log", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": entries, "limit": limit, "offset": offset})
}

func atoiDefault(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
