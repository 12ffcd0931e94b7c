package handlers

import (
	"net/http"

	"compras/internal/identity"
	"compras/models"
)

// GetAuditHandler - журнал по ресурсу, только для администратора
func (h *Handler) GetAuditHandler(w http.ResponseWriter, r *http.Request) {
	u, ok := identity.FromContext(r.Context())
	if !ok || !identity.HasRole(u, models.RoleAdmin) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	resourceType := r.URL.Query().Get("resourceType")
	resourceID := r.URL.Query().Get("resourceId")
	if resourceType == "" || resourceID == "" {
		http.Error(w, "Missing resourceType or resourceId", http.StatusBadRequest)
		return
	}

	params := parsePaginationParams(r)
	entries, err := h.Store.ListAudit(r.Context(), resourceType, resourceID, params.Limit, params.Offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
