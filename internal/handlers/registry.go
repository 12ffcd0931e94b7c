package handlers

import (
	"errors"
	"net/http"
	"strings"

	"compras/db"
	"compras/internal/identity"
	"compras/models"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Справочники: секретарии, группы, поставщики, пользователи. Менять их может только администратор.

func requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	u, ok := identity.FromContext(r.Context())
	if !ok || !identity.HasRole(u, models.RoleAdmin) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return false
	}
	return true
}

// storeFail отвечает на ошибку хранилища: 404 для отсутствующей записи, иначе 500.
func (h *Handler) storeFail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	h.Log.WithError(err).WithField("path", r.URL.Path).Error("registry request failed")
	http.Error(w, "Internal error", http.StatusInternalServerError)
}

func (h *Handler) CreateDepartmentHandler(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	var d models.Department
	if !readJSON(w, r, &d, false) {
		return
	}
	if strings.TrimSpace(d.Name) == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	d.ID = uuid.NewString()
	if err := h.Store.CreateDepartment(r.Context(), &d); err != nil {
		h.storeFail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) CreateGroupHandler(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	var g models.Group
	if !readJSON(w, r, &g, false) {
		return
	}
	if strings.TrimSpace(g.Name) == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	g.ID = uuid.NewString()
	if err := h.Store.CreateGroup(r.Context(), &g); err != nil {
		h.storeFail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *Handler) GetGroupsHandler(w http.ResponseWriter, r *http.Request) {
	groups, err := h.Store.ListGroups(r.Context())
	if err != nil {
		h.storeFail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func validSupplierStatus(s models.SupplierStatus) bool {
	switch s {
	case models.SupplierPending, models.SupplierActive, models.SupplierRejected, models.SupplierInactive:
		return true
	}
	return false
}

// CreateSupplierHandler регистрирует поставщика; без статуса он ждёт проверки (PENDENTE)
func (h *Handler) CreateSupplierHandler(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	var sp models.Supplier
	if !readJSON(w, r, &sp, false) {
		return
	}
	if strings.TrimSpace(sp.Name) == "" || len(sp.Name) > 100 {
		http.Error(w, "name is required and max length 100", http.StatusBadRequest)
		return
	}
	if sp.Status == "" {
		sp.Status = models.SupplierPending
	}
	if !validSupplierStatus(sp.Status) {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}

	sp.ID = uuid.NewString()
	if err := h.Store.CreateSupplier(r.Context(), &sp); err != nil {
		h.storeFail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

func (h *Handler) GetSuppliersHandler(w http.ResponseWriter, r *http.Request) {
	status := models.SupplierStatus(r.URL.Query().Get("status"))
	if status != "" && !validSupplierStatus(status) {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}
	suppliers, err := h.Store.ListSuppliers(r.Context(), status)
	if err != nil {
		h.storeFail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, suppliers)
}

func (h *Handler) GetSupplierHandler(w http.ResponseWriter, r *http.Request) {
	sp, err := h.Store.GetSupplier(r.Context(), chi.URLParam(r, "supplierId"))
	if err != nil {
		h.storeFail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

// UpdateSupplierStatusHandler - PUT /api/suppliers/{supplierId}/status?status=ATIVO
func (h *Handler) UpdateSupplierStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	status := models.SupplierStatus(r.URL.Query().Get("status"))
	if !validSupplierStatus(status) {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}

	id := chi.URLParam(r, "supplierId")
	if err := h.Store.UpdateSupplierStatus(r.Context(), id, status); err != nil {
		h.storeFail(w, r, err)
		return
	}
	h.GetSupplierHandler(w, r)
}

func (h *Handler) SetSupplierGroupsHandler(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	var groups []string
	if !readJSON(w, r, &groups, false) {
		return
	}

	id := chi.URLParam(r, "supplierId")
	if _, err := h.Store.GetSupplier(r.Context(), id); err != nil {
		h.storeFail(w, r, err)
		return
	}
	if err := h.Store.SetSupplierGroups(r.Context(), id, groups); err != nil {
		h.storeFail(w, r, err)
		return
	}
	h.GetSupplierHandler(w, r)
}

func (h *Handler) AddSupplierDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	var doc models.SupplierDocument
	if !readJSON(w, r, &doc, false) {
		return
	}
	if strings.TrimSpace(doc.Name) == "" || doc.ValidUntil.IsZero() {
		http.Error(w, "name and validUntil are required", http.StatusBadRequest)
		return
	}

	doc.ID = uuid.NewString()
	doc.SupplierID = chi.URLParam(r, "supplierId")
	if _, err := h.Store.GetSupplier(r.Context(), doc.SupplierID); err != nil {
		h.storeFail(w, r, err)
		return
	}
	if err := h.Store.AddSupplierDocument(r.Context(), &doc); err != nil {
		h.storeFail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// CreateUserHandler заводит пользователя портала
func (h *Handler) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	var u models.User
	if !readJSON(w, r, &u, false) {
		return
	}
	if err := ValidateUser(&u); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	u.ID = uuid.NewString()
	if err := h.Store.CreateUser(r.Context(), &u); err != nil {
		h.storeFail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// ValidateUser проверяет роль и привязку: поставщику нужен supplierId, секретарии - departmentId.
func ValidateUser(u *models.User) error {
	u.Username = strings.TrimSpace(u.Username)
	if u.Username == "" || len(u.Username) > 50 {
		return errors.New("username is required and max length 50")
	}
	switch u.Role {
	case models.RoleAdmin, models.RoleWarehouse:
	case models.RoleDepartment:
		if u.DepartmentID == nil || *u.DepartmentID == "" {
			return errors.New("departmentId is required for SECRETARIA")
		}
	case models.RoleSupplier:
		if u.SupplierID == nil || *u.SupplierID == "" {
			return errors.New("supplierId is required for FORNECEDOR")
		}
	default:
		return errors.New("invalid role")
	}
	return nil
}
