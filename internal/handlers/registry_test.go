package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"compras/internal/handlers"
	"compras/models"

	"github.com/stretchr/testify/require"
)

func TestRegistryRequiresAdmin(t *testing.T) {
	e := newEnv(t)

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodPost, "/api/departments", `{"name":"Saúde"}`},
		{http.MethodPost, "/api/groups", `{"name":"Limpeza"}`},
		{http.MethodPost, "/api/suppliers", `{"name":"Nova"}`},
		{http.MethodPut, "/api/suppliers/s-acme/status?status=INATIVO", ``},
		{http.MethodPost, "/api/users", `{"username":"x","role":"ADMIN"}`},
	} {
		rr := e.do(t, tc.method, tc.path, "maria", tc.body)
		require.Equal(t, http.StatusForbidden, rr.Code, tc.path)
	}
}

func TestSupplierRegistration(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	rr := e.do(t, http.MethodPost, "/api/groups", "admin", `{"name":"Limpeza"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var g models.Group
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&g))
	require.NotEmpty(t, g.ID)

	rr = e.do(t, http.MethodPost, "/api/suppliers", "admin", `{"name":"Limpa Tudo","email":"contato@limpa.com"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var sp models.Supplier
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&sp))
	require.Equal(t, models.SupplierPending, sp.Status)

	rr = e.do(t, http.MethodPut, "/api/suppliers/"+sp.ID+"/groups", "admin", `["`+g.ID+`"]`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = e.do(t, http.MethodPut, "/api/suppliers/"+sp.ID+"/status?status=ATIVO", "admin", ``)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = e.do(t, http.MethodPost, "/api/suppliers/"+sp.ID+"/documents", "admin",
		`{"name":"CND Federal","validUntil":"2027-01-31T00:00:00Z"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	stored, err := e.store.GetSupplier(ctx, sp.ID)
	require.NoError(t, err)
	require.Equal(t, models.SupplierActive, stored.Status)
	require.Equal(t, []string{g.ID}, stored.Groups)
	require.Len(t, stored.Documents, 1)

	rr = e.do(t, http.MethodGet, "/api/suppliers?status=ATIVO", "maria", ``)
	require.Equal(t, http.StatusOK, rr.Code)
	var active []models.Supplier
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&active))
	require.Len(t, active, 2)
}

func TestSupplierRegistrationValidation(t *testing.T) {
	e := newEnv(t)

	rr := e.do(t, http.MethodPost, "/api/suppliers", "admin", `{"name":""}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = e.do(t, http.MethodPost, "/api/suppliers", "admin", `{"name":"X","status":"BANIDO"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = e.do(t, http.MethodPut, "/api/suppliers/nope/status?status=ATIVO", "admin", ``)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = e.do(t, http.MethodGet, "/api/suppliers?status=BANIDO", "admin", ``)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = e.do(t, http.MethodPost, "/api/suppliers/nope/documents", "admin",
		`{"name":"CND","validUntil":"2027-01-31T00:00:00Z"}`)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateUser(t *testing.T) {
	e := newEnv(t)

	rr := e.do(t, http.MethodPost, "/api/departments", "admin", `{"name":"Saúde","email":"saude@pref.gov.br"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var dep models.Department
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&dep))

	rr = e.do(t, http.MethodPost, "/api/users", "admin", `{"username":"ana","role":"SECRETARIA","departmentId":"`+dep.ID+`"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	u, err := e.store.GetUserByUsername(context.Background(), "ana")
	require.NoError(t, err)
	require.Equal(t, dep.ID, *u.DepartmentID)

	rr = e.do(t, http.MethodPost, "/api/users", "admin", `{"username":"bob","role":"FORNECEDOR"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestValidateUser(t *testing.T) {
	sup := "s1"
	require.NoError(t, handlers.ValidateUser(&models.User{Username: " joao ", Role: models.RoleWarehouse}))
	require.NoError(t, handlers.ValidateUser(&models.User{Username: "acme", Role: models.RoleSupplier, SupplierID: &sup}))

	require.Error(t, handlers.ValidateUser(&models.User{Username: "", Role: models.RoleAdmin}))
	require.Error(t, handlers.ValidateUser(&models.User{Username: "x", Role: "ROOT"}))
	require.Error(t, handlers.ValidateUser(&models.User{Username: "x", Role: models.RoleDepartment}))
}
