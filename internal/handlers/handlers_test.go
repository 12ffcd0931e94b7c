package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"compras/db"
	"compras/db/dbtest"
	"compras/internal/handlers"
	"compras/internal/handlers/testutils"
	"compras/internal/lifecycle"
	"compras/internal/notify"
	"compras/models"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

// recordingNotifier запоминает адресатов
type recordingNotifier struct {
	mu sync.Mutex
	to []string
}

func (n *recordingNotifier) Send(_ context.Context, to, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.to = append(n.to, to)
	return nil
}

type env struct {
	h      *handlers.Handler
	router http.Handler
	store  *db.Storage
	mail   *recordingNotifier
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := dbtest.Open(t)
	ctx := context.Background()

	dep := "dep1"
	acme := "s-acme"
	require.NoError(t, store.CreateDepartment(ctx, &models.Department{ID: dep, Name: "Educação", Email: "educacao@pref.gov.br"}))
	require.NoError(t, store.CreateGroup(ctx, &models.Group{ID: "g1", Name: "Papelaria"}))
	require.NoError(t, store.CreateSupplier(ctx, &models.Supplier{
		ID: acme, Name: "Acme", Email: "acme@example.com", Status: models.SupplierActive, Groups: []string{"g1"},
	}))
	for _, u := range []models.User{
		{ID: "u-admin", Username: "admin", Role: models.RoleAdmin},
		{ID: "u-maria", Username: "maria", Role: models.RoleDepartment, DepartmentID: &dep},
		{ID: "u-acme", Username: "acme", Role: models.RoleSupplier, SupplierID: &acme},
	} {
		u := u
		require.NoError(t, store.CreateUser(ctx, &u))
	}

	log, _ := test.NewNullLogger()
	catalog, err := notify.DefaultCatalog()
	require.NoError(t, err)
	mail := &recordingNotifier{}
	engine := lifecycle.New(store, notify.NewDispatcher(mail, catalog, 2, log), log)

	h := handlers.NewHandler(engine, store, log)
	return &env{h: h, router: handlers.NewRouter(h), store: store, mail: mail}
}

func (e *env) do(t *testing.T, method, path, username, body string) *httptest.ResponseRecorder {
	t.Helper()
	if username != "" {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		path += sep + "username=" + username
	}
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}

const createBody = `{
	"title": "Material escolar",
	"description": "Reposição anual",
	"items": [
		{"description": "Caderno", "quantity": 10, "unit": "un", "targetPrice": "12.00", "groupId": "g1"}
	]
}`

func (e *env) createDemand(t *testing.T) models.Demand {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/demands/new", "maria", createBody)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var d models.Demand
	decode(t, rr, &d)
	return d
}

func TestPingHandler(t *testing.T) {
	e := newEnv(t)
	rr := e.do(t, http.MethodGet, "/api/ping", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestIdentifyMiddleware(t *testing.T) {
	e := newEnv(t)

	rr := e.do(t, http.MethodGet, "/api/demands", "", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = e.do(t, http.MethodGet, "/api/demands", "ghost", "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = e.do(t, http.MethodGet, "/api/demands", "maria", "")
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestCreateDemandHandler(t *testing.T) {
	e := newEnv(t)

	d := e.createDemand(t)
	require.Equal(t, models.StatusDraft, d.Status)
	require.Equal(t, "dep1", d.DepartmentID)
	require.Len(t, d.Items, 1)

	rr := e.do(t, http.MethodPost, "/api/demands/new", "maria", `{"title": `)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = e.do(t, http.MethodPost, "/api/demands/new", "acme", createBody)
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = e.do(t, http.MethodGet, "/api/demands?status=RASCUNHO&limit=10", "maria", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []models.Demand
	decode(t, rr, &list)
	require.Len(t, list, 1)

	rr = e.do(t, http.MethodGet, "/api/demands?status=BOGUS", "maria", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDemandLifecycleOverHTTP(t *testing.T) {
	e := newEnv(t)
	d := e.createDemand(t)
	base := "/api/demands/" + d.ID

	deadline := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	rr := e.do(t, http.MethodPut, base+"/publish", "maria", `{"proposalDeadline": "`+deadline+`"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var published struct {
		Demand        models.Demand `json:"demand"`
		Notifications struct {
			Sent int `json:"sent"`
		} `json:"notifications"`
	}
	decode(t, rr, &published)
	require.Equal(t, models.StatusOpen, published.Demand.Status)
	require.Equal(t, 1, published.Notifications.Sent)

	itemID := published.Demand.Items[0].ID
	rr = e.do(t, http.MethodPost, base+"/proposals", "acme",
		`{"deliveryDays": 5, "prices": [{"itemId": "`+itemID+`", "unitPrice": "11.50"}]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = e.do(t, http.MethodGet, base+"/pending-suppliers", "maria", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `[]`, rr.Body.String())

	rr = e.do(t, http.MethodPut, base+"/close", "maria", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = e.do(t, http.MethodPut, base+"/review?target=AGUARDANDO_ANALISE_ALMOXARIFADO", "maria", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = e.do(t, http.MethodGet, base+"/ranking", "maria", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var ranked []struct {
		Position int `json:"position"`
	}
	decode(t, rr, &ranked)
	require.Len(t, ranked, 1)

	rr = e.do(t, http.MethodPut, base+"/winner", "admin", `{"mode": "global", "supplierName": "Acme", "totalValue": 115}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var won struct {
		Result struct {
			Winners []string `json:"winners"`
			Losers  []string `json:"losers"`
		} `json:"result"`
	}
	decode(t, rr, &won)
	require.Equal(t, []string{"Acme"}, won.Result.Winners)
	require.Empty(t, won.Result.Losers)

	rr = e.do(t, http.MethodPut, base+"/complete", "admin", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = e.do(t, http.MethodGet, base, "maria", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var final models.Demand
	decode(t, rr, &final)
	require.Equal(t, models.StatusCompleted, final.Status)
	require.NotNil(t, final.Winner)

	rr = e.do(t, http.MethodGet, "/api/audit?resourceType=demand&resourceId="+d.ID+"&limit=50", "admin", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var entries []models.AuditEntry
	decode(t, rr, &entries)
	require.Len(t, entries, 6)

	rr = e.do(t, http.MethodGet, "/api/audit?resourceType=demand&resourceId="+d.ID, "maria", "")
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestErrorStatusMapping(t *testing.T) {
	e := newEnv(t)
	d := e.createDemand(t)
	base := "/api/demands/" + d.ID

	rr := e.do(t, http.MethodPut, base+"/publish", "maria", "")
	require.Equal(t, http.StatusBadRequest, rr.Code, "no deadline")

	rr = e.do(t, http.MethodPut, base+"/winner", "admin", `{"mode": "global", "supplierName": "Acme", "totalValue": 1}`)
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = e.do(t, http.MethodPut, base+"/winner", "admin", `{"mode": "lottery"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = e.do(t, http.MethodPut, base+"/reject", "maria", `{"reason": ""}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = e.do(t, http.MethodDelete, base, "maria", "")
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = e.do(t, http.MethodGet, "/api/demands/missing", "maria", "")
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = e.do(t, http.MethodPut, base+"/cancel", "maria", `{"reason": "Sem orçamento"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = e.do(t, http.MethodPut, base+"/close", "maria", "")
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = e.do(t, http.MethodDelete, base, "admin", "")
	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestQuestionEndpoints(t *testing.T) {
	e := newEnv(t)
	d := e.createDemand(t)

	rr := e.do(t, http.MethodPost, "/api/demands/"+d.ID+"/questions", "acme", `{"question": "Aceita entrega parcial?"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var q models.Question
	decode(t, rr, &q)

	rr = e.do(t, http.MethodPut, "/api/questions/"+q.ID+"/answer", "maria", `{"answer": "Sim"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Contains(t, e.mail.to, "acme@example.com")

	rr = e.do(t, http.MethodGet, "/api/questions/unread", "acme", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var unread []models.Question
	decode(t, rr, &unread)
	require.Len(t, unread, 1)

	rr = e.do(t, http.MethodPut, "/api/questions/"+q.ID+"/read", "acme", "")
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = e.do(t, http.MethodGet, "/api/questions/unread", "acme", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `[]`, rr.Body.String())
}

func TestGetDemandHandlerWithURLParams(t *testing.T) {
	e := newEnv(t)
	d := e.createDemand(t)

	req := httptest.NewRequest(http.MethodGet, "/api/demands/"+d.ID, nil)
	req = testutils.WithChiURLParams(req, map[string]string{"demandId": d.ID})
	req = testutils.WithUser(req, models.User{ID: "u-admin", Username: "admin", Role: models.RoleAdmin})

	rr := httptest.NewRecorder()
	e.h.GetDemandHandler(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var got models.Demand
	decode(t, rr, &got)
	require.Equal(t, d.Protocol, got.Protocol)
}
