package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tenant-platform/internal/audit"
	"tenant-platform/internal/auth"
	"tenant-platform/internal/config"
	"tenant-platform/internal/membership"
	"tenant-platform/internal/rbac"
	"tenant-platform/internal/records"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type testAPI struct {
	t      *testing.T
	router *gin.Engine
	tokens *auth.Manager
	store  *membership.MemoryRepo
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := auth.NewManager(config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTL: time.Minute})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	store := membership.NewMemoryRepo()
	cache := rbac.NewMemoryCache(100, time.Minute)
	access := rbac.NewService(store, rbac.WithCache(cache))
	h := Handlers{
		Members: membership.NewService(store, access, audit.NewService(audit.NewMemoryRepo())),
		Records: records.NewService(records.NewMemoryRepo(store), access),
	}

	r := gin.New()
	h.Register(r.Group("/v1", auth.RequireAccessToken(tokens)), access)
	return &testAPI{t: t, router: r, tokens: tokens, store: store}
}

func (a *testAPI) do(principal, method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if principal != "" {
		tok, err := a.tokens.IssueAccessToken(time.Now(), principal)
		if err != nil {
			a.t.Fatalf("issue token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) createOrg(owner string) string {
	a.t.Helper()
	w := a.do(owner, http.MethodPost, "/v1/organizations", map[string]string{"name": "Acme"})
	if w.Code != http.StatusCreated {
		a.t.Fatalf("create org: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Organization struct {
			ID string `json:"id"`
		} `json:"organization"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		a.t.Fatalf("decode: %v", err)
	}
	return resp.Organization.ID
}

func (a *testAPI) addMember(owner, org, principal, role string) {
	a.t.Helper()
	w := a.do(owner, http.MethodPost, "/v1/organizations/"+org+"/members", map[string]string{"principal_id": principal, "role": role})
	if w.Code != http.StatusCreated {
		a.t.Fatalf("add member: %d %s", w.Code, w.Body.String())
	}
}

func message(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return body.Message
}

func TestUnauthenticated(t *testing.T) {
	a := newTestAPI(t)
	w := a.do("", http.MethodGet, "/v1/organizations/"+uuid.NewString()+"/customers", nil)
	if w.Code != http.StatusUnauthorized || message(t, w) != "Unauthorized" {
		t.Fatalf("expected 401 Unauthorized, got %d %s", w.Code, w.Body.String())
	}
}

func TestGetRole(t *testing.T) {
	a := newTestAPI(t)
	owner := uuid.NewString()
	org := a.createOrg(owner)

	w := a.do(owner, http.MethodGet, "/v1/organizations/"+org+"/role", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	var body struct {
		Role string `json:"role"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Role != "owner" {
		t.Fatalf("expected owner, got %q", body.Role)
	}

	// A non-member and a missing organization look the same.
	outsider := uuid.NewString()
	w1 := a.do(outsider, http.MethodGet, "/v1/organizations/"+org+"/role", nil)
	w2 := a.do(outsider, http.MethodGet, "/v1/organizations/"+uuid.NewString()+"/role", nil)
	if w1.Code != http.StatusForbidden || w2.Code != http.StatusForbidden || w1.Body.String() != w2.Body.String() {
		t.Fatalf("expected identical 403s, got %d %s / %d %s", w1.Code, w1.Body.String(), w2.Code, w2.Body.String())
	}
}

func TestMalformedOrganizationID(t *testing.T) {
	a := newTestAPI(t)
	w := a.do(uuid.NewString(), http.MethodGet, "/v1/organizations/not-a-uuid/customers", nil)
	if w.Code != http.StatusBadRequest || message(t, w) != "Invalid identifier" {
		t.Fatalf("expected 400, got %d %s", w.Code, w.Body.String())
	}
}

func TestViewerReadsButCannotWrite(t *testing.T) {
	a := newTestAPI(t)
	owner, viewer := uuid.NewString(), uuid.NewString()
	org := a.createOrg(owner)
	a.addMember(owner, org, viewer, "viewer")

	if w := a.do(viewer, http.MethodGet, "/v1/organizations/"+org+"/customers", nil); w.Code != http.StatusOK {
		t.Fatalf("expected viewer list 200, got %d", w.Code)
	}
	w := a.do(viewer, http.MethodPost, "/v1/organizations/"+org+"/customers", map[string]string{"name": "Acme"})
	if w.Code != http.StatusForbidden || message(t, w) != "Access denied" {
		t.Fatalf("expected 403 Access denied, got %d %s", w.Code, w.Body.String())
	}
}

func TestCustomerLifecycleAndCrossTenant(t *testing.T) {
	a := newTestAPI(t)
	owner1, owner2 := uuid.NewString(), uuid.NewString()
	org1 := a.createOrg(owner1)
	org2 := a.createOrg(owner2)

	// owner1 cannot create in org2.
	if w := a.do(owner1, http.MethodPost, "/v1/organizations/"+org2+"/customers", map[string]string{"name": "X"}); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 creating in foreign org, got %d", w.Code)
	}

	w := a.do(owner2, http.MethodPost, "/v1/organizations/"+org2+"/customers", map[string]string{"name": "Theirs"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	var c records.Customer
	_ = json.Unmarshal(w.Body.Bytes(), &c)

	// Addressing org2's customer by id from org1 is denied, not leaked.
	if w := a.do(owner1, http.MethodGet, "/v1/customers/"+c.ID, nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 reading foreign record, got %d", w.Code)
	}
	if w := a.do(owner1, http.MethodDelete, "/v1/customers/"+c.ID, nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 deleting foreign record, got %d", w.Code)
	}

	if w := a.do(owner2, http.MethodPut, "/v1/customers/"+c.ID, map[string]string{"name": "Renamed"}); w.Code != http.StatusOK {
		t.Fatalf("expected update 200, got %d %s", w.Code, w.Body.String())
	}
	if w := a.do(owner2, http.MethodDelete, "/v1/customers/"+c.ID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected delete 204, got %d", w.Code)
	}
	if w := a.do(owner2, http.MethodGet, "/v1/customers/"+c.ID, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
	if w := a.do(owner1, http.MethodGet, "/v1/organizations/"+org1+"/customers", nil); w.Code != http.StatusOK {
		t.Fatalf("expected own list 200, got %d", w.Code)
	}
}

func TestDeactivationRevokesImmediately(t *testing.T) {
	a := newTestAPI(t)
	owner, editor := uuid.NewString(), uuid.NewString()
	org := a.createOrg(owner)
	a.addMember(owner, org, editor, "editor")

	if w := a.do(editor, http.MethodPost, "/v1/organizations/"+org+"/customers", map[string]string{"name": "A"}); w.Code != http.StatusCreated {
		t.Fatalf("expected editor create 201, got %d", w.Code)
	}
	if w := a.do(owner, http.MethodDelete, "/v1/organizations/"+org+"/members/"+editor, nil); w.Code != http.StatusOK {
		t.Fatalf("deactivate: %d %s", w.Code, w.Body.String())
	}
	if w := a.do(editor, http.MethodPost, "/v1/organizations/"+org+"/customers", map[string]string{"name": "B"}); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 after deactivation, got %d", w.Code)
	}
	if w := a.do(editor, http.MethodGet, "/v1/organizations/"+org+"/customers", nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected read 403 after deactivation, got %d", w.Code)
	}
}

func TestMemberRoutes(t *testing.T) {
	a := newTestAPI(t)
	owner, admin, p := uuid.NewString(), uuid.NewString(), uuid.NewString()
	org := a.createOrg(owner)
	a.addMember(owner, org, admin, "admin")

	if w := a.do(admin, http.MethodPost, "/v1/organizations/"+org+"/members", map[string]string{"principal_id": p, "role": "owner"}); w.Code != http.StatusForbidden {
		t.Fatalf("expected admin granting owner 403, got %d", w.Code)
	}
	if w := a.do(admin, http.MethodPost, "/v1/organizations/"+org+"/members", map[string]string{"principal_id": p, "role": "root"}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected unknown role 400, got %d", w.Code)
	}
	a.addMember(admin, org, p, "viewer")
	if w := a.do(admin, http.MethodPost, "/v1/organizations/"+org+"/members", map[string]string{"principal_id": p, "role": "viewer"}); w.Code != http.StatusConflict {
		t.Fatalf("expected duplicate 409, got %d", w.Code)
	}
	if w := a.do(admin, http.MethodPatch, "/v1/organizations/"+org+"/members/"+p, map[string]string{"role": "editor"}); w.Code != http.StatusOK {
		t.Fatalf("expected role change 200, got %d", w.Code)
	}
	if w := a.do(owner, http.MethodDelete, "/v1/organizations/"+org+"/members/"+owner, nil); w.Code != http.StatusConflict {
		t.Fatalf("expected last owner 409, got %d", w.Code)
	}
	if w := a.do(p, http.MethodPost, "/v1/organizations/"+org+"/members", map[string]string{"principal_id": uuid.NewString(), "role": "viewer"}); w.Code != http.StatusForbidden {
		t.Fatalf("expected editor adding member 403, got %d", w.Code)
	}

	w := a.do(p, http.MethodGet, "/v1/organizations/"+org+"/members", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected list 200, got %d", w.Code)
	}
	var body struct {
		Members []membership.Membership `json:"members"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(body.Members))
	}
}

func TestMalformedBody_DeniedBeforeDecoding(t *testing.T) {
	a := newTestAPI(t)
	owner, outsider := uuid.NewString(), uuid.NewString()
	org := a.createOrg(owner)

	w := a.do(owner, http.MethodPost, "/v1/organizations/"+org+"/customers", map[string]string{"name": "Acme"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	var c records.Customer
	_ = json.Unmarshal(w.Body.Bytes(), &c)

	bad := "not an object"
	routes := []struct{ method, path string }{
		{http.MethodPost, "/v1/organizations/" + org + "/members"},
		{http.MethodPatch, "/v1/organizations/" + org + "/members/" + owner},
		{http.MethodPost, "/v1/organizations/" + org + "/customers"},
		{http.MethodPost, "/v1/organizations/" + org + "/species"},
		{http.MethodPut, "/v1/customers/" + c.ID},
	}
	for _, rt := range routes {
		if w := a.do(outsider, rt.method, rt.path, bad); w.Code != http.StatusForbidden {
			t.Fatalf("%s %s: expected outsider 403, got %d", rt.method, rt.path, w.Code)
		}
		if w := a.do(owner, rt.method, rt.path, bad); w.Code != http.StatusBadRequest {
			t.Fatalf("%s %s: expected owner 400, got %d", rt.method, rt.path, w.Code)
		}
	}
}

func TestSpeciesRequiresAdminWrite(t *testing.T) {
	a := newTestAPI(t)
	owner, editor := uuid.NewString(), uuid.NewString()
	org := a.createOrg(owner)
	a.addMember(owner, org, editor, "editor")

	body := map[string]any{"name": "Oak", "yield_ratio": 0.55}
	if w := a.do(editor, http.MethodPost, "/v1/organizations/"+org+"/species", body); w.Code != http.StatusForbidden {
		t.Fatalf("expected editor 403, got %d", w.Code)
	}
	if w := a.do(owner, http.MethodPost, "/v1/organizations/"+org+"/species", body); w.Code != http.StatusCreated {
		t.Fatalf("expected owner 201, got %d %s", w.Code, w.Body.String())
	}
	if w := a.do(editor, http.MethodGet, "/v1/organizations/"+org+"/species", nil); w.Code != http.StatusOK {
		t.Fatalf("expected editor list 200, got %d", w.Code)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{auth.ErrNoPrincipal, http.StatusUnauthorized},
		{rbac.ErrMalformedIdentifier, http.StatusBadRequest},
		{rbac.ErrAccessDenied, http.StatusForbidden},
		{records.ErrNotFound, http.StatusNotFound},
		{membership.ErrLastOwner, http.StatusConflict},
		{rbac.ErrStoreUnavailable, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got, _ := classify(tc.err); got != tc.status {
			t.Errorf("classify(%v) = %d, want %d", tc.err, got, tc.status)
		}
	}
}
