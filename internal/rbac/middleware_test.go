package rbac

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tenant-platform/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func newOrgRouter(svc *Service, principalID string, action ActionClass) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/orgs/:org_id/x", func(c *gin.Context) {
		if principalID != "" {
			c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), principalID))
		}
		c.Next()
	}, RequireOrgAction(svc, action, "org_id"), func(c *gin.Context) {
		role, _ := RoleFromGin(c)
		c.String(200, role.String())
	})
	return r
}

func doGet(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRequireOrgAction_AllowsAndExposesRole(t *testing.T) {
	store := newFakeStore()
	p, o := uuid.NewString(), uuid.NewString()
	store.put(p, o, RoleEditor.String(), true)

	w := doGet(newOrgRouter(NewService(store), p, ActionWrite), "/orgs/"+o+"/x")
	if w.Code != 200 || w.Body.String() != "editor" {
		t.Fatalf("expected 200 editor, got %d %q", w.Code, w.Body.String())
	}
}

func TestRequireOrgAction_InsufficientRoleIs403(t *testing.T) {
	store := newFakeStore()
	p, o := uuid.NewString(), uuid.NewString()
	store.put(p, o, RoleViewer.String(), true)

	w := doGet(newOrgRouter(NewService(store), p, ActionWrite), "/orgs/"+o+"/x")
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"message":"Access denied"`) {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestRequireOrgAction_NonMemberLooksLikeInsufficientRole(t *testing.T) {
	store := newFakeStore()
	p := uuid.NewString()
	r := newOrgRouter(NewService(store), p, ActionRead)

	missingOrg := doGet(r, "/orgs/"+uuid.NewString()+"/x")

	o := uuid.NewString()
	store.put(p, o, RoleViewer.String(), true)
	viewerWrite := doGet(newOrgRouter(NewService(store), p, ActionWrite), "/orgs/"+o+"/x")

	if missingOrg.Code != viewerWrite.Code || missingOrg.Body.String() != viewerWrite.Body.String() {
		t.Fatalf("non-member and insufficient role must be indistinguishable: %d %s vs %d %s",
			missingOrg.Code, missingOrg.Body.String(), viewerWrite.Code, viewerWrite.Body.String())
	}
}

func TestRequireOrgAction_Unauthenticated(t *testing.T) {
	w := doGet(newOrgRouter(NewService(newFakeStore()), "", ActionRead), "/orgs/"+uuid.NewString()+"/x")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRequireOrgAction_MalformedOrgIs400(t *testing.T) {
	w := doGet(newOrgRouter(NewService(newFakeStore()), uuid.NewString(), ActionRead), "/orgs/abc/x")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestRequireOrgAction_StoreFailureIs500(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("db down")

	w := doGet(newOrgRouter(NewService(store), uuid.NewString(), ActionRead), "/orgs/"+uuid.NewString()+"/x")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}
