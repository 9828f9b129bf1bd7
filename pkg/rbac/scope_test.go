package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/httputil"
)

func caller(id, role string) *auth.AuthContext {
	return &auth.AuthContext{User: &auth.User{ID: id, Role: auth.UserRole{Name: role}}}
}

func TestOwnerScope(t *testing.T) {
	assert.Equal(t, "", OwnerScope(caller("u1", "SuperAdmin")))
	assert.Equal(t, "", OwnerScope(caller("u1", "Admin")))
	assert.Equal(t, "u1", OwnerScope(caller("u1", "Manager")))
	assert.Equal(t, "u1", OwnerScope(caller("u1", "User")))
	assert.Equal(t, "u1", OwnerScope(caller("u1", "Custom")))
	assert.Equal(t, "", OwnerScope(nil))
}

func TestCanModify(t *testing.T) {
	assert.True(t, CanModify(caller("u1", "User"), "u1"))
	assert.False(t, CanModify(caller("u1", "User"), "u2"))
	assert.False(t, CanModify(caller("u1", "Manager"), "u2"))
	assert.True(t, CanModify(caller("u1", "Admin"), "u2"))
	assert.True(t, CanModify(caller("u1", "SuperAdmin"), "u2"))
	assert.False(t, CanModify(nil, "u1"))
	assert.False(t, CanModify(&auth.AuthContext{}, ""))
}

func TestRequireOwnerOrAdmin(t *testing.T) {
	assert.NoError(t, RequireOwnerOrAdmin(caller("u1", "User"), "u1"))

	err := RequireOwnerOrAdmin(caller("u1", "User"), "u2")
	appErr := httputil.Classify(err)
	assert.Equal(t, httputil.KindForbidden, appErr.Kind)
	assert.Equal(t, http.StatusForbidden, appErr.Kind.Status())
}

func TestPermissionMiddleware_Authorize(t *testing.T) {
	pm := NewPermissionMiddleware(DefaultTable(), nil)

	assert.NoError(t, pm.Authorize(caller("u1", "User"), PermFilesUpload))
	assert.Equal(t, httputil.KindForbidden, httputil.Classify(pm.Authorize(caller("u1", "User"), PermFilesDelete)).Kind)
	assert.Equal(t, httputil.KindUnauthenticated, httputil.Classify(pm.Authorize(nil, PermFilesRead)).Kind)
	assert.Equal(t, httputil.KindUnauthenticated, httputil.Classify(pm.Authorize(&auth.AuthContext{Identity: &auth.Identity{}}, PermFilesRead)).Kind)
}

func TestPermissionMiddleware_RequirePermission(t *testing.T) {
	pm := NewPermissionMiddleware(nil, nil)
	called := false
	handler := pm.Require(PermDashboardRead, func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest("GET", "/", nil)
	req = req.WithContext(auth.WithAuthContext(req.Context(), caller("u1", "Guest")))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
