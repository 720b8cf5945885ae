package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/sitepages/internal/db"
)

func newSessionEngine(api *API) *gin.Engine {
	r := gin.New()
	r.Use(sessions.Sessions("test_session", cookie.NewStore([]byte("test-secret"))))
	r.POST("/admin/login", api.Login)
	r.POST("/admin/logout", api.Logout)
	protected := r.Group("/admin/api", AuthRequired())
	protected.GET("/me", api.Me)
	return r
}

func postJSON(r http.Handler, target, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoginSessionFlow(t *testing.T) {
	api, _ := setupTestAPI(t)
	if err := db.EnsureUser(api.DB(), "admin", "s3cret"); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	r := newSessionEngine(api)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/api/me", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 without session, got %d", w.Code)
	}

	w = postJSON(r, "/admin/login", `{"username":"admin","password":"wrong"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for bad password, got %d", w.Code)
	}

	w = postJSON(r, "/admin/login", `{"username":"admin","password":"s3cret"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("expected a session cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/api/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 with session, got %d", w.Code)
	}
	user := decodeBody(t, w)["user"].(map[string]any)
	if user["username"] != "admin" {
		t.Fatalf("unexpected user %v", user)
	}
}

func TestLoginRequiresCredentials(t *testing.T) {
	api, _ := setupTestAPI(t)
	r := newSessionEngine(api)

	w := postJSON(r, "/admin/login", `{"username":""}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}

	w = postJSON(r, "/admin/login", `{"username":"ghost","password":"x"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for unknown user, got %d", w.Code)
	}
}
