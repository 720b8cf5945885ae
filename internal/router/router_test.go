package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sitepages/internal/cache"
	"github.com/sitepages/internal/db"
	"github.com/sitepages/internal/handler"
	"github.com/sitepages/internal/testdb"
)

type testClient struct {
	t       *testing.T
	r       *gin.Engine
	cookies []*http.Cookie
}

func (c *testClient) do(method, target string, body any) (*httptest.ResponseRecorder, map[string]any) {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	c.r.ServeHTTP(w, req)
	if cookies := w.Result().Cookies(); len(cookies) > 0 {
		c.cookies = cookies
	}

	var payload map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &payload)
	return w, payload
}

func setupTestRouter(t *testing.T) (*testClient, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb := testdb.Open(t)
	if err := db.EnsureUser(gdb, "admin", "s3cret"); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	uploadDir := t.TempDir()
	api := handler.NewAPI(gdb, handler.Options{
		UploadDir:   uploadDir,
		UploadURL:   "/media",
		SiteBaseURL: "https://example.com",
		Cache:       cache.NewMemory(0),
	})
	r := SetupRouter(api, Config{
		SessionSecret: "test-secret",
		UploadDir:     uploadDir,
		UploadURLPath: "/media/",
	})
	return &testClient{t: t, r: r}, uploadDir
}

func TestSetupRouterServesUploads(t *testing.T) {
	client, uploadDir := setupTestRouter(t)

	fileContent := []byte("hello uploads")
	if err := os.MkdirAll(filepath.Join(uploadDir, "documents"), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(uploadDir, "documents", "example.txt"), fileContent, 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	w, _ := client.do(http.MethodGet, "/media/documents/example.txt", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if w.Body.String() != string(fileContent) {
		t.Fatalf("unexpected body, got %q", w.Body.String())
	}

	w, payload := client.do(http.MethodGet, "/ping", nil)
	if w.Code != http.StatusOK || payload["message"] != "pong" {
		t.Fatalf("unexpected ping response %d %v", w.Code, payload)
	}
}

func TestAdminAPIRequiresSession(t *testing.T) {
	client, _ := setupTestRouter(t)

	w, _ := client.do(http.MethodGet, "/admin/api/pages", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
	w, _ = client.do(http.MethodPost, "/admin/api/pages", map[string]any{"title": "Home", "kind": "site_page"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
}

func TestPublishFlowInvalidatesPublicViews(t *testing.T) {
	client, _ := setupTestRouter(t)

	if w, _ := client.do(http.MethodPost, "/admin/login", map[string]any{"username": "admin", "password": "s3cret"}); w.Code != http.StatusOK {
		t.Fatalf("login failed with status %d", w.Code)
	}

	w, payload := client.do(http.MethodPost, "/admin/api/pages", map[string]any{"title": "Home", "kind": "site_page"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create root failed: %d %v", w.Code, payload)
	}
	rootID := int(payload["page"].(map[string]any)["id"].(float64))

	w, payload = client.do(http.MethodPost, "/admin/api/pages", map[string]any{
		"parent_id": rootID,
		"title":     "About Us",
		"kind":      "standard_page",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create child failed: %d %v", w.Code, payload)
	}
	aboutID := strconv.Itoa(int(payload["page"].(map[string]any)["id"].(float64)))

	w, payload = client.do(http.MethodPut, "/admin/api/pages/"+aboutID+"/content", map[string]any{
		"intro": "Who we are",
		"body":  "We build **things**.",
		"related_links": []map[string]any{
			{"title": "Home", "link_page_id": rootID},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("save content failed: %d %v", w.Code, payload)
	}

	if w, _ = client.do(http.MethodGet, "/api/pages/about-us/", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected draft page to be hidden, got %d", w.Code)
	}

	if w, _ = client.do(http.MethodPost, "/admin/api/pages/"+aboutID+"/publish", nil); w.Code != http.StatusOK {
		t.Fatalf("publish failed: %d", w.Code)
	}

	w, payload = client.do(http.MethodGet, "/api/pages/about-us/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected live page, got %d", w.Code)
	}
	if payload["title"] != "About Us" {
		t.Fatalf("unexpected title %v", payload["title"])
	}
	links := payload["related_links"].([]any)
	if len(links) != 1 || links[0].(map[string]any)["link"] != "/" {
		t.Fatalf("unexpected related links %v", links)
	}

	// 写操作之后缓存被清空，公开视图立即反映新标题
	if w, _ = client.do(http.MethodPut, "/admin/api/pages/"+aboutID, map[string]any{"title": "About", "slug": "about-us"}); w.Code != http.StatusOK {
		t.Fatalf("rename failed: %d", w.Code)
	}
	w, payload = client.do(http.MethodGet, "/api/page/"+aboutID, nil)
	if w.Code != http.StatusOK || payload["title"] != "About" {
		t.Fatalf("expected fresh view, got %d %v", w.Code, payload["title"])
	}
}
