package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sitepages/internal/cache"
	"github.com/sitepages/internal/db"
	"github.com/sitepages/internal/service"
	"github.com/sitepages/internal/testdb"
)

func setupTestAPI(t *testing.T) (*API, *cache.Memory) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := cache.NewMemory(0)
	api := NewAPI(testdb.Open(t), Options{
		UploadDir:     t.TempDir(),
		UploadURL:     "/media",
		SiteBaseURL:   "https://example.com",
		Cache:         store,
		SnippetPolicy: service.SnippetRestrict,
	})
	return api, store
}

func mustCreatePage(t *testing.T, api *API, parent *db.Page, title string, kind db.PageKind) *db.Page {
	t.Helper()
	var parentID *uint
	if parent != nil {
		parentID = &parent.ID
	}
	page, err := api.pages.Create(parentID, service.PageInput{Title: title, Kind: kind})
	if err != nil {
		t.Fatalf("failed to create page %q: %v", title, err)
	}
	return page
}

// serve 直接调用处理函数，params 对应路由参数。
func serve(t *testing.T, h gin.HandlerFunc, method, target string, body any, params gin.Params) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = params

	h(c)
	return w
}

func idParam(key string, id uint) gin.Param {
	return gin.Param{Key: key, Value: itoa(id)}
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return payload
}

func TestInvalidateViewsOnlyAfterSuccessfulWrites(t *testing.T) {
	api, store := setupTestAPI(t)

	r := gin.New()
	r.Use(api.InvalidateViews())
	r.GET("/read", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/fail", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	fill := func() {
		if err := store.Set(context.Background(), "view:1", []byte("{}"), 0); err != nil {
			t.Fatalf("failed to fill cache: %v", err)
		}
	}

	cases := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/read", 1},
		{http.MethodPost, "/fail", 1},
		{http.MethodPost, "/ok", 0},
	}
	for _, tc := range cases {
		fill()
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		if got := store.Len(); got != tc.want {
			t.Fatalf("%s %s: expected %d cached views, got %d", tc.method, tc.path, tc.want, got)
		}
	}
}
