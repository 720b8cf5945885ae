package db

import (
	"testing"

	"github.com/sitepages/internal/stream"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeTargets struct {
	pages map[uint]string
	docs  map[uint]string
}

func (f fakeTargets) PageURL(id uint) (string, bool) {
	url, ok := f.pages[id]
	return url, ok
}

func (f fakeTargets) DocumentURL(id uint) (string, bool) {
	url, ok := f.docs[id]
	return url, ok
}

func uintPtr(v uint) *uint { return &v }

func TestLinkFieldsResolvePriority(t *testing.T) {
	targets := fakeTargets{
		pages: map[uint]string{1: "/about/", 2: ""},
		docs:  map[uint]string{5: "/media/documents/report.pdf"},
	}

	tests := []struct {
		name string
		link LinkFields
		want string
	}{
		{name: "empty", link: LinkFields{}, want: ""},
		{name: "external only", link: LinkFields{LinkExternal: "https://example.com"}, want: "https://example.com"},
		{name: "document over external", link: LinkFields{LinkExternal: "https://example.com", LinkDocumentID: uintPtr(5)}, want: "/media/documents/report.pdf"},
		{name: "page over everything", link: LinkFields{LinkExternal: "https://example.com", LinkDocumentID: uintPtr(5), LinkPageID: uintPtr(1)}, want: "/about/"},
		{name: "page without url", link: LinkFields{LinkExternal: "https://example.com", LinkPageID: uintPtr(2)}, want: ""},
		{name: "dangling page falls through", link: LinkFields{LinkDocumentID: uintPtr(5), LinkPageID: uintPtr(99)}, want: "/media/documents/report.pdf"},
		{name: "dangling document falls through", link: LinkFields{LinkExternal: "https://example.com", LinkDocumentID: uintPtr(99)}, want: "https://example.com"},
		{name: "all dangling", link: LinkFields{LinkDocumentID: uintPtr(98), LinkPageID: uintPtr(99)}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.link.Resolve(targets); got != tt.want {
				t.Fatalf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLinkFieldsResolveWithoutTargets(t *testing.T) {
	link := LinkFields{LinkExternal: " https://example.com ", LinkPageID: uintPtr(1)}
	if got := link.Resolve(nil); got != "https://example.com" {
		t.Fatalf("expected external fallback, got %q", got)
	}
}

func TestSectionAnchorID(t *testing.T) {
	if got := (Section{Title: "Our Team", CustomID: "team"}).AnchorID(); got != "team" {
		t.Fatalf("expected custom id, got %q", got)
	}
	if got := (Section{Title: "Our Team"}).AnchorID(); got != "our-team" {
		t.Fatalf("expected slug of title, got %q", got)
	}
}

func TestPageAncestorPaths(t *testing.T) {
	page := Page{Path: "000100020003"}
	got := page.AncestorPaths()
	want := []string{"0001", "00010002"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	parent := Page{Path: "00010002"}
	if !parent.IsAncestorOf(page) {
		t.Fatal("expected parent to be an ancestor")
	}
	if page.IsAncestorOf(parent) || page.IsAncestorOf(page) {
		t.Fatal("ancestor relation must be strict")
	}
}

func TestPageKindListedKind(t *testing.T) {
	if kind, ok := KindTextIndexPage.ListedKind(); !ok || kind != KindTextPage {
		t.Fatalf("text index should list text pages, got %q", kind)
	}
	if kind, ok := KindStandardIndexPage.ListedKind(); !ok || kind != KindStandardPage {
		t.Fatalf("standard index should list standard pages, got %q", kind)
	}
	if _, ok := KindSitePage.ListedKind(); ok {
		t.Fatal("site pages do not list children")
	}
	if PageKind("blog").Valid() {
		t.Fatal("unknown kind must be invalid")
	}
}

func TestStreamColumnRoundTrip(t *testing.T) {
	gdb, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, _ := gdb.DB()
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()

	if err := Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	body := stream.Stream{
		stream.MustBlock(stream.Title("Hello")),
		stream.MustBlock(stream.RawHTML{HTML: "<em>x</em>", Alignment: stream.HTMLAlignNormal}),
		stream.MustBlock(stream.CallToAction(3)),
	}
	want, _ := body.MarshalJSON()

	if err := gdb.Create(&SitePage{PageID: 7, Body: body}).Error; err != nil {
		t.Fatalf("create failed: %v", err)
	}

	var loaded SitePage
	if err := gdb.First(&loaded, "page_id = ?", 7).Error; err != nil {
		t.Fatalf("load failed: %v", err)
	}
	got, _ := loaded.Body.MarshalJSON()
	if string(got) != string(want) {
		t.Fatalf("stream changed across storage:\nwant %s\n got %s", want, got)
	}
	if len(loaded.Hero) != 0 {
		t.Fatalf("expected empty hero, got %d blocks", len(loaded.Hero))
	}
}

func TestEnsureUserCreatesOnce(t *testing.T) {
	gdb, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, _ := gdb.DB()
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()

	if err := gdb.AutoMigrate(&User{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	if err := EnsureUser(gdb, "admin", "secret"); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	if err := EnsureUser(gdb, "admin", "other"); err != nil {
		t.Fatalf("EnsureUser second call failed: %v", err)
	}

	var count int64
	gdb.Model(&User{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected one user, got %d", count)
	}

	if err := SetUserPassword(gdb, "admin", "changed"); err != nil {
		t.Fatalf("SetUserPassword failed: %v", err)
	}
	if err := SetUserPassword(gdb, "", "x"); err != ErrUserCredentialsMissing {
		t.Fatalf("expected ErrUserCredentialsMissing, got %v", err)
	}
}
