package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sitepages/internal/cache"
	"github.com/sitepages/internal/db"
	"github.com/sitepages/internal/logger"
	"github.com/sitepages/internal/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViewService(t *testing.T, f *contentFixture, c cache.Cache) *ViewService {
	t.Helper()
	media := NewMediaService(f.gdb, t.TempDir(), "/media", logger.NewNop())
	return NewViewService(f.gdb, media, ViewOptions{
		Cache:       c,
		SiteBaseURL: "https://example.com/",
		Logger:      logger.NewNop(),
	})
}

func TestBuildSitePageView(t *testing.T) {
	f := newContentFixture(t)
	views := newTestViewService(t, f, nil)

	_, err := f.content.Save(f.site.ID, SitePageInput{
		Hero:  stream.Stream{stream.MustBlock(stream.Image{Image: f.image.ID, Caption: "Cover"})},
		Intro: "Welcome to *our* site",
		Body: stream.Stream{
			stream.MustBlock(stream.Paragraph("Hello **there**")),
			stream.MustBlock(stream.RawHTML{HTML: "<div class=\"x\">raw</div>", Alignment: "full"}),
			stream.MustBlock(stream.CallToAction(f.snippet.ID)),
			stream.MustBlock(stream.Document(f.document.ID)),
			stream.MustBlock(stream.AlignedImage{Image: f.image.ID, Caption: "cap", Alignment: "left"}),
		},
		Sections: []SectionInput{{Title: "Our Team", Blocks: stream.Stream{stream.MustBlock(stream.Title("People"))}}},
		RelatedLinks: []RelatedLinkInput{
			{Title: "Post", LinkFields: db.LinkFields{LinkPageID: &f.text.ID, LinkExternal: "https://ignored.example.com"}},
			{Title: "Report", LinkFields: db.LinkFields{LinkDocumentID: &f.document.ID}},
			{Title: "Elsewhere", LinkFields: db.LinkFields{LinkExternal: "https://elsewhere.example.com"}},
		},
	})
	require.NoError(t, err)

	page, err := f.pages.Get(f.site.ID)
	require.NoError(t, err)
	view, err := views.Build(*page, "")
	require.NoError(t, err)

	assert.Equal(t, "/landing/", view.URL)
	assert.Equal(t, "https://example.com/landing/", view.FullURL)
	assert.Equal(t, DefaultSiteName, view.SiteName)
	require.Len(t, view.Breadcrumbs, 1)
	assert.Equal(t, "Home", view.Breadcrumbs[0].Title)
	assert.Contains(t, view.Content["intro"], "<em>our</em>")

	body := view.Content["body"].([]BlockView)
	require.Len(t, body, 5)
	assert.Contains(t, body[0].Value, "<strong>there</strong>")
	assert.Equal(t, "<div class=\"x\">raw</div>", body[1].Value.(map[string]any)["html"])
	snippet := body[2].Value.(*SnippetView)
	assert.Equal(t, "Join", snippet.Title)
	doc := body[3].Value.(*DocumentView)
	assert.Equal(t, "Report", doc.Title)
	assert.Contains(t, doc.URL, "/media/documents/")
	aligned := body[4].Value.(map[string]any)
	assert.Equal(t, f.image.ID, aligned["image"].(*ImageView).ID)

	hero := view.Content["hero"].([]BlockView)
	require.Len(t, hero, 1)
	assert.Equal(t, 800, hero[0].Value.(map[string]any)["image"].(*ImageView).Width)

	require.Len(t, view.Sections, 1)
	assert.Equal(t, "our-team", view.Sections[0].AnchorID)

	require.Len(t, view.RelatedLinks, 3)
	assert.Equal(t, "/news/post/", view.RelatedLinks[0].Link)
	assert.Equal(t, doc.URL, view.RelatedLinks[1].Link)
	assert.Equal(t, "https://elsewhere.example.com", view.RelatedLinks[2].Link)

	assert.Nil(t, view.ChildIndex)
	assert.Nil(t, view.ChildPages)
}

func TestBuildViewHandlesMissingReferences(t *testing.T) {
	f := newContentFixture(t)
	views := newTestViewService(t, f, nil)

	_, err := f.content.Save(f.text.ID, TextPageInput{
		Date: "2024-06-01",
		Body: stream.Stream{stream.MustBlock(stream.CallToAction(f.snippet.ID))},
	})
	require.NoError(t, err)
	require.NoError(t, f.gdb.Delete(&db.CallToAction{}, f.snippet.ID).Error)

	page, err := f.pages.Get(f.text.ID)
	require.NoError(t, err)
	view, err := views.Build(*page, "")
	require.NoError(t, err)

	body := view.Content["body"].([]BlockView)
	require.Len(t, body, 1)
	assert.Nil(t, body[0].Value.(*SnippetView))
	assert.Equal(t, "2024-06-01", view.Content["date"])

	require.NotNil(t, view.ChildIndex)
	assert.Equal(t, "News", view.ChildIndex.Title)
	assert.Equal(t, "/news/", view.ChildIndex.URL)
}

func TestBuildIndexViewListsChildren(t *testing.T) {
	f := newContentFixture(t)
	views := newTestViewService(t, f, nil)

	_, err := f.content.Save(f.text.ID, TextPageInput{
		Date: "2024-06-01",
		Body: stream.Stream{
			stream.MustBlock(stream.Title("Ignored")),
			stream.MustBlock(stream.Intro("Hello **world**")),
		},
	})
	require.NoError(t, err)
	_, err = f.pages.Publish(f.text.ID)
	require.NoError(t, err)

	index, err := f.pages.Get(*f.text.ParentID)
	require.NoError(t, err)
	view, err := views.Build(*index, "abc")
	require.NoError(t, err)

	require.NotNil(t, view.ChildPages)
	assert.Equal(t, 1, view.ChildPages.Number)
	require.Len(t, view.ChildPages.Items, 1)
	assert.Equal(t, "Post", view.ChildPages.Items[0].Title)
	assert.Equal(t, "2024-06-01", view.ChildPages.Items[0].Date)
	assert.Equal(t, "/news/post/", view.ChildPages.Items[0].URL)
	assert.Equal(t, "Hello world", view.ChildPages.Items[0].Excerpt)
}

func TestBuildStandardIndexViewExcerpts(t *testing.T) {
	f := newContentFixture(t)
	views := newTestViewService(t, f, nil)

	guides := mustCreatePage(t, f.pages, f.root, "Guides", db.KindStandardIndexPage)
	guide := mustCreatePage(t, f.pages, guides, "Setup", db.KindStandardPage)
	_, err := f.content.Save(guide.ID, StandardPageInput{Intro: strings.Repeat("a", 300)})
	require.NoError(t, err)
	_, err = f.pages.Publish(guide.ID)
	require.NoError(t, err)

	view, err := views.Build(*guides, "")
	require.NoError(t, err)
	require.Len(t, view.ChildPages.Items, 1)
	excerpt := view.ChildPages.Items[0].Excerpt
	assert.True(t, strings.HasSuffix(excerpt, "…"))
	assert.Equal(t, ChildExcerptLength+1, utf8.RuneCountInString(excerpt))
}

func TestRenderUsesCacheUntilInvalidated(t *testing.T) {
	f := newContentFixture(t)
	store := cache.NewMemory(0)
	views := newTestViewService(t, f, store)
	ctx := context.Background()

	page, err := f.pages.Get(f.site.ID)
	require.NoError(t, err)

	first, err := views.Render(ctx, *page, "")
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())

	_, err = f.pages.Update(f.site.ID, PageUpdateInput{Title: "Renamed"})
	require.NoError(t, err)

	cached, err := views.Render(ctx, *page, "")
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	require.NoError(t, views.Invalidate(ctx))
	page, err = f.pages.Get(f.site.ID)
	require.NoError(t, err)
	fresh, err := views.Render(ctx, *page, "")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(fresh, &decoded))
	assert.Equal(t, "Renamed", decoded["title"])
}

func TestRenderKeysCacheByResolvedWindow(t *testing.T) {
	f := newContentFixture(t)
	store := cache.NewMemory(0)
	views := newTestViewService(t, f, store)
	ctx := context.Background()

	index, err := f.pages.Get(*f.text.ParentID)
	require.NoError(t, err)

	first, err := views.Render(ctx, *index, "1")
	require.NoError(t, err)
	for _, raw := range []string{"x", "", " 1 ", "-3", "999", "99999999999999999999", "junk0", "junk1"} {
		got, err := views.Render(ctx, *index, raw)
		require.NoError(t, err, raw)
		assert.Equal(t, first, got, raw)
	}
	assert.Equal(t, 1, store.Len())

	// 非索引页忽略页码参数
	site, err := f.pages.Get(f.site.ID)
	require.NoError(t, err)
	_, err = views.Render(ctx, *site, "7")
	require.NoError(t, err)
	_, err = views.Render(ctx, *site, "abc")
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())
}
