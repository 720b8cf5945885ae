package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/sitepages/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pageTitles(pages []db.Page) []string {
	titles := make([]string, len(pages))
	for i, p := range pages {
		titles[i] = p.Title
	}
	return titles
}

func TestTextIndexListing(t *testing.T) {
	pages, gdb := newTestPageService(t)
	index := NewIndexService(gdb)

	root := mustCreatePage(t, pages, nil, "Home", db.KindSitePage)
	news := mustCreatePage(t, pages, root, "News", db.KindTextIndexPage)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 25; i++ {
		post := mustCreatePage(t, pages, news, fmt.Sprintf("Post %02d", i), db.KindTextPage)
		require.NoError(t, gdb.Model(&db.TextPage{}).Where("page_id = ?", post.ID).
			Update("date", base.AddDate(0, 0, i)).Error)
		_, err := pages.Publish(post.ID)
		require.NoError(t, err)
	}

	// 草稿、其他类型页面不应出现在列表中
	mustCreatePage(t, pages, news, "Draft", db.KindTextPage)
	other, err := pages.Publish(mustCreatePage(t, pages, news, "Other", db.KindStandardPage).ID)
	require.NoError(t, err)
	require.NotNil(t, other)

	all, err := index.ChildPages(*news)
	require.NoError(t, err)
	require.Len(t, all, 25)
	assert.Equal(t, "Post 25", all[0].Title)
	assert.Equal(t, "Post 01", all[24].Title)

	first, err := index.List(*news, "1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, 3, first.NumPages)
	assert.Equal(t, int64(25), first.Total)
	require.Len(t, first.Items, 10)
	assert.Equal(t, "Post 25", first.Items[0].Title)
	assert.Equal(t, "Post 16", first.Items[9].Title)
	assert.False(t, first.HasPrevious)
	assert.True(t, first.HasNext)

	third, err := index.List(*news, "3")
	require.NoError(t, err)
	require.Len(t, third.Items, 5)
	assert.Equal(t, "Post 05", third.Items[0].Title)
	assert.Equal(t, "Post 01", third.Items[4].Title)
	assert.False(t, third.HasNext)

	beyond, err := index.List(*news, "4")
	require.NoError(t, err)
	assert.Equal(t, pageTitles(third.Items), pageTitles(beyond.Items))
	assert.Equal(t, 3, beyond.Number)

	junk, err := index.List(*news, "x")
	require.NoError(t, err)
	assert.Equal(t, pageTitles(first.Items), pageTitles(junk.Items))
	assert.Equal(t, 1, junk.Number)
}

func TestTextIndexListsDeepDescendants(t *testing.T) {
	pages, gdb := newTestPageService(t)
	index := NewIndexService(gdb)

	root := mustCreatePage(t, pages, nil, "Home", db.KindSitePage)
	news := mustCreatePage(t, pages, root, "News", db.KindTextIndexPage)
	archive := mustCreatePage(t, pages, news, "Archive", db.KindSitePage)
	deep := mustCreatePage(t, pages, archive, "Deep", db.KindTextPage)
	sibling := mustCreatePage(t, pages, root, "Elsewhere", db.KindTextPage)

	for _, p := range []*db.Page{deep, sibling} {
		_, err := pages.Publish(p.ID)
		require.NoError(t, err)
	}

	window, err := index.List(*news, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Deep"}, pageTitles(window.Items))
}

func TestStandardIndexOrdersByFirstPublication(t *testing.T) {
	pages, gdb := newTestPageService(t)
	index := NewIndexService(gdb)

	root := mustCreatePage(t, pages, nil, "Home", db.KindSitePage)
	services := mustCreatePage(t, pages, root, "Services", db.KindStandardIndexPage)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, title := range []string{"Design", "Build", "Support"} {
		page := mustCreatePage(t, pages, services, title, db.KindStandardPage)
		at := base.Add(time.Duration(i) * time.Hour)
		pages.now = func() time.Time { return at }
		_, err := pages.Publish(page.ID)
		require.NoError(t, err)
	}

	window, err := index.List(*services, "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Support", "Build", "Design"}, pageTitles(window.Items))
}

func TestEmptyIndexHasOnePage(t *testing.T) {
	pages, gdb := newTestPageService(t)
	index := NewIndexService(gdb)

	root := mustCreatePage(t, pages, nil, "Home", db.KindSitePage)
	news := mustCreatePage(t, pages, root, "News", db.KindTextIndexPage)

	window, err := index.List(*news, "7")
	require.NoError(t, err)
	assert.Equal(t, 1, window.Number)
	assert.Equal(t, 1, window.NumPages)
	assert.Empty(t, window.Items)

	_, err = index.List(*root, "1")
	assert.ErrorIs(t, err, ErrNotIndexPage)
}
