package seed

import (
	"testing"

	"github.com/sitepages/internal/db"
	"github.com/sitepages/internal/logger"
	"github.com/sitepages/internal/service"
	"github.com/sitepages/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunBuildsDemoSite(t *testing.T) {
	gdb := testdb.Open(t)

	result, err := Run(gdb, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1+1+NewsPostCount+1+2, result.Pages)

	pages := service.NewPageService(gdb)
	news, err := pages.GetByURL("/news/")
	require.NoError(t, err)

	window, err := service.NewIndexService(gdb).List(*news, "2")
	require.NoError(t, err)
	assert.Equal(t, 2, window.NumPages)
	require.Len(t, window.Items, NewsPostCount-10)
	assert.Equal(t, "Update 02", window.Items[0].Title)

	usage, err := service.NewSnippetService(gdb, service.SnippetRestrict, nil).Usage(result.SnippetID)
	require.NoError(t, err)
	assert.Len(t, usage, 1+NewsPostCount/4)

	record, err := service.NewContentService(gdb).Load(result.RootID)
	require.NoError(t, err)
	require.Len(t, record.Sections, 2)
	assert.Equal(t, "contact", record.Sections[1].AnchorID())
	assert.IsType(t, &db.SitePage{}, record.Content)

	_, err = Run(gdb, nil)
	assert.ErrorIs(t, err, ErrAlreadySeeded)
}
