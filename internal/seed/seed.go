// Package seed fills an empty database with a small demo site.
package seed

import (
	"errors"
	"fmt"
	"time"

	"github.com/sitepages/internal/db"
	"github.com/sitepages/internal/logger"
	"github.com/sitepages/internal/service"
	"github.com/sitepages/internal/stream"
	"gorm.io/gorm"
)

// ErrAlreadySeeded is returned when the page tree already has a root.
var ErrAlreadySeeded = errors.New("page tree is not empty")

// NewsPostCount 演示数据中新闻文章的数量，超过一页以便查看分页效果。
const NewsPostCount = 12

// Result summarises what Run created.
type Result struct {
	RootID    uint
	Pages     int
	SnippetID uint
}

type seeder struct {
	pages    *service.PageService
	content  *service.ContentService
	snippets *service.SnippetService
	result   Result
}

// Run creates the demo site. Every page is published.
func Run(gdb *gorm.DB, log logger.Logger) (*Result, error) {
	if log == nil {
		log = logger.NewNop()
	}

	pages := service.NewPageService(gdb)
	if _, err := pages.Root(); err == nil {
		return nil, ErrAlreadySeeded
	} else if !errors.Is(err, service.ErrPageNotFound) {
		return nil, err
	}

	s := &seeder{
		pages:    pages,
		content:  service.NewContentService(gdb),
		snippets: service.NewSnippetService(gdb, service.SnippetRestrict, log),
	}

	snippet, err := s.snippets.Create(service.SnippetInput{
		Title:    "Newsletter",
		Text:     "Get new posts in your inbox once a month.",
		URL:      "/newsletter/",
		LinkText: "Subscribe",
	})
	if err != nil {
		return nil, fmt.Errorf("seed snippet: %w", err)
	}
	s.result.SnippetID = snippet.ID

	root, err := s.page(nil, "Home", db.KindSitePage)
	if err != nil {
		return nil, err
	}
	s.result.RootID = root.ID

	news, err := s.page(root, "News", db.KindTextIndexPage)
	if err != nil {
		return nil, err
	}
	if _, err := s.content.Save(news.ID, service.TextIndexPageInput{Intro: "Updates from the team."}); err != nil {
		return nil, fmt.Errorf("seed news index: %w", err)
	}

	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= NewsPostCount; i++ {
		post, err := s.page(news, fmt.Sprintf("Update %02d", i), db.KindTextPage)
		if err != nil {
			return nil, err
		}
		body := stream.Stream{
			stream.MustBlock(stream.Intro(fmt.Sprintf("Notes from week %d.", i))),
			stream.MustBlock(stream.Paragraph("Work continued on the **page builder** and the media library.")),
		}
		if i%4 == 0 {
			body = append(body, stream.MustBlock(stream.CallToAction(snippet.ID)))
		}
		if _, err := s.content.Save(post.ID, service.TextPageInput{
			Date: start.AddDate(0, 0, 7*(i-1)).Format(service.DateLayout),
			Body: body,
		}); err != nil {
			return nil, fmt.Errorf("seed post %d: %w", i, err)
		}
	}

	guides, err := s.page(root, "Guides", db.KindStandardIndexPage)
	if err != nil {
		return nil, err
	}
	if _, err := s.content.Save(guides.ID, service.StandardIndexPageInput{Intro: "How to use the site."}); err != nil {
		return nil, fmt.Errorf("seed guides index: %w", err)
	}
	for _, title := range []string{"Getting started", "Writing pages"} {
		guide, err := s.page(guides, title, db.KindStandardPage)
		if err != nil {
			return nil, err
		}
		if _, err := s.content.Save(guide.ID, service.StandardPageInput{
			Intro: title + " in a few steps.",
			Body:  "1. Create a page\n2. Add blocks\n3. Publish",
			RelatedLinks: []service.RelatedLinkInput{
				{Title: "All guides", LinkFields: db.LinkFields{LinkPageID: &guides.ID}},
			},
		}); err != nil {
			return nil, fmt.Errorf("seed guide %q: %w", title, err)
		}
	}

	if _, err := s.content.Save(root.ID, service.SitePageInput{
		Hero: stream.Stream{
			stream.MustBlock(stream.Title("Welcome")),
			stream.MustBlock(stream.Subtitle("A small site built from blocks")),
		},
		Intro: "This site is generated from **demo data**.",
		Body: stream.Stream{
			stream.MustBlock(stream.Paragraph("Pages are composed from ordered blocks.")),
			stream.MustBlock(stream.PullQuote{Quote: "Structure first, layout second.", Attribution: "The editors"}),
			stream.MustBlock(stream.CallToAction(snippet.ID)),
		},
		Sections: []service.SectionInput{
			{Title: "What we do", Columns: 2, Blocks: stream.Stream{
				stream.MustBlock(stream.Paragraph("We write guides and publish weekly notes.")),
			}},
			{Title: "Get in touch", CustomID: "contact", Blocks: stream.Stream{
				stream.MustBlock(stream.Link("https://example.com/contact")),
			}},
		},
		RelatedLinks: []service.RelatedLinkInput{
			{Title: "Latest news", LinkFields: db.LinkFields{LinkPageID: &news.ID}},
			{Title: "Guides", LinkFields: db.LinkFields{LinkPageID: &guides.ID}},
		},
	}); err != nil {
		return nil, fmt.Errorf("seed home page: %w", err)
	}

	log.Info("demo site seeded",
		logger.Uint("root_id", s.result.RootID),
		logger.Int("pages", s.result.Pages),
	)
	return &s.result, nil
}

func (s *seeder) page(parent *db.Page, title string, kind db.PageKind) (*db.Page, error) {
	var parentID *uint
	if parent != nil {
		parentID = &parent.ID
	}
	page, err := s.pages.Create(parentID, service.PageInput{Title: title, Kind: kind})
	if err != nil {
		return nil, fmt.Errorf("seed page %q: %w", title, err)
	}
	if page, err = s.pages.Publish(page.ID); err != nil {
		return nil, fmt.Errorf("publish page %q: %w", title, err)
	}
	s.result.Pages++
	return page, nil
}
