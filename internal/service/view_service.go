package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sitepages/internal/cache"
	"github.com/sitepages/internal/db"
	"github.com/sitepages/internal/logger"
	"github.com/sitepages/internal/richtext"
	"github.com/sitepages/internal/stream"
	"gorm.io/gorm"
)

// PageView is the render ready representation of a page.
type PageView struct {
	ID               uint               `json:"id"`
	Title            string             `json:"title"`
	Slug             string             `json:"slug"`
	Kind             db.PageKind        `json:"kind"`
	KindLabel        string             `json:"kind_label"`
	Live             bool               `json:"live"`
	URL              string             `json:"url"`
	FullURL          string             `json:"full_url"`
	SiteName         string             `json:"site_name"`
	FirstPublishedAt *time.Time         `json:"first_published_at"`
	LastPublishedAt  *time.Time         `json:"last_published_at"`
	Breadcrumbs      []PageSummary      `json:"breadcrumbs"`
	Content          map[string]any     `json:"content"`
	Sections         []SectionView      `json:"sections,omitempty"`
	CarouselItems    []CarouselItemView `json:"carousel_items,omitempty"`
	RelatedLinks     []RelatedLinkView  `json:"related_links"`
	ChildIndex       *PageSummary       `json:"child_index,omitempty"`
	ChildPages       *ChildPagesView    `json:"child_pages,omitempty"`
}

// PageSummary is a short reference to another page.
type PageSummary struct {
	ID    uint        `json:"id"`
	Title string      `json:"title"`
	Kind  db.PageKind `json:"kind"`
	URL   string      `json:"url"`
	Date  string      `json:"date,omitempty"`
	// Excerpt 仅在索引页的子页面列表中填充
	Excerpt string `json:"excerpt,omitempty"`
}

// BlockView is a stream entry with its value expanded for rendering.
type BlockView struct {
	ID    string      `json:"id"`
	Type  stream.Kind `json:"type"`
	Value any         `json:"value"`
}

type ImageView struct {
	ID     uint   `json:"id"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type DocumentView struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

type SnippetView struct {
	ID       uint   `json:"id"`
	Title    string `json:"title"`
	Text     string `json:"text"`
	URL      string `json:"url"`
	LinkText string `json:"link_text"`
}

type SectionView struct {
	ID       uint        `json:"id"`
	Title    string      `json:"title"`
	AnchorID string      `json:"anchor_id"`
	Columns  int         `json:"columns"`
	Blocks   []BlockView `json:"blocks"`
}

type CarouselItemView struct {
	Image    *ImageView `json:"image"`
	EmbedURL string     `json:"embed_url,omitempty"`
	Caption  string     `json:"caption"`
	Link     string     `json:"link"`
}

type RelatedLinkView struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// ChildPagesView is the paginated listing of an index page.
type ChildPagesView struct {
	Items       []PageSummary `json:"items"`
	Number      int           `json:"number"`
	NumPages    int           `json:"num_pages"`
	PerPage     int           `json:"per_page"`
	Total       int64         `json:"total"`
	HasPrevious bool          `json:"has_previous"`
	HasNext     bool          `json:"has_next"`
}

// ViewService 组装页面的公开视图，并按页面与分页参数缓存序列化结果。
type ViewService struct {
	db      *gorm.DB
	media   *MediaService
	cache   cache.Cache
	ttl     time.Duration
	baseURL string
	logger  logger.Logger
}

// ViewOptions configures a ViewService.
type ViewOptions struct {
	Cache       cache.Cache
	TTL         time.Duration
	SiteBaseURL string
	Logger      logger.Logger
}

// NewViewService creates a ViewService. A nil cache disables caching.
func NewViewService(gdb *gorm.DB, media *MediaService, opts ViewOptions) *ViewService {
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &ViewService{
		db:      gdb,
		media:   media,
		cache:   opts.Cache,
		ttl:     opts.TTL,
		baseURL: strings.TrimRight(opts.SiteBaseURL, "/"),
		logger:  log,
	}
}

// Render returns the JSON encoded view of page for the listing page raw,
// served from the cache when possible.
func (s *ViewService) Render(ctx context.Context, page db.Page, raw string) ([]byte, error) {
	number, err := s.windowNumber(page, raw)
	if err != nil {
		return nil, err
	}
	key := viewCacheKey(page, number)
	if s.cache != nil {
		data, err := s.cache.Get(ctx, key)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("page view cache read failed", logger.String("key", key), logger.Error(err))
		}
	}

	view, err := s.Build(page, strconv.Itoa(number))
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(view)
	if err != nil {
		return nil, fmt.Errorf("encode page view: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
			s.logger.Warn("page view cache write failed", logger.String("key", key), logger.Error(err))
		}
	}
	return data, nil
}

// Invalidate drops every cached view.
func (s *ViewService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Clear(ctx)
}

// windowNumber 将用户输入的页码解析为实际的分页序号，非索引页恒为 1。
func (s *ViewService) windowNumber(page db.Page, raw string) (int, error) {
	query, err := childPagesQuery(s.db, page)
	if errors.Is(err, ErrNotIndexPage) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, fmt.Errorf("count child pages: %w", err)
	}
	return Paginate(total, IndexPageSize, raw).Number, nil
}

func viewCacheKey(page db.Page, number int) string {
	return fmt.Sprintf("view:%d:%s?page=%d", page.ID, page.URLPath, number)
}

// Build assembles the view of page. raw selects the child page window of
// index pages.
func (s *ViewService) Build(page db.Page, raw string) (*PageView, error) {
	record, err := loadRecord(s.db, page)
	if err != nil {
		return nil, err
	}
	settings, err := loadSiteSettings(s.db)
	if err != nil {
		return nil, err
	}

	b := &viewBuilder{
		db:        s.db,
		media:     s.media,
		links:     NewLinkResolver(s.db, s.media),
		images:    make(map[uint]*ImageView),
		documents: make(map[uint]*DocumentView),
		snippets:  make(map[uint]*SnippetView),
	}

	url, _ := b.links.PageURL(page.ID)
	view := &PageView{
		ID:               page.ID,
		Title:            page.Title,
		Slug:             page.Slug,
		Kind:             page.Kind,
		KindLabel:        page.Kind.Label(),
		Live:             page.IsLive(),
		URL:              url,
		SiteName:         settings.SiteName,
		FirstPublishedAt: page.FirstPublishedAt,
		LastPublishedAt:  page.LastPublishedAt,
		Breadcrumbs:      []PageSummary{},
		Content:          b.content(record.Content),
		RelatedLinks:     []RelatedLinkView{},
	}
	if url != "" && s.baseURL != "" {
		view.FullURL = s.baseURL + url
	}

	if err := b.breadcrumbs(view, page); err != nil {
		return nil, err
	}
	for _, section := range record.Sections {
		view.Sections = append(view.Sections, SectionView{
			ID:       section.ID,
			Title:    section.Title,
			AnchorID: section.AnchorID(),
			Columns:  section.Columns,
			Blocks:   b.blocks(section.Blocks),
		})
	}
	for _, item := range record.CarouselItems {
		view.CarouselItems = append(view.CarouselItems, CarouselItemView{
			Image:    b.image(item.ImageID),
			EmbedURL: item.EmbedURL,
			Caption:  item.Caption,
			Link:     b.links.Resolve(item.LinkFields),
		})
	}
	for _, link := range record.RelatedLinks {
		view.RelatedLinks = append(view.RelatedLinks, RelatedLinkView{
			Title: link.Title,
			Link:  b.links.Resolve(link.LinkFields),
		})
	}

	if page.Kind == db.KindTextPage {
		index, err := nearestAncestorOfKind(s.db, page, db.KindTextIndexPage)
		if err != nil {
			return nil, err
		}
		if index != nil {
			summary := b.summary(*index, "")
			view.ChildIndex = &summary
		}
	}

	if _, ok := page.Kind.ListedKind(); ok {
		window, err := listChildPages(s.db, page, raw)
		if err != nil {
			return nil, err
		}
		children, err := b.childPages(window)
		if err != nil {
			return nil, err
		}
		view.ChildPages = children
	}

	return view, nil
}

// viewBuilder memoises lookups made while building one view.
type viewBuilder struct {
	db        *gorm.DB
	media     *MediaService
	links     *LinkResolver
	images    map[uint]*ImageView
	documents map[uint]*DocumentView
	snippets  map[uint]*SnippetView
}

func (b *viewBuilder) content(content db.Content) map[string]any {
	switch c := content.(type) {
	case *db.SitePage:
		return map[string]any{
			"hero":  b.blocks(c.Hero),
			"intro": richtext.MustRender(c.Intro),
			"body":  b.blocks(c.Body),
		}
	case *db.StandardPage:
		return map[string]any{
			"intro":      richtext.MustRender(c.Intro),
			"body":       richtext.MustRender(c.Body),
			"feed_image": b.image(c.FeedImageID),
		}
	case *db.StandardIndexPage:
		return map[string]any{
			"intro":      richtext.MustRender(c.Intro),
			"feed_image": b.image(c.FeedImageID),
		}
	case *db.TextIndexPage:
		return map[string]any{
			"intro": richtext.MustRender(c.Intro),
		}
	case *db.TextPage:
		date := ""
		if !c.Date.IsZero() {
			date = c.Date.Format(DateLayout)
		}
		return map[string]any{
			"body":       b.blocks(c.Body),
			"date":       date,
			"feed_image": b.image(c.FeedImageID),
		}
	default:
		return map[string]any{}
	}
}

func (b *viewBuilder) blocks(s stream.Stream) []BlockView {
	out := make([]BlockView, 0, len(s))
	for _, block := range s {
		out = append(out, BlockView{ID: block.ID, Type: block.Type, Value: b.blockValue(block)})
	}
	return out
}

// blockValue expands one block. Undecodable blocks render as null.
func (b *viewBuilder) blockValue(block stream.Block) any {
	v, err := block.Decode()
	if err != nil {
		return nil
	}
	switch val := v.(type) {
	case stream.Title:
		return string(val)
	case stream.Subtitle:
		return string(val)
	case stream.Link:
		return string(val)
	case stream.Intro:
		return richtext.MustRender(string(val))
	case stream.Paragraph:
		return richtext.MustRender(string(val))
	case stream.AlignedImage:
		return map[string]any{
			"image":     b.image(&val.Image),
			"caption":   richtext.MustRender(val.Caption),
			"alignment": val.Alignment,
		}
	case stream.Image:
		return map[string]any{
			"image":   b.image(&val.Image),
			"caption": val.Caption,
		}
	case stream.RawHTML:
		return map[string]any{
			"html":      val.HTML,
			"alignment": val.Alignment,
		}
	case stream.PullQuote:
		return map[string]any{
			"quote":       val.Quote,
			"attribution": val.Attribution,
		}
	case stream.CallToAction:
		return b.snippet(uint(val))
	case stream.Document:
		return b.document(uint(val))
	default:
		return nil
	}
}

func (b *viewBuilder) image(id *uint) *ImageView {
	if id == nil || *id == 0 {
		return nil
	}
	if view, ok := b.images[*id]; ok {
		return view
	}
	var view *ImageView
	if b.media != nil {
		if img, err := b.media.findImage(b.db, *id); err == nil {
			view = &ImageView{ID: img.ID, Title: img.Title, URL: b.media.ImageURL(*img), Width: img.Width, Height: img.Height}
		}
	}
	b.images[*id] = view
	return view
}

func (b *viewBuilder) document(id uint) *DocumentView {
	if id == 0 {
		return nil
	}
	if view, ok := b.documents[id]; ok {
		return view
	}
	var view *DocumentView
	if url, ok := b.links.DocumentURL(id); ok {
		var doc db.Document
		if err := b.db.Select("id", "title").First(&doc, id).Error; err == nil {
			view = &DocumentView{ID: doc.ID, Title: doc.Title, URL: url}
		}
	}
	b.documents[id] = view
	return view
}

func (b *viewBuilder) snippet(id uint) *SnippetView {
	if id == 0 {
		return nil
	}
	if view, ok := b.snippets[id]; ok {
		return view
	}
	var view *SnippetView
	if snippet, err := findSnippet(b.db, id); err == nil {
		view = &SnippetView{
			ID:       snippet.ID,
			Title:    snippet.Title,
			Text:     snippet.Text,
			URL:      snippet.URL,
			LinkText: snippet.LinkText,
		}
	}
	b.snippets[id] = view
	return view
}

func (b *viewBuilder) summary(page db.Page, date string) PageSummary {
	url, _ := b.links.PageURL(page.ID)
	return PageSummary{ID: page.ID, Title: page.Title, Kind: page.Kind, URL: url, Date: date}
}

func (b *viewBuilder) breadcrumbs(view *PageView, page db.Page) error {
	paths := page.AncestorPaths()
	if len(paths) == 0 {
		return nil
	}
	var ancestors []db.Page
	if err := b.db.Where("path IN ?", paths).Order("depth asc").Find(&ancestors).Error; err != nil {
		return fmt.Errorf("load breadcrumbs: %w", err)
	}
	for _, ancestor := range ancestors {
		summary := b.summary(ancestor, "")
		if summary.URL == "" {
			continue
		}
		view.Breadcrumbs = append(view.Breadcrumbs, summary)
	}
	return nil
}

// ChildExcerptLength is the rune limit of child page excerpts.
const ChildExcerptLength = 200

func (b *viewBuilder) childPages(window *ChildPageWindow) (*ChildPagesView, error) {
	dates := make(map[uint]time.Time)
	excerpts := make(map[uint]string)
	var textIDs, standardIDs []uint
	for _, p := range window.Items {
		switch p.Kind {
		case db.KindTextPage:
			textIDs = append(textIDs, p.ID)
		case db.KindStandardPage:
			standardIDs = append(standardIDs, p.ID)
		}
	}
	if len(textIDs) > 0 {
		var rows []db.TextPage
		if err := b.db.Select("page_id", "date", "body").Where("page_id IN ?", textIDs).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("load child page dates: %w", err)
		}
		for _, row := range rows {
			dates[row.PageID] = row.Date
			excerpts[row.PageID] = streamExcerpt(row.Body)
		}
	}
	if len(standardIDs) > 0 {
		var rows []db.StandardPage
		if err := b.db.Select("page_id", "intro").Where("page_id IN ?", standardIDs).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("load child page intros: %w", err)
		}
		for _, row := range rows {
			excerpts[row.PageID] = richtext.Excerpt(row.Intro, ChildExcerptLength)
		}
	}

	view := &ChildPagesView{
		Items:       make([]PageSummary, 0, len(window.Items)),
		Number:      window.Number,
		NumPages:    window.NumPages,
		PerPage:     window.PerPage,
		Total:       window.Total,
		HasPrevious: window.HasPrevious,
		HasNext:     window.HasNext,
	}
	for _, p := range window.Items {
		date := ""
		if d, ok := dates[p.ID]; ok && !d.IsZero() {
			date = d.Format(DateLayout)
		}
		summary := b.summary(p, date)
		summary.Excerpt = excerpts[p.ID]
		view.Items = append(view.Items, summary)
	}
	return view, nil
}

// streamExcerpt 取正文中第一个 intro 或 paragraph 块作为摘要。
func streamExcerpt(s stream.Stream) string {
	for _, block := range s {
		if block.Type != stream.KindIntro && block.Type != stream.KindParagraph {
			continue
		}
		value, err := block.Decode()
		if err != nil {
			continue
		}
		switch v := value.(type) {
		case stream.Intro:
			return richtext.Excerpt(string(v), ChildExcerptLength)
		case stream.Paragraph:
			return richtext.Excerpt(string(v), ChildExcerptLength)
		}
	}
	return ""
}
