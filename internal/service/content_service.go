package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sitepages/internal/db"
	"github.com/sitepages/internal/stream"
	"gorm.io/gorm"
)

var (
	ErrKindMismatch        = errors.New("content kind does not match the page kind")
	ErrSectionsUnsupported = errors.New("only site pages have sections")
	ErrSectionNotFound     = errors.New("section not found")
	ErrPositionOutOfRange  = errors.New("position out of range")
)

// DateLayout is the wire format of TextPage dates.
const DateLayout = "2006-01-02"

// ContentInput is the editable content of one page kind.
type ContentInput interface {
	pageKind() db.PageKind
}

// SectionInput 描述一个分区。
type SectionInput struct {
	Title    string        `json:"title"`
	CustomID string        `json:"custom_id"`
	Columns  int           `json:"columns"`
	Blocks   stream.Stream `json:"blocks"`
}

// CarouselItemInput 描述一个轮播项。
type CarouselItemInput struct {
	ImageID  *uint  `json:"image_id"`
	EmbedURL string `json:"embed_url"`
	Caption  string `json:"caption"`
	db.LinkFields
}

// RelatedLinkInput 描述一个相关链接。
type RelatedLinkInput struct {
	Title string `json:"title"`
	db.LinkFields
}

type SitePageInput struct {
	Hero          stream.Stream       `json:"hero"`
	Intro         string              `json:"intro"`
	Body          stream.Stream       `json:"body"`
	Sections      []SectionInput      `json:"sections"`
	CarouselItems []CarouselItemInput `json:"carousel_items"`
	RelatedLinks  []RelatedLinkInput  `json:"related_links"`
}

type StandardPageInput struct {
	Intro         string              `json:"intro"`
	Body          string              `json:"body"`
	FeedImageID   *uint               `json:"feed_image_id"`
	CarouselItems []CarouselItemInput `json:"carousel_items"`
	RelatedLinks  []RelatedLinkInput  `json:"related_links"`
}

type StandardIndexPageInput struct {
	Intro        string             `json:"intro"`
	FeedImageID  *uint              `json:"feed_image_id"`
	RelatedLinks []RelatedLinkInput `json:"related_links"`
}

type TextIndexPageInput struct {
	Intro        string             `json:"intro"`
	RelatedLinks []RelatedLinkInput `json:"related_links"`
}

// TextPageInput carries Date as YYYY-MM-DD.
type TextPageInput struct {
	Body          stream.Stream       `json:"body"`
	Date          string              `json:"date"`
	FeedImageID   *uint               `json:"feed_image_id"`
	CarouselItems []CarouselItemInput `json:"carousel_items"`
	RelatedLinks  []RelatedLinkInput  `json:"related_links"`
}

func (SitePageInput) pageKind() db.PageKind          { return db.KindSitePage }
func (StandardPageInput) pageKind() db.PageKind      { return db.KindStandardPage }
func (StandardIndexPageInput) pageKind() db.PageKind { return db.KindStandardIndexPage }
func (TextIndexPageInput) pageKind() db.PageKind     { return db.KindTextIndexPage }
func (TextPageInput) pageKind() db.PageKind          { return db.KindTextPage }

// PageRecord is a page with its content row and owned collections, each
// ordered by sort_order.
type PageRecord struct {
	Page          db.Page           `json:"page"`
	Content       db.Content        `json:"content"`
	Sections      []db.Section      `json:"sections,omitempty"`
	CarouselItems []db.CarouselItem `json:"carousel_items,omitempty"`
	RelatedLinks  []db.RelatedLink  `json:"related_links"`
}

// ContentService 负责页面内容与其有序子集合的保存和读取。
type ContentService struct {
	db *gorm.DB
}

// NewContentService creates a ContentService.
func NewContentService(gdb *gorm.DB) *ContentService {
	return &ContentService{db: gdb}
}

// Load returns the page with its content and collections.
func (s *ContentService) Load(pageID uint) (*PageRecord, error) {
	page, err := findPage(s.db, pageID)
	if err != nil {
		return nil, err
	}
	return loadRecord(s.db, *page)
}

func loadRecord(gdb *gorm.DB, page db.Page) (*PageRecord, error) {
	content, err := loadContent(gdb, page)
	if err != nil {
		return nil, err
	}

	record := &PageRecord{Page: page, Content: content}
	if page.Kind.HasSections() {
		if err := gdb.Where("page_id = ?", page.ID).Order("sort_order asc, id asc").Find(&record.Sections).Error; err != nil {
			return nil, fmt.Errorf("load sections: %w", err)
		}
	}
	if page.Kind.HasCarousel() {
		if err := gdb.Where("page_id = ?", page.ID).Order("sort_order asc, id asc").Find(&record.CarouselItems).Error; err != nil {
			return nil, fmt.Errorf("load carousel items: %w", err)
		}
	}
	if err := gdb.Where("page_id = ?", page.ID).Order("sort_order asc, id asc").Find(&record.RelatedLinks).Error; err != nil {
		return nil, fmt.Errorf("load related links: %w", err)
	}
	return record, nil
}

// loadContent returns the content row of page, or an empty one when the row
// is missing.
func loadContent(gdb *gorm.DB, page db.Page) (db.Content, error) {
	content, err := db.NewContent(page.Kind, page.ID)
	if err != nil {
		return nil, err
	}
	err = gdb.Where("page_id = ?", page.ID).First(content).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load content: %w", err)
	}
	return content, nil
}

// Save replaces the content and collections of a page. Either every part is
// valid and written, or a *ValidationError listing all problems is returned
// and nothing changes.
func (s *ContentService) Save(pageID uint, input ContentInput) (*PageRecord, error) {
	if input == nil {
		return nil, ErrKindMismatch
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		page, err := findPage(tx, pageID)
		if err != nil {
			return err
		}
		if page.Kind != input.pageKind() {
			return ErrKindMismatch
		}

		w, err := buildContent(tx, *page, input)
		if err != nil {
			return err
		}
		if err := w.problems.err(); err != nil {
			return err
		}

		if err := tx.Save(w.content).Error; err != nil {
			return fmt.Errorf("save content: %w", err)
		}
		if page.Kind.HasSections() {
			if err := replaceSections(tx, page.ID, w.sections); err != nil {
				return err
			}
		}
		if page.Kind.HasCarousel() {
			if err := replaceCarouselItems(tx, page.ID, w.carousel); err != nil {
				return err
			}
		}
		if err := replaceRelatedLinks(tx, page.ID, w.related); err != nil {
			return err
		}
		return rebuildSnippetRefs(tx, *page)
	})
	if err != nil {
		return nil, err
	}

	return s.Load(pageID)
}

// contentWrite is a validated, not yet persisted save.
type contentWrite struct {
	content  db.Content
	sections []db.Section
	carousel []db.CarouselItem
	related  []db.RelatedLink
	problems *problems
	refs     *refChecks
}

func buildContent(tx *gorm.DB, page db.Page, input ContentInput) (*contentWrite, error) {
	w := &contentWrite{problems: &problems{}, refs: &refChecks{}}

	switch in := input.(type) {
	case SitePageInput:
		hero, body := in.Hero.WithIDs(), in.Body.WithIDs()
		w.stream("hero", stream.HeroBlocks, hero)
		w.stream("body", stream.BodyBlocks, body)
		w.content = &db.SitePage{PageID: page.ID, Hero: hero, Intro: in.Intro, Body: body}
		for i, section := range in.Sections {
			w.sections = append(w.sections, w.section(indexedField("sections", i), section))
		}
		w.carouselItems(in.CarouselItems)
		w.relatedLinks(in.RelatedLinks)
	case StandardPageInput:
		w.image("feed_image_id", in.FeedImageID)
		w.content = &db.StandardPage{PageID: page.ID, Intro: in.Intro, Body: in.Body, FeedImageID: in.FeedImageID}
		w.carouselItems(in.CarouselItems)
		w.relatedLinks(in.RelatedLinks)
	case StandardIndexPageInput:
		w.image("feed_image_id", in.FeedImageID)
		w.content = &db.StandardIndexPage{PageID: page.ID, Intro: in.Intro, FeedImageID: in.FeedImageID}
		w.relatedLinks(in.RelatedLinks)
	case TextIndexPageInput:
		w.content = &db.TextIndexPage{PageID: page.ID, Intro: in.Intro}
		w.relatedLinks(in.RelatedLinks)
	case TextPageInput:
		body := in.Body.WithIDs()
		w.stream("body", stream.BodyBlocks, body)
		w.image("feed_image_id", in.FeedImageID)
		date := w.date("date", in.Date)
		w.content = &db.TextPage{PageID: page.ID, Body: body, Date: date, FeedImageID: in.FeedImageID}
		w.carouselItems(in.CarouselItems)
		w.relatedLinks(in.RelatedLinks)
	default:
		return nil, ErrKindMismatch
	}

	if err := w.refs.resolve(tx, w.problems); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *contentWrite) stream(field string, def stream.Definition, s stream.Stream) {
	w.problems.addStream(field, def, s)
	w.refs.addStream(field, s)
}

func (w *contentWrite) image(field string, id *uint) {
	if id != nil {
		w.refs.add(refImage, field, *id)
	}
}

func (w *contentWrite) date(field, raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		w.problems.add(field, field+" is required")
		return time.Time{}
	}
	date, err := time.ParseInLocation(DateLayout, raw, time.UTC)
	if err != nil {
		w.problems.add(field, field+" must be a date in YYYY-MM-DD format")
		return time.Time{}
	}
	return date
}

func (w *contentWrite) section(field string, in SectionInput) db.Section {
	section := newSection(in)
	w.problems.addStruct(field, section)
	w.stream(joinField(field, "blocks"), stream.BodyBlocks, section.Blocks)
	return section
}

func newSection(in SectionInput) db.Section {
	columns := in.Columns
	if columns == 0 {
		columns = 1
	}
	blocks := in.Blocks.WithIDs()
	if blocks == nil {
		blocks = stream.Stream{}
	}
	return db.Section{
		Title:    strings.TrimSpace(in.Title),
		CustomID: strings.TrimSpace(in.CustomID),
		Columns:  columns,
		Blocks:   blocks,
	}
}

func (w *contentWrite) carouselItems(items []CarouselItemInput) {
	for i, in := range items {
		field := indexedField("carousel_items", i)
		item := db.CarouselItem{
			ImageID:    in.ImageID,
			EmbedURL:   strings.TrimSpace(in.EmbedURL),
			Caption:    strings.TrimSpace(in.Caption),
			LinkFields: in.LinkFields,
		}
		w.problems.addStruct(field, item)
		w.image(joinField(field, "image_id"), item.ImageID)
		w.link(field, item.LinkFields)
		w.carousel = append(w.carousel, item)
	}
}

func (w *contentWrite) relatedLinks(links []RelatedLinkInput) {
	for i, in := range links {
		field := indexedField("related_links", i)
		link := db.RelatedLink{
			Title:      strings.TrimSpace(in.Title),
			LinkFields: in.LinkFields,
		}
		w.problems.addStruct(field, link)
		w.link(field, link.LinkFields)
		w.related = append(w.related, link)
	}
}

func (w *contentWrite) link(field string, link db.LinkFields) {
	if link.LinkPageID != nil {
		w.refs.add(refPage, joinField(field, "link_page_id"), *link.LinkPageID)
	}
	if link.LinkDocumentID != nil {
		w.refs.add(refDocument, joinField(field, "link_document_id"), *link.LinkDocumentID)
	}
}

func replaceSections(tx *gorm.DB, pageID uint, sections []db.Section) error {
	if err := tx.Where("page_id = ?", pageID).Delete(&db.Section{}).Error; err != nil {
		return fmt.Errorf("clear sections: %w", err)
	}
	for i := range sections {
		sections[i].PageID = pageID
		sections[i].SortOrder = i
	}
	if len(sections) == 0 {
		return nil
	}
	if err := tx.Create(&sections).Error; err != nil {
		return fmt.Errorf("create sections: %w", err)
	}
	return nil
}

func replaceCarouselItems(tx *gorm.DB, pageID uint, items []db.CarouselItem) error {
	if err := tx.Where("page_id = ?", pageID).Delete(&db.CarouselItem{}).Error; err != nil {
		return fmt.Errorf("clear carousel items: %w", err)
	}
	for i := range items {
		items[i].PageID = pageID
		items[i].SortOrder = i
	}
	if len(items) == 0 {
		return nil
	}
	if err := tx.Create(&items).Error; err != nil {
		return fmt.Errorf("create carousel items: %w", err)
	}
	return nil
}

func replaceRelatedLinks(tx *gorm.DB, pageID uint, links []db.RelatedLink) error {
	if err := tx.Where("page_id = ?", pageID).Delete(&db.RelatedLink{}).Error; err != nil {
		return fmt.Errorf("clear related links: %w", err)
	}
	for i := range links {
		links[i].PageID = pageID
		links[i].SortOrder = i
	}
	if len(links) == 0 {
		return nil
	}
	if err := tx.Create(&links).Error; err != nil {
		return fmt.Errorf("create related links: %w", err)
	}
	return nil
}

// Sections returns the sections of a site page in order.
func (s *ContentService) Sections(pageID uint) ([]db.Section, error) {
	if _, err := sectionPage(s.db, pageID); err != nil {
		return nil, err
	}
	return orderedSections(s.db, pageID)
}

// AddSection appends a section to a site page.
func (s *ContentService) AddSection(pageID uint, input SectionInput) (*db.Section, error) {
	var section db.Section
	err := s.db.Transaction(func(tx *gorm.DB) error {
		page, err := sectionPage(tx, pageID)
		if err != nil {
			return err
		}
		if section, err = validateSection(tx, input); err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&db.Section{}).Where("page_id = ?", pageID).Count(&count).Error; err != nil {
			return err
		}
		section.PageID = pageID
		section.SortOrder = int(count)
		if err := tx.Create(&section).Error; err != nil {
			return fmt.Errorf("create section: %w", err)
		}
		return rebuildSnippetRefs(tx, *page)
	})
	if err != nil {
		return nil, err
	}
	return &section, nil
}

// UpdateSection replaces the fields of one section, keeping its position.
func (s *ContentService) UpdateSection(pageID, sectionID uint, input SectionInput) (*db.Section, error) {
	var section db.Section
	err := s.db.Transaction(func(tx *gorm.DB) error {
		page, err := sectionPage(tx, pageID)
		if err != nil {
			return err
		}
		existing, err := findSection(tx, pageID, sectionID)
		if err != nil {
			return err
		}
		if section, err = validateSection(tx, input); err != nil {
			return err
		}

		section.ID = existing.ID
		section.PageID = existing.PageID
		section.SortOrder = existing.SortOrder
		if err := tx.Save(&section).Error; err != nil {
			return fmt.Errorf("update section: %w", err)
		}
		return rebuildSnippetRefs(tx, *page)
	})
	if err != nil {
		return nil, err
	}
	return &section, nil
}

// MoveSection places a section at position (0 based) and renumbers its
// siblings.
func (s *ContentService) MoveSection(pageID, sectionID uint, position int) ([]db.Section, error) {
	var sections []db.Section
	err := s.db.Transaction(func(tx *gorm.DB) error {
		page, err := sectionPage(tx, pageID)
		if err != nil {
			return err
		}
		if sections, err = orderedSections(tx, pageID); err != nil {
			return err
		}

		from := -1
		for i, section := range sections {
			if section.ID == sectionID {
				from = i
				break
			}
		}
		if from < 0 {
			return ErrSectionNotFound
		}
		if position < 0 || position >= len(sections) {
			return ErrPositionOutOfRange
		}

		moved := sections[from]
		sections = append(sections[:from], sections[from+1:]...)
		sections = append(sections[:position], append([]db.Section{moved}, sections[position:]...)...)
		if err := renumberSections(tx, sections); err != nil {
			return err
		}
		return rebuildSnippetRefs(tx, *page)
	})
	if err != nil {
		return nil, err
	}
	return sections, nil
}

// DeleteSection removes a section and closes the gap in the ordering.
func (s *ContentService) DeleteSection(pageID, sectionID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		page, err := sectionPage(tx, pageID)
		if err != nil {
			return err
		}
		if _, err := findSection(tx, pageID, sectionID); err != nil {
			return err
		}
		if err := tx.Delete(&db.Section{}, sectionID).Error; err != nil {
			return fmt.Errorf("delete section: %w", err)
		}
		sections, err := orderedSections(tx, pageID)
		if err != nil {
			return err
		}
		if err := renumberSections(tx, sections); err != nil {
			return err
		}
		return rebuildSnippetRefs(tx, *page)
	})
}

func sectionPage(gdb *gorm.DB, pageID uint) (*db.Page, error) {
	page, err := findPage(gdb, pageID)
	if err != nil {
		return nil, err
	}
	if !page.Kind.HasSections() {
		return nil, ErrSectionsUnsupported
	}
	return page, nil
}

func findSection(gdb *gorm.DB, pageID, sectionID uint) (*db.Section, error) {
	var section db.Section
	if err := gdb.Where("page_id = ? AND id = ?", pageID, sectionID).First(&section).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSectionNotFound
		}
		return nil, err
	}
	return &section, nil
}

func orderedSections(gdb *gorm.DB, pageID uint) ([]db.Section, error) {
	var sections []db.Section
	if err := gdb.Where("page_id = ?", pageID).Order("sort_order asc, id asc").Find(&sections).Error; err != nil {
		return nil, fmt.Errorf("load sections: %w", err)
	}
	return sections, nil
}

func renumberSections(tx *gorm.DB, sections []db.Section) error {
	for i := range sections {
		sections[i].SortOrder = i
		if err := tx.Model(&db.Section{}).Where("id = ?", sections[i].ID).Update("sort_order", i).Error; err != nil {
			return fmt.Errorf("renumber sections: %w", err)
		}
	}
	return nil
}

func validateSection(tx *gorm.DB, input SectionInput) (db.Section, error) {
	w := &contentWrite{problems: &problems{}, refs: &refChecks{}}
	section := w.section("section", input)
	if err := w.refs.resolve(tx, w.problems); err != nil {
		return section, err
	}
	return section, w.problems.err()
}

// namedStream is one persisted stream of a page, addressed by field name.
type namedStream struct {
	Field  string
	Stream stream.Stream
}

func pageStreams(gdb *gorm.DB, page db.Page) ([]namedStream, error) {
	content, err := loadContent(gdb, page)
	if err != nil {
		return nil, err
	}

	var out []namedStream
	switch c := content.(type) {
	case *db.SitePage:
		out = append(out, namedStream{"hero", c.Hero}, namedStream{"body", c.Body})
		sections, err := orderedSections(gdb, page.ID)
		if err != nil {
			return nil, err
		}
		for i, section := range sections {
			out = append(out, namedStream{indexedField("sections", i), section.Blocks})
		}
	case *db.TextPage:
		out = append(out, namedStream{"body", c.Body})
	}
	return out, nil
}

// rebuildSnippetRefs rewrites the snippet reference index of one page from
// its persisted streams.
func rebuildSnippetRefs(tx *gorm.DB, page db.Page) error {
	if err := tx.Where("page_id = ?", page.ID).Delete(&db.SnippetReference{}).Error; err != nil {
		return fmt.Errorf("clear snippet references: %w", err)
	}

	streams, err := pageStreams(tx, page)
	if err != nil {
		return err
	}
	var refs []db.SnippetReference
	for _, ns := range streams {
		for _, ref := range ns.Stream.SnippetRefs() {
			refs = append(refs, db.SnippetReference{
				SnippetID: ref.ID,
				PageID:    page.ID,
				Field:     ns.Field,
				BlockID:   ref.BlockID,
			})
		}
	}
	if len(refs) == 0 {
		return nil
	}
	if err := tx.Create(&refs).Error; err != nil {
		return fmt.Errorf("create snippet references: %w", err)
	}
	return nil
}

// streamColumns lists every persisted stream column.
var streamColumns = []struct {
	model  any
	table  string
	key    string
	column string
}{
	{&db.SitePage{}, "site_pages", "page_id", "hero"},
	{&db.SitePage{}, "site_pages", "page_id", "body"},
	{&db.TextPage{}, "text_pages", "page_id", "body"},
	{&db.Section{}, "sections", "id", "blocks"},
}

type streamRow struct {
	RowKey uint
	Blocks stream.Stream
}

// clearStreamRefs rewrites every stream holding a block of kind, limited to
// pageIDs when given, with clear. It returns the number of blocks changed.
func clearStreamRefs(tx *gorm.DB, kind stream.Kind, pageIDs []uint, clear func(stream.Stream) (stream.Stream, int)) (int, error) {
	total := 0
	for _, col := range streamColumns {
		query := tx.Model(col.model).
			Select(fmt.Sprintf("%s AS row_key, %s AS blocks", col.key, col.column)).
			Where(col.column+" LIKE ?", fmt.Sprintf(`%%"type":"%s"%%`, kind))
		if pageIDs != nil {
			query = query.Where("page_id IN ?", pageIDs)
		}

		var rows []streamRow
		if err := query.Scan(&rows).Error; err != nil {
			return total, fmt.Errorf("scan %s.%s: %w", col.table, col.column, err)
		}
		for _, row := range rows {
			cleared, changed := clear(row.Blocks)
			if changed == 0 {
				continue
			}
			if err := tx.Model(col.model).Where(col.key+" = ?", row.RowKey).Update(col.column, cleared).Error; err != nil {
				return total, fmt.Errorf("update %s.%s: %w", col.table, col.column, err)
			}
			total += changed
		}
	}
	return total, nil
}

type refKind int

const (
	refPage refKind = iota
	refDocument
	refImage
	refSnippet
)

var refModels = map[refKind]struct {
	model any
	label string
}{
	refPage:     {&db.Page{}, "page"},
	refDocument: {&db.Document{}, "document"},
	refImage:    {&db.Image{}, "image"},
	refSnippet:  {&db.CallToAction{}, "call to action"},
}

type refCheck struct {
	field string
	index *int
	kind  stream.Kind
	id    uint
}

// refChecks gathers referenced ids so each table is queried once.
type refChecks struct {
	checks map[refKind][]refCheck
}

func (r *refChecks) add(kind refKind, field string, id uint) {
	r.push(kind, refCheck{field: field, id: id})
}

func (r *refChecks) push(kind refKind, c refCheck) {
	if r.checks == nil {
		r.checks = make(map[refKind][]refCheck)
	}
	r.checks[kind] = append(r.checks[kind], c)
}

// addStream checks the snippets, documents and images placed by blocks.
func (r *refChecks) addStream(field string, s stream.Stream) {
	collect := func(kind refKind, refs []stream.Ref) {
		for _, ref := range refs {
			index := s.Index(ref.BlockID)
			if index < 0 {
				continue
			}
			r.push(kind, refCheck{field: field, index: &index, kind: s[index].Type, id: ref.ID})
		}
	}
	collect(refSnippet, s.SnippetRefs())
	collect(refDocument, s.DocumentRefs())
	collect(refImage, s.ImageRefs())
}

// resolve records a problem for every id that does not exist.
func (r *refChecks) resolve(tx *gorm.DB, p *problems) error {
	for _, kind := range []refKind{refPage, refDocument, refImage, refSnippet} {
		checks := r.checks[kind]
		if len(checks) == 0 {
			continue
		}
		ids := make([]uint, 0, len(checks))
		for _, c := range checks {
			ids = append(ids, c.id)
		}

		var found []uint
		target := refModels[kind]
		if err := tx.Model(target.model).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
			return fmt.Errorf("check %s references: %w", target.label, err)
		}
		exists := make(map[uint]bool, len(found))
		for _, id := range found {
			exists[id] = true
		}

		for _, c := range checks {
			if exists[c.id] {
				continue
			}
			p.list = append(p.list, Problem{
				Field:   c.field,
				Index:   c.index,
				Kind:    string(c.kind),
				Message: fmt.Sprintf("%s %d does not exist", target.label, c.id),
			})
		}
	}
	return nil
}
