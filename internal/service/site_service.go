package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sitepages/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultSiteName is used until an administrator names the site.
const DefaultSiteName = "Site"

// SiteSettings 描述后台可配置的站点信息。
type SiteSettings struct {
	SiteName   string `json:"site_name"`
	RootPageID *uint  `json:"root_page_id"`
}

// SiteSettingsInput 用于更新站点设置。
type SiteSettingsInput struct {
	SiteName   string
	RootPageID *uint
}

// ErrRootPageNotFound is returned when the chosen site root does not exist.
var ErrRootPageNotFound = errors.New("site root page not found")

// SiteService 提供站点设置的读取与更新能力。
type SiteService struct {
	db *gorm.DB
}

// NewSiteService 构造 SiteService。
func NewSiteService(gdb *gorm.DB) *SiteService {
	return &SiteService{db: gdb}
}

var settingKeys = []string{
	db.SettingKeySiteName,
	db.SettingKeyRootPageID,
}

// GetSettings 读取站点设置，如未设置将返回默认值。
func (s *SiteService) GetSettings() (SiteSettings, error) {
	return loadSiteSettings(s.db)
}

func loadSiteSettings(gdb *gorm.DB) (SiteSettings, error) {
	result := SiteSettings{SiteName: DefaultSiteName}

	var records []db.SystemSetting
	if err := gdb.Where("key IN ?", settingKeys).Find(&records).Error; err != nil {
		return result, fmt.Errorf("load site settings: %w", err)
	}

	for _, record := range records {
		switch record.Key {
		case db.SettingKeySiteName:
			if name := strings.TrimSpace(record.Value); name != "" {
				result.SiteName = name
			}
		case db.SettingKeyRootPageID:
			if id, err := strconv.ParseUint(strings.TrimSpace(record.Value), 10, 64); err == nil && id > 0 {
				rootID := uint(id)
				result.RootPageID = &rootID
			}
		}
	}

	return result, nil
}

// UpdateSettings 保存站点设置，未填写站点名称时回退默认值。
func (s *SiteService) UpdateSettings(input SiteSettingsInput) (SiteSettings, error) {
	sanitized := SiteSettings{
		SiteName:   strings.TrimSpace(input.SiteName),
		RootPageID: input.RootPageID,
	}
	if sanitized.SiteName == "" {
		sanitized.SiteName = DefaultSiteName
	}
	if sanitized.RootPageID != nil && *sanitized.RootPageID == 0 {
		sanitized.RootPageID = nil
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		rootValue := ""
		if sanitized.RootPageID != nil {
			var count int64
			if err := tx.Model(&db.Page{}).Where("id = ?", *sanitized.RootPageID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrRootPageNotFound
			}
			rootValue = strconv.FormatUint(uint64(*sanitized.RootPageID), 10)
		}

		if err := upsertSetting(tx, db.SettingKeySiteName, sanitized.SiteName); err != nil {
			return err
		}
		return upsertSetting(tx, db.SettingKeyRootPageID, rootValue)
	})
	if err != nil {
		if errors.Is(err, ErrRootPageNotFound) {
			return SiteSettings{}, err
		}
		return SiteSettings{}, fmt.Errorf("update site settings: %w", err)
	}

	return sanitized, nil
}

func upsertSetting(tx *gorm.DB, key, value string) error {
	setting := db.SystemSetting{Key: key, Value: value}
	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      value,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&setting).Error; err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}
	return nil
}
