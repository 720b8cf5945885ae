package db

import "time"

// Image is an uploaded picture. File is relative to the images upload
// directory.
type Image struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	File      string    `gorm:"size:255;not null" json:"file"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	FileSize  int64     `json:"file_size"`
	CreatedAt time.Time `json:"created_at"`
}

// ImageRendition is a resized copy of an image produced by a filter spec
// such as "width-800" or "fill-300x200".
type ImageRendition struct {
	ID      uint   `gorm:"primarykey" json:"id"`
	ImageID uint   `gorm:"uniqueIndex:idx_rendition_image_filter;not null" json:"image_id"`
	Filter  string `gorm:"size:64;uniqueIndex:idx_rendition_image_filter;not null" json:"filter"`
	File    string `gorm:"size:255;not null" json:"file"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// Document is an uploaded file that links may point at.
type Document struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	File      string    `gorm:"size:255;not null" json:"file"`
	FileSize  int64     `json:"file_size"`
	CreatedAt time.Time `json:"created_at"`
}
