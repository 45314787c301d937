package journal

import (
	"time"

	"gorm.io/gorm"
)

// Entry is one dated journal record. EntryDate is stored as YYYY-MM-DD so
// lexical ordering matches calendar ordering.
type Entry struct {
	ID        string         `gorm:"primaryKey;size:26" json:"id"`
	UserID    uint64         `gorm:"index;not null" json:"-"`
	Title     string         `gorm:"size:255;not null" json:"title"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	EntryDate string         `gorm:"type:varchar(10);index;not null" json:"entry_date"`
	Image     string         `gorm:"size:512" json:"image,omitempty"`
	Video     string         `gorm:"size:512" json:"video,omitempty"`
	Audio     string         `gorm:"size:512" json:"audio,omitempty"`
	File      string         `gorm:"size:512" json:"file,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Entry) TableName() string { return "journal_entries" }

// MediaPaths lists the stored attachment paths of the entry.
func (e *Entry) MediaPaths() []string {
	var out []string
	for _, p := range []string{e.Image, e.Video, e.Audio, e.File} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Page is one page of a filtered entry listing.
type Page struct {
	Entries  []Entry `json:"entries"`
	Total    int64   `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}
