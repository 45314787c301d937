package report

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Report is a saved progress report, created from a finished job or typed in
// by the user.
type Report struct {
	ID          string                     `gorm:"primaryKey;size:26" json:"id"`
	UserID      uint64                     `gorm:"index;not null" json:"-"`
	Title       string                     `gorm:"size:255;not null" json:"title"`
	Content     string                     `gorm:"type:text;not null" json:"content"`
	Period      datatypes.JSONType[Period] `gorm:"not null" json:"period"`
	UserName    string                     `gorm:"size:255" json:"user_name"`
	UserRole    string                     `gorm:"size:255" json:"user_role"`
	CompanyName string                     `gorm:"size:255" json:"company_name"`
	FooterText  string                     `gorm:"size:255" json:"footer_text"`
	CreatedAt   time.Time                  `json:"created_at"`
	UpdatedAt   time.Time                  `json:"updated_at"`
	DeletedAt   gorm.DeletedAt             `gorm:"index" json:"deleted_at,omitempty"`
}

func (Report) TableName() string { return "reports" }

// Defaults fills presentation fields the user left empty.
type Defaults struct {
	Title       string
	UserRole    string
	CompanyName string
	FooterText  string
}

func DefaultPresentation() Defaults {
	return Defaults{
		Title:       "Weekly Progress Report",
		UserRole:    "IT Intern",
		CompanyName: "iTech Media Logic",
		FooterText:  "Generated via Internal Journal System",
	}
}

func (d Defaults) withFallback() Defaults {
	def := DefaultPresentation()
	if d.Title == "" {
		d.Title = def.Title
	}
	if d.UserRole == "" {
		d.UserRole = def.UserRole
	}
	if d.CompanyName == "" {
		d.CompanyName = def.CompanyName
	}
	if d.FooterText == "" {
		d.FooterText = def.FooterText
	}
	return d
}
