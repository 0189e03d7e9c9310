package models

import (
	"time"

	"gorm.io/datatypes"
)

// Entities buckets the names linked from an article body.
type Entities struct {
	People        []string `json:"people"`
	Organizations []string `json:"organizations"`
	Locations     []string `json:"locations"`
}

// NewEntities returns empty, non-nil buckets so they encode as [] rather than null.
func NewEntities() Entities {
	return Entities{
		People:        []string{},
		Organizations: []string{},
		Locations:     []string{},
	}
}

// Article is one scraped source document. The URL is its natural key.
type Article struct {
	ID          uint                         `json:"id" gorm:"primaryKey"`
	URL         string                       `json:"url" gorm:"uniqueIndex;not null"`
	Title       string                       `json:"title"`
	Summary     string                       `json:"summary" gorm:"type:text"`
	Sections    datatypes.JSONSlice[string]  `json:"sections"`
	KeyEntities datatypes.JSONType[Entities] `json:"key_entities"`
	RawHTML     string                       `json:"-" gorm:"type:text"`
	CreatedAt   time.Time                    `json:"created_at" gorm:"autoCreateTime;index"`

	// Relationships
	Quizzes []Quiz `json:"-" gorm:"foreignKey:ArticleID;constraint:OnDelete:CASCADE"`
}

// TableName sets the table name for the Article model
func (Article) TableName() string {
	return "articles"
}

// Entities returns the decoded entity buckets.
func (a *Article) Entities() Entities {
	e := a.KeyEntities.Data()
	if e.People == nil {
		e.People = []string{}
	}
	if e.Organizations == nil {
		e.Organizations = []string{}
	}
	if e.Locations == nil {
		e.Locations = []string{}
	}
	return e
}
