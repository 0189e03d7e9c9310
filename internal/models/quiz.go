package models

import (
	"time"

	"gorm.io/datatypes"
)

// Quiz is one generation run for an article. The newest quiz is canonical.
type Quiz struct {
	ID            uint                        `json:"id" gorm:"primaryKey"`
	ArticleID     uint                        `json:"article_id" gorm:"not null;index"`
	RelatedTopics datatypes.JSONSlice[string] `json:"related_topics"`
	CreatedAt     time.Time                   `json:"created_at" gorm:"autoCreateTime"`

	// Relationships
	Questions []Question `json:"-" gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE"`
}

// TableName sets the table name for the Quiz model
func (Quiz) TableName() string {
	return "quizzes"
}
