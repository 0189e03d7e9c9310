package models

import (
	"fmt"

	"gorm.io/datatypes"
)

// OptionCount is the number of answer options every question carries.
const OptionCount = 4

// DefaultSection labels questions whose source heading is unknown.
const DefaultSection = "General"

// Options holds the answer choices of a question.
type Options [OptionCount]string

// NewOptions copies opts into a fixed-size array. It fails unless exactly four are given.
func NewOptions(opts []string) (Options, error) {
	var out Options
	if len(opts) != OptionCount {
		return out, fmt.Errorf("expected %d options, got %d", OptionCount, len(opts))
	}
	copy(out[:], opts)
	return out, nil
}

// Slice returns the options as a slice.
func (o Options) Slice() []string {
	return append([]string(nil), o[:]...)
}

// Contains reports whether answer is one of the options, byte for byte.
func (o Options) Contains(answer string) bool {
	for _, opt := range o {
		if opt == answer {
			return true
		}
	}
	return false
}

// Question is one multiple-choice item of a quiz.
type Question struct {
	ID           uint                        `json:"id" gorm:"primaryKey"`
	QuizID       uint                        `json:"quiz_id" gorm:"not null;index"`
	QuestionText string                      `json:"question" gorm:"type:text"`
	Options      datatypes.JSONType[Options] `json:"options"`
	Answer       string                      `json:"answer"`
	Explanation  string                      `json:"explanation" gorm:"type:text"`
	Difficulty   string                      `json:"difficulty"` // easy, medium or hard
	Section      string                      `json:"section"`
}

// TableName sets the table name for the Question model
func (Question) TableName() string {
	return "questions"
}
