package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	"wiki-quiz/internal/models"
)

// ExtractJSON returns the span from the first '{' to the last '}' in text.
// Model replies often wrap the object in prose or markdown fences.
func ExtractJSON(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", ErrNoJSON
	}
	return text[start : end+1], nil
}

// ParseResult decodes and validates a model reply.
func ParseResult(text string) (*Result, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	var result Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}

	if len(result.Quiz) == 0 {
		return nil, ErrEmptyQuiz
	}
	for i, q := range result.Quiz {
		if err := q.validate(); err != nil {
			return nil, fmt.Errorf("%w: question %d: %v", ErrInvalidQuestion, i+1, err)
		}
	}
	if result.RelatedTopics == nil {
		result.RelatedTopics = []string{}
	}
	return &result, nil
}

func (q QuestionDraft) validate() error {
	switch {
	case strings.TrimSpace(q.Question) == "":
		return fmt.Errorf("missing question text")
	case len(q.Options) != models.OptionCount:
		return fmt.Errorf("expected %d options, got %d", models.OptionCount, len(q.Options))
	case q.Answer == "":
		return fmt.Errorf("missing answer")
	}
	return nil
}
