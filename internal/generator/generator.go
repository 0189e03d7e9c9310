// Package generator turns article text into a multiple-choice quiz using a
// generative text service.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"wiki-quiz/internal/logger"
)

// MaxContentChars bounds the article text placed in the prompt.
const MaxContentChars = 15000

var (
	ErrMissingCredentials = errors.New("generation service credentials are not configured")
	ErrService            = errors.New("generation service error")
	ErrNoJSON             = errors.New("no JSON object found in generation response")
	ErrMalformedJSON      = errors.New("malformed JSON in generation response")
	ErrEmptyQuiz          = errors.New("generation response missing 'quiz' field or it is empty")
	ErrInvalidQuestion    = errors.New("generated question is missing required fields")
)

// QuestionDraft is one generated question, in the wire shape clients receive.
type QuestionDraft struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer"`
	Difficulty  string   `json:"difficulty"`
	Explanation string   `json:"explanation"`
	Section     string   `json:"section"`
}

// Result is a parsed generation reply.
type Result struct {
	Quiz          []QuestionDraft `json:"quiz"`
	RelatedTopics []string        `json:"related_topics"`
}

// TextGenerator produces free text for a prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// QuizGenerator builds the quiz prompt, calls the text service once and
// parses the reply.
type QuizGenerator struct {
	llm TextGenerator
	log *logger.Logger
}

// NewQuizGenerator creates a generator backed by llm.
func NewQuizGenerator(llm TextGenerator, log *logger.Logger) *QuizGenerator {
	return &QuizGenerator{llm: llm, log: log}
}

// Generate returns a validated quiz for the article. There is no retry.
func (g *QuizGenerator) Generate(ctx context.Context, title, content string) (*Result, error) {
	prompt := BuildPrompt(title, content)

	g.log.Debug("sending quiz generation request", "title", title, "prompt_chars", len(prompt))
	reply, err := g.llm.GenerateText(ctx, prompt)
	if err != nil {
		return nil, err
	}
	g.log.Debug("raw generation response", "title", title, "response", reply)

	result, err := ParseResult(reply)
	if err != nil {
		return nil, err
	}

	for i, q := range result.Quiz {
		if !containsExact(q.Options, q.Answer) {
			g.log.Warn("generated answer does not match any option",
				"title", title, "question", i+1, "answer", q.Answer)
		}
	}
	return result, nil
}

// BuildPrompt renders the quiz instruction for an article.
func BuildPrompt(title, content string) string {
	runes := []rune(content)
	if len(runes) > MaxContentChars {
		content = string(runes[:MaxContentChars])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a professional quiz generator. Based on the following Wikipedia article content about %q, generate a quiz.\n\n", title)
	b.WriteString(`Requirements:
1. Generate 5-10 questions.
2. Each question must have 4 options (A, B, C, D).
3. Identify the correct answer (MUST be an exact string match to one of the options you provided).
4. Provide a short explanation grounded in the text.
5. Assign a difficulty level (easy, medium, hard).
6. For each question, specify the "section" header from the article it was derived from (e.g. "Early life", "Career", "Legacy").
7. Suggest 3-5 related Wikipedia topics for further reading.

Article Content:
`)
	b.WriteString(content)
	b.WriteString(`

Return the response as a valid JSON object with the following structure:
{
  "quiz": [
    {
      "question": "question text",
      "options": ["Option A", "Option B", "Option C", "Option D"],
      "answer": "Option C",
      "difficulty": "easy",
      "explanation": "why it is correct",
      "section": "History"
    }
  ],
  "related_topics": ["Topic 1", "Topic 2"]
}

IMPORTANT: The "answer" field MUST exactly match one of the entries in the "options" array.
Example: If options are ["A. Python", "B. Java"], answer MUST be "A. Python" (not just "A" or "Python").

Return ONLY the JSON object. Do not provide any conversational text.
`)
	return b.String()
}

func containsExact(options []string, answer string) bool {
	for _, opt := range options {
		if opt == answer {
			return true
		}
	}
	return false
}
