// Package extractor fetches Wikipedia articles and normalizes their content.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"wiki-quiz/internal/models"
)

const (
	// MaxFullTextChars bounds the body text handed to the quiz generator.
	MaxFullTextChars = 10000
	// MaxEntityLinks is how many internal links are inspected for entities.
	MaxEntityLinks = 15

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

var (
	// ErrFetch wraps transport and HTTP status failures.
	ErrFetch = errors.New("fetch failed")
	// ErrMissingElement is returned when the page lacks a required structural element.
	ErrMissingElement = errors.New("missing required element")

	citationPattern = regexp.MustCompile(`\[\d+\]`)
)

// Document is the normalized form of one article.
type Document struct {
	URL         string
	Title       string
	Summary     string
	Sections    []string
	FullText    string
	KeyEntities models.Entities
	RawHTML     string
}

// Extractor fetches article pages over HTTP.
type Extractor struct {
	httpClient *http.Client
}

// NewExtractor creates an extractor whose fetches time out after timeout.
func NewExtractor(timeout time.Duration) *Extractor {
	return &Extractor{
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
	}
}

// Extract fetches articleURL and returns its normalized content. Any failure
// aborts the whole extraction.
func (e *Extractor) Extract(ctx context.Context, articleURL string) (*Document, error) {
	body, err := e.fetch(ctx, articleURL)
	if err != nil {
		return nil, err
	}

	doc, err := Parse(body)
	if err != nil {
		return nil, err
	}
	doc.URL = articleURL
	return doc, nil
}

func (e *Extractor) fetch(ctx context.Context, articleURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %v", ErrFetch, err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: HTTP %d: %s", ErrFetch, resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response body: %v", ErrFetch, err)
	}
	return string(body), nil
}

// Parse normalizes raw article markup. The returned document has no URL set.
func Parse(rawHTML string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	page := goquery.NewDocumentFromNode(root)

	heading := page.Find("h1#firstHeading").First()
	if heading.Length() == 0 {
		return nil, fmt.Errorf("%w: primary heading", ErrMissingElement)
	}

	content := page.Find("div#mw-content-text div.mw-parser-output").First()
	if content.Length() == 0 {
		return nil, fmt.Errorf("%w: content container", ErrMissingElement)
	}

	return &Document{
		Title:       strings.TrimSpace(heading.Text()),
		Summary:     extractSummary(content),
		Sections:    extractSections(content),
		FullText:    extractFullText(content),
		KeyEntities: extractEntities(content),
		RawHTML:     rawHTML,
	}, nil
}

// extractSummary returns the first non-empty top-level paragraph that comes
// before any section heading.
func extractSummary(content *goquery.Selection) string {
	var summary string
	content.Children().EachWithBreak(func(_ int, child *goquery.Selection) bool {
		if topLevelHeading(child) != nil {
			return false
		}
		if !child.Is("p") {
			return true
		}
		text := strings.TrimSpace(child.Text())
		if text == "" {
			return true
		}
		summary = stripCitations(text)
		return false
	})
	return summary
}

// extractSections collects top-level h2/h3 labels in document order. Newer
// markup wraps headings in div.mw-heading, older markup puts the label in
// span.mw-headline.
func extractSections(content *goquery.Selection) []string {
	sections := []string{}
	content.Children().Each(func(_ int, child *goquery.Selection) {
		heading := topLevelHeading(child)
		if heading == nil {
			return
		}
		label := heading.Find("span.mw-headline").First()
		if label.Length() == 0 {
			label = heading
		}
		if text := strings.TrimSpace(label.Text()); text != "" {
			sections = append(sections, text)
		}
	})
	return sections
}

func topLevelHeading(child *goquery.Selection) *goquery.Selection {
	if child.Is("h2, h3") {
		return child
	}
	if child.Is("div.mw-heading") {
		if h := child.ChildrenFiltered("h2, h3").First(); h.Length() > 0 {
			return h
		}
	}
	return nil
}

// extractFullText joins top-level paragraph and heading texts with blank lines
// and truncates to MaxFullTextChars.
func extractFullText(content *goquery.Selection) string {
	var b strings.Builder
	content.Children().Each(func(_ int, child *goquery.Selection) {
		var text string
		switch {
		case child.Is("p"):
			text = child.Text()
		default:
			heading := topLevelHeading(child)
			if heading == nil {
				return
			}
			text = heading.Text()
		}
		text = stripCitations(strings.TrimSpace(text))
		if text == "" {
			return
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	})
	return truncate(b.String(), MaxFullTextChars)
}

// extractEntities takes the first MaxEntityLinks internal links and files every
// distinct display text under People. The other buckets stay empty.
func extractEntities(content *goquery.Selection) models.Entities {
	entities := models.NewEntities()
	seen := map[string]struct{}{}

	links := content.Find("a[href^='/wiki/']")
	for i := 0; i < links.Length() && i < MaxEntityLinks; i++ {
		name := strings.TrimSpace(links.Eq(i).Text())
		if name == "" || strings.HasPrefix(name, "[") {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		entities.People = append(entities.People, name)
	}
	return entities
}

func stripCitations(text string) string {
	return citationPattern.ReplaceAllString(text, "")
}

// truncate cuts s to at most limit characters without splitting a rune.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
