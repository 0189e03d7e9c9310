package extractor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveFixture(t *testing.T) *httptest.Server {
	htmlContent, err := os.ReadFile("testdata/alan_turing.html")
	if err != nil {
		t.Fatalf("Failed to read test HTML file: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write(htmlContent)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestExtract(t *testing.T) {
	server := serveFixture(t)
	extractor := NewExtractor(10 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	doc, err := extractor.Extract(ctx, server.URL+"/wiki/Alan_Turing")
	require.NoError(t, err)

	assert.Equal(t, server.URL+"/wiki/Alan_Turing", doc.URL)
	assert.Equal(t, "Alan Turing", doc.Title)
	assert.Equal(t, "Alan Mathison Turing was an English mathematician, computer scientist and logician. "+
		"He was highly influential in the development of theoretical computer science.", doc.Summary)
	assert.Equal(t, []string{"Early life", "Career", "Enigma", "Legacy"}, doc.Sections)
	assert.Contains(t, doc.RawHTML, `id="firstHeading"`)

	assert.NotContains(t, doc.FullText, "[1]")
	assert.NotContains(t, doc.FullText, "list item")
	assert.True(t, strings.HasPrefix(doc.FullText, "Alan Mathison Turing"))
	assert.Contains(t, doc.FullText, "\n\nEarly life\n\n")
	assert.Contains(t, doc.FullText, "\n\nCareer[edit]\n\n")
	assert.True(t, strings.HasSuffix(doc.FullText, "The Turing Award is named after him.\n\n"))
}

func TestExtractEntities(t *testing.T) {
	server := serveFixture(t)
	extractor := NewExtractor(10 * time.Second)

	doc, err := extractor.Extract(context.Background(), server.URL)
	require.NoError(t, err)

	// The repeated Gordon Welchman link is dropped.
	assert.Equal(t, []string{
		"mathematician",
		"computer scientist",
		"logician",
		"theoretical computer science",
		"Maida Vale",
		"Indian Civil Service",
		"Bletchley Park",
		"Gordon Welchman",
		"Enigma machine",
		"ignored?",
		"Turing Award",
	}, doc.KeyEntities.People)
	assert.Empty(t, doc.KeyEntities.Organizations)
	assert.Empty(t, doc.KeyEntities.Locations)
}

func TestParseMissingElements(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{"no heading", `<html><body><div id="mw-content-text"><div class="mw-parser-output"><p>Text</p></div></div></body></html>`},
		{"no content", `<html><body><h1 id="firstHeading">Title</h1><p>Text</p></body></html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.html)
			assert.ErrorIs(t, err, ErrMissingElement)
		})
	}
}

func TestParseSummaryStopsAtFirstHeading(t *testing.T) {
	page := `<html><body><h1 id="firstHeading">Stub</h1>
<div id="mw-content-text"><div class="mw-parser-output">
<p> </p>
<h2><span class="mw-headline">History</span></h2>
<p>Only after the heading.</p>
</div></div></body></html>`

	doc, err := Parse(page)
	require.NoError(t, err)
	assert.Empty(t, doc.Summary)
	assert.Equal(t, []string{"History"}, doc.Sections)
	assert.Empty(t, doc.KeyEntities.People)
}

func TestParseTruncatesFullText(t *testing.T) {
	long := strings.Repeat("é", MaxFullTextChars+500)
	page := `<html><body><h1 id="firstHeading">Long</h1><div id="mw-content-text"><div class="mw-parser-output"><p>` +
		long + `</p></div></div></body></html>`

	doc, err := Parse(page)
	require.NoError(t, err)
	assert.Equal(t, MaxFullTextChars, len([]rune(doc.FullText)))
}

func TestExtractHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Not Found"))
	}))
	defer server.Close()

	_, err := NewExtractor(10*time.Second).Extract(context.Background(), server.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetch))
	assert.Contains(t, err.Error(), "404")
}

func TestExtractInvalidURL(t *testing.T) {
	_, err := NewExtractor(10*time.Second).Extract(context.Background(), "not-a-valid-url")
	assert.ErrorIs(t, err, ErrFetch)
}

func TestExtractTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	_, err := NewExtractor(100*time.Millisecond).Extract(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrFetch)
}

func TestExtractCancelledContext(t *testing.T) {
	server := serveFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExtractor(time.Second).Extract(ctx, server.URL)
	assert.ErrorIs(t, err, ErrFetch)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractSendsUserAgent(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, _ = NewExtractor(time.Second).Extract(context.Background(), server.URL)
	assert.Contains(t, got, "Mozilla/5.0")
}
