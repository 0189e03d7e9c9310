package handlers

import (
	_ "embed"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/russross/blackfriday/v2"
)

//go:embed api.md
var apiMarkdown []byte

type DocsHandler struct {
	page string
}

// NewDocsHandler renders the API description once.
func NewDocsHandler() *DocsHandler {
	return &DocsHandler{page: wrapWithTheme(string(renderMarkdown(apiMarkdown)), "API Reference")}
}

// ServeAPIDocs handles GET /docs
func (h *DocsHandler) ServeAPIDocs(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, h.page)
}

func renderMarkdown(content []byte) []byte {
	extensions := blackfriday.CommonExtensions | blackfriday.AutoHeadingIDs
	renderer := blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.CommonHTMLFlags,
	})
	return blackfriday.Run(content, blackfriday.WithRenderer(renderer), blackfriday.WithExtensions(extensions))
}

// wrapWithTheme wraps the HTML content with consistent styling
func wrapWithTheme(content, title string) string {
	return `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>` + title + ` - Wiki Quiz</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, sans-serif;
            line-height: 1.6;
            color: #333;
            background: #f8f9fa;
            padding: 20px;
            margin: 0;
        }

        .container {
            max-width: 1000px;
            margin: 0 auto;
        }

        .header {
            background: linear-gradient(135deg, #2563eb 0%, #3b82f6 100%);
            color: white;
            padding: 2rem;
            margin-bottom: 2rem;
            border-radius: 12px;
            text-align: center;
        }

        .content {
            background: white;
            padding: 3rem;
            border-radius: 12px;
            border: 1px solid #e5e7eb;
        }

        .content h2 {
            color: #2563eb;
            margin-top: 2rem;
        }

        .content pre {
            background: #f3f4f6;
            border: 1px solid #d1d5db;
            border-radius: 8px;
            padding: 1.5rem;
            overflow-x: auto;
            font-family: 'Monaco', 'Menlo', 'Ubuntu Mono', monospace;
            font-size: 0.9rem;
        }

        .content code {
            background: #f3f4f6;
            padding: 0.2rem 0.4rem;
            border-radius: 4px;
            font-family: 'Monaco', 'Menlo', 'Ubuntu Mono', monospace;
            color: #2563eb;
        }

        .content pre code {
            background: none;
            padding: 0;
            color: #374151;
        }

        .content table {
            width: 100%;
            border-collapse: collapse;
            margin-bottom: 1.5rem;
        }

        .content th, .content td {
            border: 1px solid #d1d5db;
            padding: 0.75rem;
            text-align: left;
        }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>` + title + `</h1>
        </div>
        <div class="content">
            ` + content + `
        </div>
    </div>
</body>
</html>`
}
