package fetch

import (
	"bytes"
	"html"
	"net/url"
	"regexp"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"github.com/inbucket/html2text"
	"github.com/microcosm-cc/bluemonday"
)

var (
	titleRe      = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
	spacesRe     = regexp.MustCompile(`[ \t\f\v]+`)

	fallbackPolicy = newFallbackPolicy()
)

func newFallbackPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.SkipElementsContent("nav", "footer", "header", "aside", "form", "script", "style", "noscript")
	return p
}

// Extract pulls the readable text out of an HTML document. Readability runs
// first; when it yields fewer than minChars the page is reduced to sanitized
// markup and converted to plain text instead.
func Extract(u *url.URL, body []byte, minChars int) (string, string) {
	title := pageTitle(body)

	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err == nil {
		if article.Title != "" {
			title = strings.TrimSpace(article.Title)
		}
		text := normalizeSpace(article.TextContent)
		if len([]rune(text)) >= minChars {
			return title, text
		}
	}

	return title, stripMarkup(body)
}

func stripMarkup(body []byte) string {
	cleaned := fallbackPolicy.SanitizeBytes(body)
	text, err := html2text.FromString(string(cleaned), html2text.Options{OmitLinks: true})
	if err != nil {
		return ""
	}
	return normalizeSpace(text)
}

func pageTitle(body []byte) string {
	m := titleRe.FindSubmatch(body)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(string(m[1])))
}

func normalizeSpace(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(spacesRe.ReplaceAllString(l, " "))
	}
	s = strings.Join(lines, "\n")
	return strings.TrimSpace(blankLinesRe.ReplaceAllString(s, "\n\n"))
}
