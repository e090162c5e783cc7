package enrich

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Clean strips non-content markup from raw HTML and collapses whitespace:
// script/style/noscript subtrees are removed, the remaining visible text is
// extracted, runs of whitespace inside a line collapse to single spaces, and
// blank lines are dropped. Input that fails to parse as HTML is returned
// whitespace-collapsed as-is.
func Clean(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return collapseWhitespace(rawHTML)
	}

	doc.Find("script, style, noscript").Remove()
	return collapseWhitespace(doc.Text())
}

// Title returns the document's <title> text, or "" if absent.
func Title(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func collapseWhitespace(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		lines = append(lines, strings.Join(fields, " "))
	}
	return strings.Join(lines, "\n")
}
