package services

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLCleaner flattens job-board HTML that sometimes ends up in CSV cells.
type HTMLCleaner interface {
	Clean(value string) string
}

type htmlCleaner struct{}

func NewHTMLCleaner() HTMLCleaner {
	return &htmlCleaner{}
}

var (
	htmlTagPattern  = regexp.MustCompile(`<[a-zA-Z/!][^>]*>`)
	blankRunPattern = regexp.MustCompile(`[ \t\p{Zs}]+`)
	newlineRun      = regexp.MustCompile(`\n{3,}`)
)

// Clean implements HTMLCleaner. Plain text is returned unchanged.
func (h *htmlCleaner) Clean(value string) string {
	if !htmlTagPattern.MatchString(value) {
		return value
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(value))
	if err != nil {
		return value
	}

	// keep block boundaries as line breaks
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, tr, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	doc.Find("li").Each(func(_ int, s *goquery.Selection) {
		s.PrependHtml("- ")
	})
	doc.Find("script, style").Remove()

	return normalizeText(doc.Text())
}

func normalizeText(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(blankRunPattern.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = newlineRun.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
