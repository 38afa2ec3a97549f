package services

import (
	"bytes"
	"html"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/nguyenthenguyen/docx"
)

// ProfileContent is the candidate text pulled out of an uploaded file.
type ProfileContent struct {
	Text      string
	PageCount int
	Format    string
}

type ProfileParserService interface {
	Parse(filename string, r io.Reader) (*ProfileContent, error)
	SupportedExtension(filename string) bool
}

type profileParserService struct {
	pdfParser   PDFParserService
	maxFileSize int64
}

func NewProfileParserService(pdfParser PDFParserService, maxFileSize int64) ProfileParserService {
	return &profileParserService{
		pdfParser:   pdfParser,
		maxFileSize: maxFileSize,
	}
}

func (p *profileParserService) SupportedExtension(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".docx", ".txt", ".md":
		return true
	}
	return false
}

// Parse implements ProfileParserService. The format is chosen by extension.
func (p *profileParserService) Parse(filename string, r io.Reader) (*ProfileContent, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !p.SupportedExtension(filename) {
		return nil, &IngestError{Source: "profile", Message: "unsupported file extension: " + ext}
	}

	data, err := readAllLimited(r, p.maxFileSize)
	if err != nil {
		return nil, &IngestError{Source: "profile", Message: "read failed", Cause: err}
	}

	switch ext {
	case ".pdf":
		content, err := p.pdfParser.ExtractTextWithMetaData(data)
		if err != nil {
			return nil, err
		}
		return &ProfileContent{Text: content.Text, PageCount: content.PageCount, Format: "pdf"}, nil

	case ".docx":
		text, err := extractDocxText(data)
		if err != nil {
			return nil, err
		}
		return &ProfileContent{Text: text, Format: "docx"}, nil
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return nil, &IngestError{Source: "profile", Message: "text file is not valid UTF-8"}
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, &IngestError{Source: "profile", Message: "file is empty"}
	}
	return &ProfileContent{Text: text, Format: "text"}, nil
}

var (
	docxParagraphEnd = regexp.MustCompile(`</w:p>|<w:br[^>]*/>|<w:tab[^>]*/>`)
	xmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
)

// extractDocxText turns word/document.xml into one line per paragraph.
func extractDocxText(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &IngestError{Source: "docx", Message: "failed to open document", Cause: err}
	}
	defer doc.Close()

	content := doc.Editable().GetContent()
	content = docxParagraphEnd.ReplaceAllStringFunc(content, func(tag string) string {
		if strings.HasPrefix(tag, "<w:tab") {
			return "\t"
		}
		return "\n"
	})
	content = xmlTagPattern.ReplaceAllString(content, "")
	text := CleanText(html.UnescapeString(content))

	if text == "" {
		return "", &IngestError{Source: "docx", Message: "no text content found in document"}
	}
	return text, nil
}
