// Package extract turns uploaded documents into titled plain text for
// the knowledge base. HTML goes through readability with a DOM-walk
// fallback; text and markdown pass through.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// ErrUnsupportedType marks uploads in a format nobody can extract.
var ErrUnsupportedType = errors.New("unsupported document type")

// Document is the extracted form of an upload.
type Document struct {
	Title string
	Text  string
}

type kind int

const (
	kindUnknown kind = iota
	kindHTML
	kindMarkdown
	kindText
)

// FromUpload extracts a document from uploaded bytes, picking the
// extractor from the filename extension first and the declared content
// type second.
func FromUpload(filename, contentType string, data []byte) (*Document, error) {
	switch detectKind(filename, contentType) {
	case kindHTML:
		return fromHTML(filename, data)
	case kindMarkdown:
		return fromPlain(filename, data, true), nil
	case kindText:
		return fromPlain(filename, data, false), nil
	default:
		return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, filename, contentType)
	}
}

func detectKind(filename, contentType string) kind {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".html", ".htm":
		return kindHTML
	case ".md", ".markdown":
		return kindMarkdown
	case ".txt", ".text":
		return kindText
	}

	mediaType := contentType
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	switch strings.TrimSpace(strings.ToLower(mediaType)) {
	case "text/html":
		return kindHTML
	case "text/markdown":
		return kindMarkdown
	case "text/plain":
		return kindText
	}
	return kindUnknown
}

func fromHTML(filename string, data []byte) (*Document, error) {
	pageURL, _ := url.Parse("https://upload.local/" + url.PathEscape(filename))

	var title, text string
	if article, err := readability.FromReader(bytes.NewReader(data), pageURL); err == nil {
		title = strings.TrimSpace(article.Title)
		text = strings.TrimSpace(article.TextContent)
	}

	// Readability gives up on pages without an article shape; fall back to
	// a plain DOM walk.
	if title == "" || text == "" {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("parsing html: %w", err)
		}
		if title == "" {
			title = strings.TrimSpace(doc.Find("title").First().Text())
		}
		if title == "" {
			title = strings.TrimSpace(doc.Find("h1").First().Text())
		}
		if text == "" {
			doc.Find("script, style, noscript, nav, header, footer").Remove()
			text = collapseWhitespace(doc.Find("body").Text())
		}
	}

	if text == "" {
		return nil, errors.New("no extractable text")
	}
	if title == "" {
		title = titleFromFilename(filename)
	}
	return &Document{Title: title, Text: text}, nil
}

func fromPlain(filename string, data []byte, markdown bool) *Document {
	text := strings.TrimSpace(string(data))

	title := ""
	if markdown {
		title = firstHeading(text)
	}
	if title == "" {
		title = titleFromFilename(filename)
	}
	return &Document{Title: title, Text: text}
}

// firstHeading returns the text of a leading markdown heading, if the
// document opens with one.
func firstHeading(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "#"))
		}
		return ""
	}
	return ""
}

func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	base = strings.TrimSpace(base)
	if base == "" {
		return "Untitled document"
	}
	return base
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
