package parser

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CSSParser extracts values using CSS selectors via goquery.
type CSSParser struct {
	logger *slog.Logger
}

// NewCSSParser creates a new CSS selector parser.
func NewCSSParser(logger *slog.Logger) *CSSParser {
	return &CSSParser{
		logger: logger.With("component", "css_parser"),
	}
}

// Document parses an HTML body.
func (p *CSSParser) Document(body string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(body))
}

// Texts returns the trimmed, non-empty text of every match in document order.
func (p *CSSParser) Texts(sel *goquery.Selection, selector string) []string {
	var values []string
	sel.Find(selector).Each(func(i int, s *goquery.Selection) {
		if val := strings.TrimSpace(s.Text()); val != "" {
			values = append(values, val)
		}
	})
	return values
}

// FirstText returns the trimmed text of the first match, if any.
func (p *CSSParser) FirstText(sel *goquery.Selection, selector string) (string, bool) {
	s := sel.Find(selector).First()
	if s.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(s.Text()), true
}

// FirstAttr returns an attribute of the first match, if present.
func (p *CSSParser) FirstAttr(sel *goquery.Selection, selector, attr string) (string, bool) {
	s := sel.Find(selector).First()
	if s.Length() == 0 {
		return "", false
	}
	return s.Attr(attr)
}

// FirstOuterHTML renders the first match including its own tag.
func (p *CSSParser) FirstOuterHTML(sel *goquery.Selection, selector string) (string, bool) {
	s := sel.Find(selector).First()
	if s.Length() == 0 {
		return "", false
	}
	out, err := goquery.OuterHtml(s)
	if err != nil {
		p.logger.Debug("render outer html failed", "selector", selector, "error", err)
		return "", false
	}
	return out, true
}

// Exists reports whether selector matches anything under sel.
func (p *CSSParser) Exists(sel *goquery.Selection, selector string) bool {
	return sel.Find(selector).Length() > 0
}
