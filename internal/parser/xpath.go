package parser

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
)

// XPathParser extracts values using a precompiled XPath expression.
type XPathParser struct {
	expr   *xpath.Expr
	logger *slog.Logger
}

// NewXPathParser compiles expr.
func NewXPathParser(expr string, logger *slog.Logger) (*XPathParser, error) {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile xpath %q: %w", expr, err)
	}
	return &XPathParser{
		expr:   compiled,
		logger: logger.With("component", "xpath_parser"),
	}, nil
}

// Texts returns the trimmed, non-empty inner text of every matching node.
func (p *XPathParser) Texts(body string) ([]string, error) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, err
	}

	var values []string
	for _, node := range htmlquery.QuerySelectorAll(doc, p.expr) {
		if val := strings.TrimSpace(htmlquery.InnerText(node)); val != "" {
			values = append(values, val)
		}
	}
	return values, nil
}
