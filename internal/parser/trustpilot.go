package parser

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"

	"github.com/hugaba/api-sentiment-analysis/internal/config"
	"github.com/hugaba/api-sentiment-analysis/internal/types"
)

const ratingPattern = `([1-5])`

var errFieldMissing = errors.New("field missing")

// Trustpilot implements Markup for trustpilot.com pages. Listing and review
// pages go through CSS selectors, search suggestions through XPath, and the
// embedded publication date through a regex on the date block's markup.
type Trustpilot struct {
	cfg    config.MarkupConfig
	css    *CSSParser
	search *XPathParser
	regex  *RegexParser
	logger *slog.Logger
}

// NewTrustpilot builds the parser and compiles its expressions up front.
func NewTrustpilot(cfg *config.MarkupConfig, logger *slog.Logger) (*Trustpilot, error) {
	search, err := NewXPathParser(cfg.SearchResultXPath, logger)
	if err != nil {
		return nil, err
	}
	regex := NewRegexParser(logger)
	if _, err := regex.getOrCompile(cfg.PublishedDatePattern); err != nil {
		return nil, err
	}
	return &Trustpilot{
		cfg:    *cfg,
		css:    NewCSSParser(logger),
		search: search,
		regex:  regex,
		logger: logger.With("component", "trustpilot_markup"),
	}, nil
}

// ListingPage implements Markup.
func (t *Trustpilot) ListingPage(body string) ([]string, bool, error) {
	doc, err := t.css.Document(body)
	if err != nil {
		return nil, false, &types.ParseError{Selector: t.cfg.BusinessTitle, Err: err}
	}
	names := t.css.Texts(doc.Selection, t.cfg.BusinessTitle)
	return names, t.css.Exists(doc.Selection, t.cfg.ListingNext), nil
}

// SearchPage implements Markup. Result headings read "Display Name | domain".
func (t *Trustpilot) SearchPage(body string) ([]types.Suggestion, error) {
	texts, err := t.search.Texts(body)
	if err != nil {
		return nil, &types.ParseError{Selector: t.cfg.SearchResultXPath, Err: err}
	}

	suggestions := make([]types.Suggestion, 0, len(texts))
	for _, text := range texts {
		name, domain, ok := strings.Cut(text, t.cfg.SearchSeparator)
		if !ok {
			t.logger.Debug("search heading without domain", "text", text)
			continue
		}
		suggestions = append(suggestions, types.Suggestion{
			DisplayName: strings.TrimSpace(name),
			Domain:      strings.TrimSpace(domain),
		})
	}
	return suggestions, nil
}

// ReviewPage implements Markup. Missing fields never fail the page: rating
// and date stay absent, title and body default to "".
func (t *Trustpilot) ReviewPage(body string, site types.ResolvedSite) ([]types.ReviewRecord, bool, error) {
	doc, err := t.css.Document(body)
	if err != nil {
		return nil, false, &types.ParseError{Selector: t.cfg.ReviewBlock, Err: err}
	}

	var records []types.ReviewRecord
	doc.Find(t.cfg.ReviewBlock).Each(func(i int, block *goquery.Selection) {
		records = append(records, t.reviewRecord(block, site))
	})

	return records, t.css.Exists(doc.Selection, t.cfg.ReviewNext), nil
}

func (t *Trustpilot) reviewRecord(block *goquery.Selection, site types.ResolvedSite) types.ReviewRecord {
	rec := types.ReviewRecord{Site: site}

	if alt, ok := t.css.FirstAttr(block, t.cfg.ReviewRating, "alt"); ok && alt != "" {
		rec.RatingLabel = alt
		rec.Rating = t.ratingFromLabel(alt)
	} else {
		t.omission(site, "rating", t.cfg.ReviewRating)
	}

	rec.Title, _ = t.css.FirstText(block, t.cfg.ReviewTitle)
	rec.Body, _ = t.css.FirstText(block, t.cfg.ReviewBody)
	rec.PublishedAt = t.publishedAt(block, site)

	return rec
}

// ratingFromLabel reads the star count out of an alt label such as
// "Noté 4 sur 5 étoiles".
func (t *Trustpilot) ratingFromLabel(label string) *int {
	digit, ok, err := t.regex.First(ratingPattern, label)
	if err != nil || !ok {
		return nil
	}
	n, err := strconv.Atoi(digit)
	if err != nil {
		return nil
	}
	return &n
}

func (t *Trustpilot) publishedAt(block *goquery.Selection, site types.ResolvedSite) *time.Time {
	markup, ok := t.css.FirstOuterHTML(block, t.cfg.ReviewDates)
	if !ok {
		t.omission(site, "publishedDate", t.cfg.ReviewDates)
		return nil
	}
	raw, ok, err := t.regex.First(t.cfg.PublishedDatePattern, markup)
	if err != nil || !ok {
		t.omission(site, "publishedDate", t.cfg.PublishedDatePattern)
		return nil
	}
	ts, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		t.logger.Debug("unparseable publication date",
			"site", site,
			"error", &types.ParseError{Field: "publishedDate", Selector: t.cfg.PublishedDatePattern, Err: err},
		)
		return nil
	}
	ts = ts.UTC()
	return &ts
}

func (t *Trustpilot) omission(site types.ResolvedSite, field, selector string) {
	t.logger.Debug("field omitted",
		"site", site,
		"error", &types.ParseError{Field: field, Selector: selector, Err: errFieldMissing},
	)
}
