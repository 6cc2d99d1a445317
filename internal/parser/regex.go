package parser

import (
	"fmt"
	"log/slog"
	"regexp"
	"sync"
)

// RegexParser extracts values using cached regular expressions.
type RegexParser struct {
	logger *slog.Logger
	mu     sync.Mutex
	cache  map[string]*regexp.Regexp
}

// NewRegexParser creates a new regex parser.
func NewRegexParser(logger *slog.Logger) *RegexParser {
	return &RegexParser{
		logger: logger.With("component", "regex_parser"),
		cache:  make(map[string]*regexp.Regexp),
	}
}

// First returns the first capture group of the first match, or the whole
// match when the pattern has no groups.
func (p *RegexParser) First(pattern, body string) (string, bool, error) {
	re, err := p.getOrCompile(pattern)
	if err != nil {
		return "", false, err
	}
	match := re.FindStringSubmatch(body)
	if match == nil {
		return "", false, nil
	}
	if len(match) > 1 {
		return match[1], true, nil
	}
	return match[0], true, nil
}

// getOrCompile returns a cached compiled regex or compiles and caches a new one.
func (p *RegexParser) getOrCompile(pattern string) (*regexp.Regexp, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if re, ok := p.cache[pattern]; ok {
		return re, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
	}

	p.cache[pattern] = re
	return re, nil
}
