// internal/extract/extractor.go

// Package extract applies adapter selector rules against parsed page
// content to produce structured field maps.
package extract

import (
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"

	"github.com/harvex/leadharvest/internal/monitoring"
	"github.com/harvex/leadharvest/internal/utils"
	"github.com/harvex/leadharvest/pkg/types"
)

var logger = utils.NewComponentLogger("extractor")

// Document is a parsed HTML page ready for selector resolution. It carries
// both a goquery view (CSS selectors) and the raw node tree (XPath).
type Document struct {
	doc     *goquery.Document
	root    *html.Node
	baseURL *url.URL
}

// Parse parses HTML content. pageURL is used to absolutize extracted links;
// it may be empty.
func Parse(content, pageURL string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeMalformedDocument, "failed to parse HTML")
	}

	var root *html.Node
	if len(doc.Selection.Nodes) > 0 {
		root = doc.Selection.Nodes[0]
	}
	if root == nil {
		return nil, utils.NewError(utils.ErrCodeMalformedDocument, "document has no root node")
	}

	var base *url.URL
	if pageURL != "" {
		base, _ = url.Parse(pageURL)
	}

	return &Document{doc: doc, root: root, baseURL: base}, nil
}

// Extractor resolves selector rules against documents.
type Extractor struct {
	metrics *monitoring.Metrics
}

// New creates an extractor. metrics may be nil.
func New(metrics *monitoring.Metrics) *Extractor {
	return &Extractor{metrics: metrics}
}

// Extract resolves each selector rule and returns the field map. Fields
// whose selectors produce no non-empty values are omitted entirely; a key
// is never present with an empty value. A failure in one field's selector
// does not abort the others.
func (e *Extractor) Extract(doc *Document, selectors map[string]types.SelectorRule) map[string]interface{} {
	fields := make(map[string]interface{}, len(selectors))

	// Deterministic order keeps log output stable.
	names := make([]string, 0, len(selectors))
	for name := range selectors {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rule := selectors[name]
		values, err := e.resolve(doc, rule)
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"field":    name,
				"selector": rule.Selector,
			}).Warnf("selector failed: %v", err)
			if e.metrics != nil {
				e.metrics.SelectorFailures.Inc()
			}
			continue
		}
		if len(values) == 0 {
			continue
		}
		if rule.Multiple {
			fields[name] = values
		} else {
			fields[name] = values[0]
		}
		if e.metrics != nil {
			e.metrics.FieldsExtracted.Inc()
		}
	}

	return fields
}

// Run applies a full adapter to a document: selector fields plus the
// optional link and text passes.
func (e *Extractor) Run(doc *Document, a *types.Adapter, pageURL string) *types.ExtractionResult {
	result := &types.ExtractionResult{
		URL:    pageURL,
		Fields: e.Extract(doc, a.Selectors),
	}
	if a.ExtractLinks {
		result.Links = e.Links(doc)
	}
	if a.ExtractText {
		result.TextContent = e.Text(doc)
	}
	return result
}

// resolve returns the non-empty values a rule selects. Selectors starting
// with "//" or ".//" are XPath; everything else is CSS.
func (e *Extractor) resolve(doc *Document, rule types.SelectorRule) ([]string, error) {
	if isXPath(rule.Selector) {
		return e.resolveXPath(doc, rule)
	}
	return e.resolveCSS(doc, rule), nil
}

func isXPath(selector string) bool {
	return strings.HasPrefix(selector, "//") || strings.HasPrefix(selector, ".//")
}

func (e *Extractor) resolveCSS(doc *Document, rule types.SelectorRule) []string {
	var values []string
	doc.doc.Find(rule.Selector).Each(func(_ int, s *goquery.Selection) {
		var value string
		if rule.Attribute == "" || rule.Attribute == "text" {
			value = strings.TrimSpace(s.Text())
		} else {
			attr, _ := s.Attr(rule.Attribute)
			value = strings.TrimSpace(attr)
		}
		if value != "" {
			values = append(values, value)
		}
	})
	return values
}

func (e *Extractor) resolveXPath(doc *Document, rule types.SelectorRule) ([]string, error) {
	expr, err := xpath.Compile(rule.Selector)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeSelectorError, "malformed XPath expression")
	}

	nodes := htmlquery.QuerySelectorAll(doc.root, expr)
	var values []string
	for _, node := range nodes {
		var value string
		if rule.Attribute == "" || rule.Attribute == "text" {
			value = strings.TrimSpace(htmlquery.InnerText(node))
		} else {
			value = strings.TrimSpace(htmlquery.SelectAttr(node, rule.Attribute))
		}
		if value != "" {
			values = append(values, value)
		}
	}
	return values, nil
}

// Links collects every anchor's href, resolved to an absolute URL against
// the page's base URL and deduplicated.
func (e *Extractor) Links(doc *Document) []string {
	seen := make(map[string]struct{})
	var links []string

	doc.doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		resolved := href
		if doc.baseURL != nil {
			if ref, err := url.Parse(href); err == nil {
				resolved = doc.baseURL.ResolveReference(ref).String()
			}
		}
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		links = append(links, resolved)
	})

	sort.Strings(links)
	return links
}

// Text produces a cleaned whole-page text: script, style, and chrome
// elements stripped, whitespace collapsed.
func (e *Extractor) Text(doc *Document) string {
	clone := doc.doc.Clone()
	clone.Find("script, style, noscript, nav, header, footer").Remove()

	text := clone.Find("body").Text()
	if strings.TrimSpace(text) == "" {
		text = clone.Text()
	}

	return strings.TrimSpace(collapseWhitespace(text))
}

// collapseWhitespace reduces runs of whitespace to single spaces while
// preserving line breaks between blocks.
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
