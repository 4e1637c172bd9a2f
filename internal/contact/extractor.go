// internal/contact/extractor.go

// Package contact runs pattern-based and heuristic extraction of contact
// information over text and HTML, with deduplication and lead-quality
// scoring.
package contact

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/harvex/leadharvest/internal/utils"
	"github.com/harvex/leadharvest/pkg/types"
)

var logger = utils.NewComponentLogger("contact-extractor")

var (
	emailPattern    = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phonePattern    = regexp.MustCompile(`(\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	linkedinPattern = regexp.MustCompile(`linkedin\.com/in/([a-zA-Z0-9-]+)`)
	twitterPattern  = regexp.MustCompile(`twitter\.com/([a-zA-Z0-9_]+)`)
	digitsPattern   = regexp.MustCompile(`\d`)
)

// placeholderDomains are excluded from email results.
var placeholderDomains = []string{"@example.", "@test.", "@placeholder."}

// highSignalSelectors mark page regions that concentrate contact
// information; they are re-scanned during HTML extraction to boost recall.
var highSignalSelectors = []string{
	".contact", ".contact-info", ".contact-us",
	".team", ".about-us", ".staff",
	"footer", ".footer",
}

// Extractor extracts emails, phones, social profiles, and (heuristically)
// names and companies from page content.
type Extractor struct{}

// New creates a contact extractor.
func New() *Extractor {
	return &Extractor{}
}

// ExtractContacts runs all extraction passes over plain text and returns a
// scored, deduplicated bundle.
func (e *Extractor) ExtractContacts(text string) *types.ContactBundle {
	bundle := &types.ContactBundle{
		Emails:      e.Emails(text),
		Phones:      e.Phones(text),
		SocialLinks: e.SocialLinks(text),
		Names:       e.Names(text),
		Companies:   e.Companies(text),
	}
	bundle.LeadScore = Score(bundle)
	return bundle
}

// ExtractFromHTML extracts contacts from HTML content. Beyond the
// whole-page text pass, it re-scans high-signal regions (contact sections,
// team pages, footers) and merges their matches into the same sets.
func (e *Extractor) ExtractFromHTML(htmlContent string) *types.ContactBundle {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		logger.Warnf("failed to parse HTML for contact extraction: %v", err)
		return e.ExtractContacts(htmlContent)
	}

	pageText := doc.Text()
	emails := newStringSet(e.Emails(pageText))
	phones := newStringSet(e.Phones(pageText))

	for _, selector := range highSignalSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			sectionText := s.Text()
			emails.addAll(e.Emails(sectionText))
			phones.addAll(e.Phones(sectionText))
		})
	}

	// Social handles often live in href attributes rather than text.
	socialSource := pageText
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			socialSource += "\n" + href
		}
	})

	bundle := &types.ContactBundle{
		Emails:      emails.sorted(),
		Phones:      phones.sorted(),
		SocialLinks: e.SocialLinks(socialSource),
		Names:       e.Names(pageText),
		Companies:   e.Companies(pageText),
	}
	bundle.LeadScore = Score(bundle)
	return bundle
}

// Emails extracts email addresses, lowercased and with obvious
// placeholders filtered out.
func (e *Extractor) Emails(text string) []string {
	set := newStringSet(nil)
	for _, match := range emailPattern.FindAllString(text, -1) {
		email := strings.ToLower(strings.TrimSpace(match))
		if isPlaceholderEmail(email) {
			continue
		}
		set.add(email)
	}
	return set.sorted()
}

func isPlaceholderEmail(email string) bool {
	for _, domain := range placeholderDomains {
		if strings.Contains(email, domain) {
			return true
		}
	}
	return false
}

// Phones extracts North-American-style phone numbers, canonicalized to
// "(NNN) NNN-NNNN" with any captured leading country code preserved.
// Matches with fewer than 10 digits are discarded.
func (e *Extractor) Phones(text string) []string {
	set := newStringSet(nil)
	for _, match := range phonePattern.FindAllString(text, -1) {
		if formatted, ok := formatPhone(match); ok {
			set.add(formatted)
		}
	}
	return set.sorted()
}

// formatPhone canonicalizes a raw phone match. Deduplication happens on
// the canonical form, so "415.555.0100" and "(415) 555-0100" collapse.
func formatPhone(raw string) (string, bool) {
	digits := digitsPattern.FindAllString(raw, -1)
	if len(digits) < 10 {
		return "", false
	}

	all := strings.Join(digits, "")
	countryCode := ""
	if len(all) == 11 && all[0] == '1' {
		countryCode = "+1 "
		all = all[1:]
	} else if len(all) != 10 {
		return "", false
	}

	return countryCode + "(" + all[0:3] + ") " + all[3:6] + "-" + all[6:10], true
}

// SocialLinks extracts LinkedIn and Twitter profile references, normalized
// to canonical "platform.com/..." strings and grouped by platform.
func (e *Extractor) SocialLinks(text string) map[string][]string {
	linkedin := newStringSet(nil)
	for _, m := range linkedinPattern.FindAllStringSubmatch(text, -1) {
		linkedin.add("linkedin.com/in/" + m[1])
	}

	twitter := newStringSet(nil)
	for _, m := range twitterPattern.FindAllStringSubmatch(text, -1) {
		if !isTwitterReservedPath(m[1]) {
			twitter.add("twitter.com/" + m[1])
		}
	}

	return map[string][]string{
		"linkedin": linkedin.sorted(),
		"twitter":  twitter.sorted(),
	}
}

// isTwitterReservedPath filters twitter.com paths that are site chrome
// rather than profiles.
func isTwitterReservedPath(handle string) bool {
	switch strings.ToLower(handle) {
	case "share", "intent", "home", "search", "hashtag", "i":
		return true
	}
	return false
}

// stringSet is an insertion-deduplicating set with sorted output.
type stringSet map[string]struct{}

func newStringSet(initial []string) stringSet {
	s := make(stringSet)
	s.addAll(initial)
	return s
}

func (s stringSet) add(v string) { s[v] = struct{}{} }

func (s stringSet) addAll(values []string) {
	for _, v := range values {
		s.add(v)
	}
}

func (s stringSet) sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
