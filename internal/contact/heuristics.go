// internal/contact/heuristics.go
package contact

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/harvex/leadharvest/pkg/types"
)

// Name and company recognition is heuristic: capitalized-sequence matching
// plus corporate-suffix detection. It stands in for a full NER pass and is
// tuned for recall on contact/team pages.

var (
	namePattern = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z]\.?)?\s+[A-Z][a-z]+)\b`)

	companySuffixPattern = regexp.MustCompile(
		`\b([A-Z][A-Za-z0-9&.\- ]{1,60}?\s(?:Inc|LLC|Ltd|Corp|Corporation|Company|Co|GmbH|Group|Holdings|Partners|Solutions|Technologies|Systems|Labs)\.?)\b`)

	salaryPattern = regexp.MustCompile(
		`(?i)\$[\d,]+(?:\.\d{2})?(?:\s*-\s*\$[\d,]+(?:\.\d{2})?)?(?:\s*(?:per|/)\s*(?:hour|year|month))?`)

	locationPattern = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*,\s*[A-Z]{2}\b`)
)

// nameStopwords are capitalized word pairs that match the name pattern but
// are page chrome, not people.
var nameStopwords = map[string]struct{}{
	"contact us": {}, "about us": {}, "privacy policy": {},
	"terms conditions": {}, "all rights": {}, "follow us": {},
	"learn more": {}, "read more": {}, "sign up": {}, "sign in": {},
	"united states": {}, "new york": {}, "san francisco": {},
	"los angeles": {}, "job title": {}, "full time": {}, "part time": {},
}

var titleCaser = cases.Title(language.English)

// Names extracts probable person names: two or three capitalized words,
// filtered against common page-chrome phrases.
func (e *Extractor) Names(text string) []string {
	set := newStringSet(nil)
	for _, match := range namePattern.FindAllString(text, -1) {
		name := strings.Join(strings.Fields(match), " ")
		if len(name) <= 3 || len(strings.Fields(name)) < 2 {
			continue
		}
		key := strings.ToLower(strings.Map(keepLettersAndSpace, name))
		key = strings.Join(strings.Fields(key), " ")
		if _, chrome := nameStopwords[key]; chrome {
			continue
		}
		set.add(name)
	}
	return set.sorted()
}

// Companies extracts organization names by corporate suffix.
func (e *Extractor) Companies(text string) []string {
	set := newStringSet(nil)
	for _, m := range companySuffixPattern.FindAllStringSubmatch(text, -1) {
		company := strings.Join(strings.Fields(m[1]), " ")
		if len(company) > 2 {
			set.add(titleCaser.String(strings.ToLower(company)))
		}
	}
	return set.sorted()
}

// JobDetails holds job-listing specifics extracted alongside contacts for
// job-type tasks.
type JobDetails struct {
	SalaryRanges []string             `json:"salary_ranges"`
	Locations    []string             `json:"locations"`
	Companies    []string             `json:"companies"`
	Contacts     *types.ContactBundle `json:"contacts"`
}

// ExtractJobDetails extracts salary ranges, locations, and companies from
// a job listing page, plus the full contact bundle.
func (e *Extractor) ExtractJobDetails(htmlContent string) *JobDetails {
	bundle := e.ExtractFromHTML(htmlContent)
	text := stripTags(htmlContent)

	return &JobDetails{
		SalaryRanges: newStringSet(salaryPattern.FindAllString(text, -1)).sorted(),
		Locations:    newStringSet(locationPattern.FindAllString(text, -1)).sorted(),
		Companies:    e.Companies(text),
		Contacts:     bundle,
	}
}

// stripTags crudely removes markup so the regex passes see page text; used
// only when a goquery parse is not already at hand.
var tagPattern = regexp.MustCompile(`<[^>]*>`)

func stripTags(s string) string {
	return tagPattern.ReplaceAllString(s, " ")
}

func keepLettersAndSpace(r rune) rune {
	if unicode.IsLetter(r) || r == ' ' {
		return r
	}
	return -1
}
