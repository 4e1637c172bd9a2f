// internal/contact/extractor_test.go
package contact

import (
	"testing"

	"github.com/harvex/leadharvest/pkg/types"
)

func TestEmailsLowercasedAndDeduplicated(t *testing.T) {
	e := New()
	text := "Reach us at Jane@Acme.com or jane@acme.com, or sales@acme.com."

	emails := e.Emails(text)
	if len(emails) != 2 {
		t.Fatalf("Expected 2 unique emails, got %d: %v", len(emails), emails)
	}
	if emails[0] != "jane@acme.com" || emails[1] != "sales@acme.com" {
		t.Errorf("Unexpected emails: %v", emails)
	}
}

func TestEmailsFilterPlaceholders(t *testing.T) {
	e := New()
	text := "Contact admin@example.com or real@acme.com or demo@test.org."

	emails := e.Emails(text)
	if len(emails) != 1 {
		t.Fatalf("Expected placeholders filtered, got %v", emails)
	}
	if emails[0] != "real@acme.com" {
		t.Errorf("Expected real@acme.com, got %v", emails)
	}
}

func TestPhonesCanonicalized(t *testing.T) {
	e := New()
	text := "Call 415.555.0100, (415) 555-0100 or 415-555-0199."

	phones := e.Phones(text)
	if len(phones) != 2 {
		t.Fatalf("Expected variants to collapse to 2 numbers, got %v", phones)
	}
	if phones[0] != "(415) 555-0100" || phones[1] != "(415) 555-0199" {
		t.Errorf("Unexpected canonical forms: %v", phones)
	}
}

func TestPhonesCountryCodePreserved(t *testing.T) {
	e := New()
	phones := e.Phones("Main line: +1 415 555 0100")

	if len(phones) != 1 {
		t.Fatalf("Expected 1 phone, got %v", phones)
	}
	if phones[0] != "+1 (415) 555-0100" {
		t.Errorf("Expected country code kept, got %q", phones[0])
	}
}

func TestPhonesShortNumbersDiscarded(t *testing.T) {
	e := New()
	if phones := e.Phones("Ext. 555-0100"); len(phones) != 0 {
		t.Errorf("Numbers with fewer than 10 digits should be discarded, got %v", phones)
	}
}

func TestSocialLinks(t *testing.T) {
	e := New()
	text := `Find me on linkedin.com/in/jane-doe and twitter.com/janedoe.
Share: twitter.com/share twitter.com/intent`

	socials := e.SocialLinks(text)
	if len(socials["linkedin"]) != 1 || socials["linkedin"][0] != "linkedin.com/in/jane-doe" {
		t.Errorf("Unexpected linkedin links: %v", socials["linkedin"])
	}
	if len(socials["twitter"]) != 1 || socials["twitter"][0] != "twitter.com/janedoe" {
		t.Errorf("Reserved twitter paths should be filtered: %v", socials["twitter"])
	}
}

func TestExtractFromHTMLMergesHighSignalRegions(t *testing.T) {
	e := New()
	html := `<html><body>
<p>Welcome to Acme Corp.</p>
<div class="contact">
  <p>Email: support@acme.com</p>
  <p>Phone: (415) 555-0100</p>
</div>
<footer>
  <a href="https://linkedin.com/in/jane-doe">LinkedIn</a>
  <p>ops@acme.com</p>
</footer>
</body></html>`

	bundle := e.ExtractFromHTML(html)
	if len(bundle.Emails) != 2 {
		t.Fatalf("Expected 2 emails from page and regions, got %v", bundle.Emails)
	}
	if len(bundle.Phones) != 1 || bundle.Phones[0] != "(415) 555-0100" {
		t.Errorf("Unexpected phones: %v", bundle.Phones)
	}
	if len(bundle.SocialLinks["linkedin"]) != 1 {
		t.Errorf("Expected linkedin profile from href, got %v", bundle.SocialLinks)
	}
	if bundle.LeadScore == 0 {
		t.Error("Bundle with contacts should score above zero")
	}
}

func TestExtractFromHTMLFallsBackOnPlainText(t *testing.T) {
	e := New()
	bundle := e.ExtractFromHTML("plain text with jane@acme.com inside")

	if len(bundle.Emails) != 1 || bundle.Emails[0] != "jane@acme.com" {
		t.Fatalf("Expected email from plain text, got %v", bundle.Emails)
	}
}

func TestScoreWeights(t *testing.T) {
	tests := []struct {
		name   string
		bundle *types.ContactBundle
		want   int
	}{
		{"nil bundle", nil, 0},
		{"empty bundle", &types.ContactBundle{}, 0},
		{
			"email only",
			&types.ContactBundle{Emails: []string{"a@acme.com"}},
			30,
		},
		{
			"email and phone get multi bonus",
			&types.ContactBundle{
				Emails: []string{"a@acme.com"},
				Phones: []string{"(415) 555-0100"},
			},
			65,
		},
		{
			"email, phone and linkedin",
			&types.ContactBundle{
				Emails:      []string{"a@acme.com"},
				Phones:      []string{"(415) 555-0100"},
				SocialLinks: map[string][]string{"linkedin": {"linkedin.com/in/a"}},
			},
			80,
		},
		{
			"everything caps at 100",
			&types.ContactBundle{
				Emails: []string{"a@acme.com"},
				Phones: []string{"(415) 555-0100"},
				SocialLinks: map[string][]string{
					"linkedin": {"linkedin.com/in/a"},
					"twitter":  {"twitter.com/a"},
				},
				Names:     []string{"Jane Doe"},
				Companies: []string{"Acme Corp"},
			},
			100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.bundle); got != tt.want {
				t.Errorf("Score() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNamesHeuristic(t *testing.T) {
	e := New()
	text := "Our CEO Jane Doe and CTO John Smith founded the company. Contact Us today."

	names := e.Names(text)
	found := map[string]bool{}
	for _, n := range names {
		found[n] = true
	}
	if !found["Jane Doe"] || !found["John Smith"] {
		t.Fatalf("Expected Jane Doe and John Smith, got %v", names)
	}
	if found["Contact Us"] {
		t.Error("Page chrome phrases should be filtered from names")
	}
}

func TestExtractJobDetails(t *testing.T) {
	e := New()
	html := `<html><body>
<h1>Senior Engineer</h1>
<p>Salary: $120,000 - $150,000 per year</p>
<p>Location: San Francisco, CA</p>
<p>Apply: recruiting@acme.com</p>
</body></html>`

	details := e.ExtractJobDetails(html)
	if len(details.SalaryRanges) == 0 {
		t.Error("Expected a salary range")
	}
	if len(details.Locations) == 0 {
		t.Error("Expected a location")
	}
	if details.Contacts == nil || len(details.Contacts.Emails) != 1 {
		t.Errorf("Expected recruiting email, got %+v", details.Contacts)
	}
}
