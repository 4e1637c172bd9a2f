// internal/contact/score.go
package contact

import "github.com/harvex/leadharvest/pkg/types"

// Scoring weights for the additive lead-quality model.
const (
	scoreEmail      = 30
	scorePhone      = 20
	scoreLinkedIn   = 15
	scoreTwitter    = 10
	scoreNames      = 10
	scoreCompanies  = 10
	scoreMultiBonus = 15 // two or more distinct contact-method categories
	scoreMax        = 100
	multiBonusFloor = 2
)

// Score computes the 0-100 lead-quality score for a contact bundle:
// additive points per contact channel found, a bonus when at least two
// distinct contact-method categories are present, capped at 100.
func Score(b *types.ContactBundle) int {
	if b == nil {
		return 0
	}

	score := 0
	methods := 0

	if len(b.Emails) > 0 {
		score += scoreEmail
		methods++
	}
	if len(b.Phones) > 0 {
		score += scorePhone
		methods++
	}
	if len(b.SocialLinks["linkedin"]) > 0 {
		score += scoreLinkedIn
		methods++
	}
	if len(b.SocialLinks["twitter"]) > 0 {
		score += scoreTwitter
		methods++
	}
	if len(b.Names) > 0 {
		score += scoreNames
	}
	if len(b.Companies) > 0 {
		score += scoreCompanies
	}

	if methods >= multiBonusFloor {
		score += scoreMultiBonus
	}

	if score > scoreMax {
		return scoreMax
	}
	return score
}
