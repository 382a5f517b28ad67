package score

import (
	"strings"

	"github.com/ternarybob/leadforge/internal/models"
)

// Tier thresholds on the normalized 0-100 total.
const (
	HotThreshold  = 75
	WarmThreshold = 50
)

// Scorer computes the five-component lead quality score. Each
// component is bounded to [0,25]; the component sum (max 125) is
// rescaled by 100/125 to the exposed 0-100 total. The bucket tables
// are fixed: existing stored scores depend on them.
type Scorer struct{}

// NewScorer creates a scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score attaches a LeadScore to the lead and advances its stage
func (s *Scorer) Score(lead *models.Lead) *models.Lead {
	score := &models.LeadScore{
		Rating:       ratingScore(lead),
		Reviews:      reviewScore(lead.ReviewCount),
		Completeness: completenessScore(lead),
		Social:       socialScore(lead.Social),
		Signals:      signalsScore(lead),
	}

	sum := score.Rating + score.Reviews + score.Completeness + score.Social + score.Signals
	total := sum * 100 / 125
	if total > 100 {
		total = 100
	}
	score.Total = total
	score.Tier = TierFor(total)

	lead.Score = score
	lead.Stage = models.StageScored
	return lead
}

// TierFor maps a normalized total to its tier bucket
func TierFor(total float64) string {
	switch {
	case total >= HotThreshold:
		return "hot"
	case total >= WarmThreshold:
		return "warm"
	default:
		return "cold"
	}
}

func ratingScore(lead *models.Lead) float64 {
	if lead.Rating == nil {
		return 0
	}
	rating := *lead.Rating
	switch {
	case rating >= 4.5:
		return 25
	case rating >= 4.0:
		return 20
	case rating >= 3.5:
		return 15
	case rating >= 3.0:
		return 10
	default:
		return 5
	}
}

func reviewScore(count int) float64 {
	switch {
	case count >= 100:
		return 25
	case count >= 50:
		return 20
	case count >= 20:
		return 15
	case count >= 5:
		return 10
	case count >= 1:
		return 5
	default:
		return 0
	}
}

// completenessScore rewards contactability: phone 5, website 5,
// email 8, owner name 7.
func completenessScore(lead *models.Lead) float64 {
	var score float64
	if lead.Phone != "" {
		score += 5
	}
	if lead.Website != "" {
		score += 5
	}
	if lead.Email != "" || len(lead.Emails) > 0 {
		score += 8
	}
	if lead.OwnerName != "" {
		score += 7
	}
	return capComponent(score)
}

// socialScore weights platforms by outreach value, LinkedIn highest
func socialScore(social models.SocialLinks) float64 {
	var score float64
	if social.LinkedIn != "" {
		score += 8
	}
	if social.Instagram != "" {
		score += 6
	}
	if social.Facebook != "" {
		score += 5
	}
	if social.Twitter != "" {
		score += 3
	}
	if social.YouTube != "" {
		score += 2
	}
	if social.TikTok != "" {
		score += 1
	}
	return capComponent(score)
}

func signalsScore(lead *models.Lead) float64 {
	var score float64

	switch {
	case lead.PhotosCount >= 20:
		score += 5
	case lead.PhotosCount >= 10:
		score += 3
	case lead.PhotosCount >= 1:
		score += 1
	}

	if lead.HasHours {
		score += 3
	}
	if lead.PriceLevel != "" {
		score += 2
	}
	if lead.IsClaimed {
		score += 5
	}
	if lead.WebsiteReachable {
		score += 2
	}
	if lead.HasContactForm {
		score += 1
	}
	if strings.HasPrefix(lead.Website, "https") {
		score += 2
	}
	if len(lead.TeamMembers) > 0 {
		score += 5
	}
	return capComponent(score)
}

func capComponent(score float64) float64 {
	if score > 25 {
		return 25
	}
	return score
}
