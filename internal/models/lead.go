package models

import (
	"fmt"
	"strconv"
)

// LeadStage marks how far a lead has progressed through the pipeline
type LeadStage string

const (
	StageRaw      LeadStage = "raw"
	StageEnriched LeadStage = "enriched"
	StageScored   LeadStage = "scored"
	StageFinal    LeadStage = "final"
)

// SocialLinks holds discovered social profile URLs
type SocialLinks struct {
	LinkedIn  string `json:"linkedin,omitempty"`
	Facebook  string `json:"facebook,omitempty"`
	Instagram string `json:"instagram,omitempty"`
	Twitter   string `json:"twitter,omitempty"`
	YouTube   string `json:"youtube,omitempty"`
	TikTok    string `json:"tiktok,omitempty"`
}

// CompanyIntel holds free-form company intelligence gathered during
// enrichment.
type CompanyIntel struct {
	EmployeeCount string `json:"employee_count,omitempty"`
	FoundedYear   string `json:"founded_year,omitempty"`
	Description   string `json:"description,omitempty"`
	RecentNews    string `json:"recent_news,omitempty"`
}

// LeadAnalysis is the LLM-derived qualitative read on a lead
type LeadAnalysis struct {
	FitScore             int      `json:"fit_score,omitempty"`
	PainPoints           []string `json:"pain_points,omitempty"`
	PersonalizationHooks []string `json:"personalization_hooks,omitempty"`
}

// LeadScore is the five-component quality score. Each component is
// bounded to [0,25]; Total is the component sum rescaled to [0,100].
type LeadScore struct {
	Rating       float64 `json:"rating_score"`
	Reviews      float64 `json:"review_score"`
	Completeness float64 `json:"completeness_score"`
	Social       float64 `json:"social_score"`
	Signals      float64 `json:"signals_score"`
	Total        float64 `json:"total"`
	Tier         string  `json:"tier"`
}

// OutreachMessages holds the generated per-channel outreach copy
type OutreachMessages struct {
	EmailSubject    string `json:"email_subject,omitempty"`
	EmailBody       string `json:"email_body,omitempty"`
	LinkedInMessage string `json:"linkedin_message,omitempty"`
	WhatsAppMessage string `json:"whatsapp_message,omitempty"`
	ColdCallScript  string `json:"cold_call_script,omitempty"`
}

// Lead is one business record evolving through the pipeline stages.
// Scrape populates the listing fields, enrichment fills contacts and
// intelligence, scoring attaches Score, outreach attaches Outreach.
// Stage records the furthest stage reached.
type Lead struct {
	ID      string    `json:"id,omitempty"`
	Stage   LeadStage `json:"stage"`
	PlaceID string    `json:"place_id"`

	// Listing fields from the scrape stage.
	Name            string   `json:"name"`
	Phone           string   `json:"phone,omitempty"`
	Website         string   `json:"website,omitempty"`
	Address         string   `json:"address,omitempty"`
	Category        string   `json:"category,omitempty"`
	Rating          *float64 `json:"rating,omitempty"`
	ReviewCount     int      `json:"review_count"`
	MapsURL         string   `json:"maps_url,omitempty"`
	PriceLevel      string   `json:"price_level,omitempty"`
	PhotosCount     int      `json:"photos_count,omitempty"`
	HasHours        bool     `json:"has_hours,omitempty"`
	IsClaimed       bool     `json:"is_claimed,omitempty"`
	YearsInBusiness *int     `json:"years_in_business,omitempty"`
	SourceQuery     string   `json:"source_query,omitempty"`

	// Enrichment fields.
	Email            string        `json:"email,omitempty"`
	WhatsApp         string        `json:"whatsapp,omitempty"`
	OwnerName        string        `json:"owner_name,omitempty"`
	Emails           []string      `json:"emails,omitempty"`
	Social           SocialLinks   `json:"social,omitempty"`
	TeamMembers      []string      `json:"team_members,omitempty"`
	Intelligence     *CompanyIntel `json:"intelligence,omitempty"`
	Analysis         *LeadAnalysis `json:"analysis,omitempty"`
	WebsiteReachable bool          `json:"website_reachable,omitempty"`
	WebsiteHTTPS     bool          `json:"website_https,omitempty"`
	HasContactForm   bool          `json:"has_contact_form,omitempty"`

	Score    *LeadScore        `json:"score,omitempty"`
	Outreach *OutreachMessages `json:"outreach,omitempty"`
}

// RatingValue returns the rating or 0 when the listing has none
func (l *Lead) RatingValue() float64 {
	if l.Rating == nil {
		return 0
	}
	return *l.Rating
}

// TotalScore returns the normalized score, 0 when unscored
func (l *Lead) TotalScore() float64 {
	if l.Score == nil {
		return 0
	}
	return l.Score.Total
}

// Tier returns the score tier, "" when unscored
func (l *Lead) Tier() string {
	if l.Score == nil {
		return ""
	}
	return l.Score.Tier
}

// ExportColumns is the column order for tabular export. Kept stable:
// downstream spreadsheets key off these headers.
var ExportColumns = []string{
	"name", "phone", "email", "whatsapp", "website", "address",
	"category", "rating", "review_count", "score", "tier",
	"owner_name", "linkedin", "facebook", "instagram", "maps_url",
	"place_id", "price_level", "photos_count", "is_claimed",
	"years_in_business", "email_subject", "email_body",
	"whatsapp_message", "linkedin_message", "cold_call_script",
}

// ExportRow flattens a lead to CSV cell values in ExportColumns order
func (l *Lead) ExportRow() []string {
	rating := ""
	if l.Rating != nil {
		rating = strconv.FormatFloat(*l.Rating, 'f', -1, 64)
	}
	years := ""
	if l.YearsInBusiness != nil {
		years = strconv.Itoa(*l.YearsInBusiness)
	}
	var outreach OutreachMessages
	if l.Outreach != nil {
		outreach = *l.Outreach
	}
	return []string{
		l.Name,
		l.Phone,
		l.Email,
		l.WhatsApp,
		l.Website,
		l.Address,
		l.Category,
		rating,
		strconv.Itoa(l.ReviewCount),
		fmt.Sprintf("%.1f", l.TotalScore()),
		l.Tier(),
		l.OwnerName,
		l.Social.LinkedIn,
		l.Social.Facebook,
		l.Social.Instagram,
		l.MapsURL,
		l.PlaceID,
		l.PriceLevel,
		strconv.Itoa(l.PhotosCount),
		strconv.FormatBool(l.IsClaimed),
		years,
		outreach.EmailSubject,
		outreach.EmailBody,
		outreach.WhatsAppMessage,
		outreach.LinkedInMessage,
		outreach.ColdCallScript,
	}
}

// ExportObject is the structured export shape, mirroring ExportColumns
type ExportObject struct {
	Name            string   `json:"name"`
	Phone           string   `json:"phone,omitempty"`
	Email           string   `json:"email,omitempty"`
	WhatsApp        string   `json:"whatsapp,omitempty"`
	Website         string   `json:"website,omitempty"`
	Address         string   `json:"address,omitempty"`
	Category        string   `json:"category,omitempty"`
	Rating          *float64 `json:"rating,omitempty"`
	ReviewCount     int      `json:"review_count"`
	Score           float64  `json:"score"`
	Tier            string   `json:"tier,omitempty"`
	OwnerName       string   `json:"owner_name,omitempty"`
	LinkedIn        string   `json:"linkedin,omitempty"`
	Facebook        string   `json:"facebook,omitempty"`
	Instagram       string   `json:"instagram,omitempty"`
	MapsURL         string   `json:"maps_url,omitempty"`
	PlaceID         string   `json:"place_id"`
	PriceLevel      string   `json:"price_level,omitempty"`
	PhotosCount     int      `json:"photos_count,omitempty"`
	IsClaimed       bool     `json:"is_claimed,omitempty"`
	YearsInBusiness *int     `json:"years_in_business,omitempty"`
	EmailSubject    string   `json:"email_subject,omitempty"`
	EmailBody       string   `json:"email_body,omitempty"`
	WhatsAppMessage string   `json:"whatsapp_message,omitempty"`
	LinkedInMessage string   `json:"linkedin_message,omitempty"`
	ColdCallScript  string   `json:"cold_call_script,omitempty"`
}

// ToExportObject converts a lead to its structured export shape
func (l *Lead) ToExportObject() ExportObject {
	var outreach OutreachMessages
	if l.Outreach != nil {
		outreach = *l.Outreach
	}
	return ExportObject{
		Name:            l.Name,
		Phone:           l.Phone,
		Email:           l.Email,
		WhatsApp:        l.WhatsApp,
		Website:         l.Website,
		Address:         l.Address,
		Category:        l.Category,
		Rating:          l.Rating,
		ReviewCount:     l.ReviewCount,
		Score:           l.TotalScore(),
		Tier:            l.Tier(),
		OwnerName:       l.OwnerName,
		LinkedIn:        l.Social.LinkedIn,
		Facebook:        l.Social.Facebook,
		Instagram:       l.Social.Instagram,
		MapsURL:         l.MapsURL,
		PlaceID:         l.PlaceID,
		PriceLevel:      l.PriceLevel,
		PhotosCount:     l.PhotosCount,
		IsClaimed:       l.IsClaimed,
		YearsInBusiness: l.YearsInBusiness,
		EmailSubject:    outreach.EmailSubject,
		EmailBody:       outreach.EmailBody,
		WhatsAppMessage: outreach.WhatsAppMessage,
		LinkedInMessage: outreach.LinkedInMessage,
		ColdCallScript:  outreach.ColdCallScript,
	}
}
