package outreach

import (
	"fmt"
	"strings"

	"github.com/ternarybob/leadforge/internal/models"
)

const outreachSystemPrompt = `You are an expert B2B outreach copywriter. You write short, specific, non-generic first-touch messages that reference concrete details about the recipient's business. Respond with a single JSON object and nothing else, using exactly these keys: "email_subject", "email_body", "linkedin_message", "whatsapp_message", "cold_call_script".`

const researchSystemPrompt = `You are a B2B sales researcher. Given a business, produce a concise research brief. Respond with a single JSON object and nothing else, using exactly these keys: "summary", "estimated_size", "likely_decision_maker", "pain_points", "conversation_starters". "pain_points" and "conversation_starters" are arrays of short strings.`

// buildOutreachPrompt assembles the lead facts the copywriter works from
func buildOutreachPrompt(lead *models.Lead, productContext, language string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Write outreach messages for this business:\n\n")
	fmt.Fprintf(&b, "Name: %s\n", lead.Name)
	if lead.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", lead.Category)
	}
	if lead.Address != "" {
		fmt.Fprintf(&b, "Location: %s\n", lead.Address)
	}
	if lead.Rating != nil {
		fmt.Fprintf(&b, "Google rating: %.1f (%d reviews)\n", *lead.Rating, lead.ReviewCount)
	}
	if lead.Website != "" {
		fmt.Fprintf(&b, "Website: %s\n", lead.Website)
	}
	if lead.OwnerName != "" {
		fmt.Fprintf(&b, "Owner/contact: %s\n", lead.OwnerName)
	}
	if lead.Score != nil {
		fmt.Fprintf(&b, "Lead quality: %s (%.0f/100)\n", lead.Score.Tier, lead.Score.Total)
	}
	if lead.Intelligence != nil && lead.Intelligence.Description != "" {
		fmt.Fprintf(&b, "About: %s\n", lead.Intelligence.Description)
	}
	if lead.Analysis != nil && len(lead.Analysis.PersonalizationHooks) > 0 {
		fmt.Fprintf(&b, "Personalization hooks: %s\n", strings.Join(lead.Analysis.PersonalizationHooks, "; "))
	}

	if productContext != "" {
		fmt.Fprintf(&b, "\nWhat we are selling: %s\n", productContext)
	}
	if language != "" && language != "en" {
		fmt.Fprintf(&b, "\nWrite all messages in language code %q.\n", language)
	}

	b.WriteString("\nKeep the email under 120 words, the LinkedIn message under 60 words, and the WhatsApp message under 40 words. The cold call script should be a 30-second opener.")
	return b.String()
}

// buildResearchPrompt assembles the research brief request
func buildResearchPrompt(lead *models.Lead) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Research this business:\n\n")
	fmt.Fprintf(&b, "Name: %s\n", lead.Name)
	if lead.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", lead.Category)
	}
	if lead.Address != "" {
		fmt.Fprintf(&b, "Location: %s\n", lead.Address)
	}
	if lead.Website != "" {
		fmt.Fprintf(&b, "Website: %s\n", lead.Website)
	}
	if lead.Rating != nil {
		fmt.Fprintf(&b, "Google rating: %.1f (%d reviews)\n", *lead.Rating, lead.ReviewCount)
	}
	return b.String()
}
