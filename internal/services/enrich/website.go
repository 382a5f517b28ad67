package enrich

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/leadforge/internal/models"
)

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// Addresses that appear in markup but are never real contacts.
var emailBlocklist = []string{
	"example.com", "sentry.io", "wixpress.com", ".png", ".jpg", ".gif", ".webp",
}

type socialMatcher struct {
	domain string
	assign func(*models.SocialLinks, string)
}

var socialMatchers = []socialMatcher{
	{"linkedin.com", func(s *models.SocialLinks, u string) { s.LinkedIn = u }},
	{"facebook.com", func(s *models.SocialLinks, u string) { s.Facebook = u }},
	{"instagram.com", func(s *models.SocialLinks, u string) { s.Instagram = u }},
	{"twitter.com", func(s *models.SocialLinks, u string) { s.Twitter = u }},
	{"x.com", func(s *models.SocialLinks, u string) { s.Twitter = u }},
	{"youtube.com", func(s *models.SocialLinks, u string) { s.YouTube = u }},
	{"tiktok.com", func(s *models.SocialLinks, u string) { s.TikTok = u }},
}

// parsePage extracts emails, social links, and a contact-form signal
// from the site HTML, writing what it finds onto the lead.
func parsePage(html string, lead *models.Lead) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return err
	}

	extractEmails(doc, html, lead)
	extractSocialLinks(doc, lead)
	lead.HasContactForm = detectContactForm(doc)
	return nil
}

func extractEmails(doc *goquery.Document, html string, lead *models.Lead) {
	seen := make(map[string]struct{})

	add := func(email string) {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" || !usableEmail(email) {
			return
		}
		if _, dup := seen[email]; dup {
			return
		}
		seen[email] = struct{}{}
		lead.Emails = append(lead.Emails, email)
	}

	// mailto: links first, they are the deliberate contact address.
	doc.Find("a[href^='mailto:']").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		addr := strings.TrimPrefix(href, "mailto:")
		if i := strings.IndexAny(addr, "?&"); i >= 0 {
			addr = addr[:i]
		}
		add(addr)
	})

	for _, match := range emailPattern.FindAllString(html, 20) {
		add(match)
	}

	if lead.Email == "" && len(lead.Emails) > 0 {
		lead.Email = lead.Emails[0]
	}
}

func usableEmail(email string) bool {
	for _, blocked := range emailBlocklist {
		if strings.Contains(email, blocked) {
			return false
		}
	}
	return true
}

func extractSocialLinks(doc *goquery.Document, lead *models.Lead) {
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		lower := strings.ToLower(href)
		if !strings.HasPrefix(lower, "http") {
			return
		}
		for _, m := range socialMatchers {
			if strings.Contains(lower, m.domain) {
				// Share widgets point at the platform's share endpoint,
				// not a profile.
				if strings.Contains(lower, "/share") || strings.Contains(lower, "sharer") {
					continue
				}
				m.assign(&lead.Social, href)
			}
		}
	})
}

func detectContactForm(doc *goquery.Document) bool {
	found := false
	doc.Find("form").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if sel.Find("input[type='email'], textarea").Length() > 0 {
			found = true
			return false
		}
		action, _ := sel.Attr("action")
		if strings.Contains(strings.ToLower(action), "contact") {
			found = true
			return false
		}
		return true
	})
	return found
}
