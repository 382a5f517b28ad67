package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/leadforge/internal/models"
)

func TestParsePageEmails(t *testing.T) {
	html := `<html><body>
		<a href="mailto:owner@acmeplumbing.example?subject=hi">Email us</a>
		<p>Support: support@acmeplumbing.example</p>
		<img src="logo@2x.png">
		<script>sentry("errors@sentry.io")</script>
	</body></html>`

	lead := &models.Lead{}
	require.NoError(t, parsePage(html, lead))

	// mailto address wins the primary slot, regex finds the rest,
	// asset paths and telemetry domains are filtered out.
	assert.Equal(t, "owner@acmeplumbing.example", lead.Email)
	assert.Equal(t, []string{"owner@acmeplumbing.example", "support@acmeplumbing.example"}, lead.Emails)
}

func TestParsePageKeepsExistingPrimaryEmail(t *testing.T) {
	html := `<a href="mailto:found@site.example">mail</a>`

	lead := &models.Lead{Email: "listed@maps.example"}
	require.NoError(t, parsePage(html, lead))

	assert.Equal(t, "listed@maps.example", lead.Email)
	assert.Equal(t, []string{"found@site.example"}, lead.Emails)
}

func TestParsePageSocialLinks(t *testing.T) {
	html := `<html><body>
		<a href="https://www.linkedin.com/company/acme">LinkedIn</a>
		<a href="https://x.com/acmeplumbing">X</a>
		<a href="https://www.facebook.com/sharer/sharer.php?u=x">Share</a>
		<a href="https://www.instagram.com/acme">Instagram</a>
		<a href="/about">About</a>
	</body></html>`

	lead := &models.Lead{}
	require.NoError(t, parsePage(html, lead))

	assert.Equal(t, "https://www.linkedin.com/company/acme", lead.Social.LinkedIn)
	assert.Equal(t, "https://x.com/acmeplumbing", lead.Social.Twitter)
	assert.Equal(t, "https://www.instagram.com/acme", lead.Social.Instagram)
	// Share widgets are not profiles.
	assert.Empty(t, lead.Social.Facebook)
}

func TestDetectContactForm(t *testing.T) {
	tests := []struct {
		name string
		html string
		want bool
	}{
		{
			"email input",
			`<form><input type="email" name="from"></form>`,
			true,
		},
		{
			"textarea",
			`<form><textarea name="message"></textarea></form>`,
			true,
		},
		{
			"contact action",
			`<form action="/contact-us"><input type="text"></form>`,
			true,
		},
		{
			"search form only",
			`<form action="/search"><input type="text" name="q"></form>`,
			false,
		},
		{
			"no forms",
			`<div>static brochure site</div>`,
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lead := &models.Lead{}
			require.NoError(t, parsePage(tt.html, lead))
			assert.Equal(t, tt.want, lead.HasContactForm)
		})
	}
}
