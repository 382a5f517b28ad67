package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportRowMatchesColumnOrder(t *testing.T) {
	rating := 4.5
	years := 12
	lead := &Lead{
		PlaceID:         "place123",
		Name:            "Acme Plumbing",
		Phone:           "+61 2 9999 0000",
		Email:           "info@acmeplumbing.example",
		WhatsApp:        "61299990000",
		Website:         "https://acmeplumbing.example",
		Address:         "1 George St, Sydney",
		Category:        "plumber",
		Rating:          &rating,
		ReviewCount:     87,
		MapsURL:         "https://maps.google.com/?cid=1",
		PriceLevel:      "$$",
		PhotosCount:     14,
		IsClaimed:       true,
		YearsInBusiness: &years,
		OwnerName:       "Jo Smith",
		Social: SocialLinks{
			LinkedIn:  "https://linkedin.com/company/acme",
			Facebook:  "https://facebook.com/acme",
			Instagram: "https://instagram.com/acme",
		},
		Score: &LeadScore{Total: 82.4, Tier: "hot"},
		Outreach: &OutreachMessages{
			EmailSubject:    "Quick question",
			EmailBody:       "Hi Jo,",
			WhatsAppMessage: "Hi!",
			LinkedInMessage: "Hello Jo",
			ColdCallScript:  "Hi, this is...",
		},
	}

	row := lead.ExportRow()
	require.Len(t, row, len(ExportColumns))

	byColumn := make(map[string]string, len(row))
	for i, col := range ExportColumns {
		byColumn[col] = row[i]
	}

	assert.Equal(t, "Acme Plumbing", byColumn["name"])
	assert.Equal(t, "4.5", byColumn["rating"])
	assert.Equal(t, "87", byColumn["review_count"])
	assert.Equal(t, "82.4", byColumn["score"])
	assert.Equal(t, "hot", byColumn["tier"])
	assert.Equal(t, "place123", byColumn["place_id"])
	assert.Equal(t, "true", byColumn["is_claimed"])
	assert.Equal(t, "12", byColumn["years_in_business"])
	assert.Equal(t, "Quick question", byColumn["email_subject"])
	assert.Equal(t, "Hi, this is...", byColumn["cold_call_script"])
}

func TestExportRowUnscoredLead(t *testing.T) {
	lead := &Lead{PlaceID: "p1", Name: "Bare Listing"}

	row := lead.ExportRow()
	require.Len(t, row, len(ExportColumns))

	byColumn := make(map[string]string, len(row))
	for i, col := range ExportColumns {
		byColumn[col] = row[i]
	}

	assert.Equal(t, "", byColumn["rating"])
	assert.Equal(t, "0.0", byColumn["score"])
	assert.Equal(t, "", byColumn["tier"])
	assert.Equal(t, "", byColumn["years_in_business"])
	assert.Equal(t, "false", byColumn["is_claimed"])
}

func TestToExportObject(t *testing.T) {
	lead := &Lead{
		PlaceID: "p1",
		Name:    "Acme",
		Score:   &LeadScore{Total: 55, Tier: "warm"},
	}

	obj := lead.ToExportObject()
	assert.Equal(t, "Acme", obj.Name)
	assert.Equal(t, 55.0, obj.Score)
	assert.Equal(t, "warm", obj.Tier)
	assert.Nil(t, obj.Rating)
	assert.Empty(t, obj.EmailSubject)
}
