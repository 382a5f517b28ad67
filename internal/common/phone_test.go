package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		want  string
	}{
		{"empty", "", ""},
		{"formatted international", "+61 2 9999 0000", "61299990000"},
		{"us with punctuation", "(415) 555-0134", "4155550134"},
		{"already digits", "0299990000", "0299990000"},
		{"letters stripped", "CALL-1800-PLUMBER", "1800"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.phone))
		})
	}
}

func TestPhoneToWhatsApp(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		want  string
	}{
		{"empty", "", ""},
		{"e164 keeps country code", "+61 2 9999 0000", "+61299990000"},
		{"long local number", "(415) 555-01349", "41555501349"},
		{"ten digit local", "4155550134", "4155550134"},
		{"too short", "555-0134", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PhoneToWhatsApp(tt.phone))
		})
	}
}
