package common

import "strings"

// NormalizePhone strips everything but digits from a phone number.
// Used as the fallback deduplication key when a lead has no place id.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PhoneToWhatsApp derives a WhatsApp handle from a phone number.
// E.164 numbers keep their country code; local formats are stripped to
// digits and accepted only when long enough to plausibly include an
// area code.
func PhoneToWhatsApp(phone string) string {
	if phone == "" {
		return ""
	}
	if strings.HasPrefix(phone, "+") {
		return "+" + NormalizePhone(phone)
	}
	digits := NormalizePhone(phone)
	if len(digits) >= 10 {
		return digits
	}
	return ""
}
