// Package normalize turns raw contact identifiers into canonical comparison
// forms. All functions are pure and must run before any identity lookup.
package normalize

import (
	"strings"
)

// Email lowercases and trims a raw email. Returns "" when the input does not
// even look like an address (a single "@" with non-empty local and domain).
func Email(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	at := strings.IndexByte(s, '@')
	if at <= 0 || at == len(s)-1 || strings.Count(s, "@") != 1 {
		return ""
	}
	return s
}

// CanonicalEmail strips a plus-addressing tag from the local part, so
// "user+tag@domain" and "user@domain" compare equal for provider-level
// dedup. Input is normalized first; returns "" for invalid addresses.
func CanonicalEmail(raw string) string {
	s := Email(raw)
	if s == "" {
		return ""
	}
	at := strings.IndexByte(s, '@')
	local, domain := s[:at], s[at:]
	if plus := strings.IndexByte(local, '+'); plus > 0 {
		local = local[:plus]
	}
	return local + domain
}

// Phone folds a raw phone number into E.164 using countryCode (e.g. "+49")
// for national numbers. Accepted inputs: "+..." international, "00..."
// international, or a national number with leading "0". Returns "" when
// fewer than 6 or more than 15 digits remain.
func Phone(raw string, countryCode string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.' || r == '/':
			// separators people type; drop
		default:
			return ""
		}
	}
	s = b.String()
	switch {
	case strings.HasPrefix(s, "+"):
	case strings.HasPrefix(s, "00"):
		s = "+" + s[2:]
	case strings.HasPrefix(s, "0"):
		s = countryCode + s[1:]
	default:
		s = countryCode + s
	}
	digits := len(s) - 1
	if digits < 6 || digits > 15 {
		return ""
	}
	return s
}
