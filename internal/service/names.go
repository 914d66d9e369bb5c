package service

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// PrivacyName shortens a full name to "F. Lastname" for public listings.
func PrivacyName(full string) string {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "Anonymous Partner"
	case 1:
		return titleWord(parts[0])
	}
	first, _ := utf8.DecodeRuneInString(parts[0])
	return string(unicode.ToUpper(first)) + ". " + titleWord(parts[len(parts)-1])
}

func titleWord(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	return string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
}

func partnerLock(email string) string {
	return "partner:" + strings.ToLower(strings.TrimSpace(email))
}
