package credential

import (
	"strings"
	"unicode"
)

// NormalizePhone keeps digits only. An 11 digit number with a leading 8 is
// the domestic form of +7 and is rewritten to start with 7.
func NormalizePhone(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '8' {
		digits = "7" + digits[1:]
	}
	return digits
}

func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// NormalizeIdentifier returns the canonical login identifier. Anything
// containing '@' is treated as an email, the rest as a phone number.
func NormalizeIdentifier(raw string) string {
	if strings.ContainsRune(raw, '@') {
		return NormalizeEmail(raw)
	}
	return NormalizePhone(raw)
}

func IsEmail(identifier string) bool {
	return strings.ContainsRune(identifier, '@')
}

// ValidEmail is a shape check, not a deliverability check.
func ValidEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at != strings.LastIndexByte(email, '@') || at == len(email)-1 {
		return false
	}
	if !strings.Contains(email[at+1:], ".") {
		return false
	}
	return !strings.ContainsFunc(email, unicode.IsSpace)
}
