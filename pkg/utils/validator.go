package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	emailRegex   = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	userIDRegex  = regexp.MustCompile(`^[A-Za-z0-9._@\-]{1,64}$`)
	controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
)

// MaxReasonLength bounds free-text reasons stored in delegations and the audit trail
const MaxReasonLength = 500

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidateUserID checks a directory user ID taken from a request
func ValidateUserID(id string) error {
	if !userIDRegex.MatchString(id) {
		return fmt.Errorf("invalid user id: %q", id)
	}
	return nil
}

// SanitizeText removes control characters (keeping tabs and newlines) and
// trims surrounding space
func SanitizeText(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}

// ValidateReason checks the length of a sanitized reason. Blank reasons are
// left to the caller, which knows whether one is required.
func ValidateReason(reason string) error {
	if n := utf8.RuneCountInString(reason); n > MaxReasonLength {
		return fmt.Errorf("reason is %d characters, maximum is %d", n, MaxReasonLength)
	}
	return nil
}
