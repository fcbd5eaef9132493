package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	emailRegex   = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	controlRegex = regexp.MustCompile(`[\x00-\x08\x0b-\x1f\x7f]`)
	slugRegex    = regexp.MustCompile(`[^A-Za-z0-9]+`)
)

// MaxSlugLength caps Slugify output
const MaxSlugLength = 80

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// SanitizeString removes control characters, keeping tabs and newlines
func SanitizeString(s string) string {
	return controlRegex.ReplaceAllString(s, "")
}

// Slugify replaces every run of non-alphanumerics with "_" and trims the result.
// Returns fallback when nothing is left.
func Slugify(s, fallback string) string {
	slug := strings.Trim(slugRegex.ReplaceAllString(s, "_"), "_")
	if len(slug) > MaxSlugLength {
		slug = strings.TrimRight(slug[:MaxSlugLength], "_")
	}
	if slug == "" {
		return fallback
	}
	return slug
}
