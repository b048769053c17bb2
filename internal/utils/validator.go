package utils

import (
	"regexp"
	"strings"
)

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,50}$`)
	slugStrip       = regexp.MustCompile(`[^a-z0-9]+`)
)

func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func IsValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

func IsValidPassword(password string) bool {
	return len(password) >= 8
}

func SanitizeString(input string) string {
	return strings.TrimSpace(input)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func IsValidRating(rating int) bool {
	return rating >= 1 && rating <= 5
}

func IsValidScore(score float64) bool {
	return score >= 0 && score <= 5
}

// Slugify turns "Home & Kitchen" into "home-kitchen".
func Slugify(input string) string {
	slug := slugStrip.ReplaceAllString(strings.ToLower(strings.TrimSpace(input)), "-")
	return strings.Trim(slug, "-")
}
