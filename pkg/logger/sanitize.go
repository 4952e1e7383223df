package logger

import (
	"strings"
)

// SanitizedPhone masks a phone number for logging, keeping only the last
// two digits (e.g. "********67").
func SanitizedPhone(number string) string {
	if len(number) <= 2 {
		return strings.Repeat("*", len(number))
	}
	return strings.Repeat("*", len(number)-2) + number[len(number)-2:]
}

// SanitizedQuery truncates a search query for logging. Queries are personal
// names; log enough to debug, not enough to profile.
func SanitizedQuery(query string) string {
	const maxLen = 16
	if len(query) <= maxLen {
		return query
	}
	return query[:maxLen] + "…"
}

// SanitizeQueryString checks if a URL query string contains sensitive
// parameters and returns true if it should be redacted wholesale.
func SanitizeQueryString(rawQuery string) bool {
	sensitiveParams := map[string]bool{
		"token":   true,
		"secret":  true,
		"api_key": true,
		"apikey":  true,
		"key":     true,
		"number":  true,
		"auth":    true,
	}

	query := strings.ToLower(rawQuery)
	for param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
