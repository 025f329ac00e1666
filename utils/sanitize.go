package utils

import "github.com/microcosm-cc/bluemonday"

var sanitizer = bluemonday.StrictPolicy()

// SanitizeText strips HTML from user-submitted text such as exercise answers.
func SanitizeText(input string) string {
	return sanitizer.Sanitize(input)
}
