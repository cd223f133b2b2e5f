package middleware

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/macrolens/internal/domain/nutrition"
	"github.com/bryanwahyu/macrolens/internal/imageenc"
)

// Input validation and sanitization utilities

const maxProfileField = 200

// ValidateDataURI checks that content looks like "data:image/...;base64,...".
// It does not decode the payload.
func ValidateDataURI(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("image content cannot be empty")
	}
	if !strings.HasPrefix(content, "data:") {
		return fmt.Errorf("image must be a data URI")
	}
	meta, payload, ok := strings.Cut(strings.TrimPrefix(content, "data:"), ",")
	if !ok || payload == "" {
		return fmt.Errorf("data URI has no payload")
	}
	mt, enc, _ := strings.Cut(meta, ";")
	if !imageenc.IsImageMIME(mt) {
		return fmt.Errorf("invalid MIME type: %s (image/* required)", mt)
	}
	if enc != "base64" {
		return fmt.Errorf("data URI must be base64 encoded")
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}

// SanitizeProfile cleans free-text profile fields before they are put into
// a prompt. Fields are single-line and capped in length. nil stays nil.
func SanitizeProfile(p *nutrition.UserProfile) *nutrition.UserProfile {
	if p == nil {
		return nil
	}
	out := &nutrition.UserProfile{
		Goal:                sanitizeField(p.Goal),
		ActivityLevel:       sanitizeField(p.ActivityLevel),
		DietaryRestrictions: sanitizeList(p.DietaryRestrictions),
		HealthConditions:    sanitizeList(p.HealthConditions),
	}
	return out
}

func sanitizeField(s string) string {
	s = strings.Join(strings.Fields(SanitizeString(s)), " ")
	if r := []rune(s); len(r) > maxProfileField {
		s = string(r[:maxProfileField])
	}
	return s
}

func sanitizeList(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = sanitizeField(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
