package archive

import (
	"crypto/sha256"
	"fmt"
	"regexp"

	"github.com/samber/lo"

	"github.com/wolfman30/telehealth-ai-platform/internal/diagnosis"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?1?[-.\s]?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}`)
)

// HashPatientID returns the hex-encoded SHA-256 hash of a patient id, or ""
// for anonymous submissions.
func HashPatientID(patientID string) string {
	if patientID == "" {
		return ""
	}
	h := sha256.Sum256([]byte(patientID))
	return fmt.Sprintf("%x", h)
}

// ScrubPII replaces emails with [EMAIL] and phone numbers with [PHONE].
func ScrubPII(text string) string {
	text = emailRe.ReplaceAllString(text, "[EMAIL]")
	text = phoneRe.ReplaceAllString(text, "[PHONE]")
	return text
}

// ScrubSymptoms returns a copy of symptoms with free text scrubbed.
func ScrubSymptoms(symptoms []diagnosis.Symptom) []diagnosis.Symptom {
	return lo.Map(symptoms, func(s diagnosis.Symptom, _ int) diagnosis.Symptom {
		s.Description = ScrubPII(s.Description)
		s.Location = ScrubPII(s.Location)
		return s
	})
}
