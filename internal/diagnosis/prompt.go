package diagnosis

import (
	"fmt"
	"strings"

	"github.com/wolfman30/telehealth-ai-platform/internal/llm"
)

const systemPrompt = `You are a clinical decision support assistant for a telehealth service.
You are not a replacement for a licensed clinician. Given a list of patient reported symptoms,
return ONLY a JSON object with these fields:
condition (string), confidence (integer 0-100), severity ("mild"|"moderate"|"severe"|"critical"),
explanation (string), recommendations (string array), treatment (string array),
differentialDiagnoses (array of {"condition": string, "probability": integer}),
redFlags (string array), prognosis (string), prevention (string array),
seekImmediateCare (boolean).
If any symptom suggests a medical emergency, set severity to "critical" and seekImmediateCare to true.`

// BuildPrompt renders the symptom list as a single user turn.
func BuildPrompt(symptoms []Symptom) []llm.Message {
	var b strings.Builder
	b.WriteString("Patient reported symptoms:\n")
	for i, s := range symptoms {
		fmt.Fprintf(&b, "%d. %s", i+1, s.Name)
		var details []string
		if s.Severity > 0 {
			details = append(details, fmt.Sprintf("severity %d/10", s.Severity))
		}
		if s.Duration != "" {
			details = append(details, "duration "+s.Duration)
		}
		if s.Location != "" {
			details = append(details, "location "+s.Location)
		}
		if len(details) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(details, ", "))
		}
		if s.Description != "" {
			fmt.Fprintf(&b, ": %s", s.Description)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nRespond with the JSON object only.")
	return []llm.Message{{Role: llm.RoleUser, Content: b.String()}}
}
