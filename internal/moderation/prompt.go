package moderation

import "strings"

// exampleReview is the worked example shown ahead of the review under test,
// with empty answer slots.
const exampleReview = "Works as advertised, Arrived on time and the battery lasts all day."

const jsonInstruction = `Respond with a single JSON object and nothing else, using exactly these keys:
{"status": "Compliant" or "Violation", "reason": "<why>", "result": "yes", "no" or "maybe"}`

// BuildPrompt renders the few-shot prompt for one review: the guideline text,
// one worked example with empty answer slots and the review itself as the
// final unanswered slot.
func BuildPrompt(guideline, review string, structured bool) string {
	sections := []string{strings.TrimSpace(guideline)}
	if structured {
		sections = append(sections, jsonInstruction)
	}
	sections = append(sections,
		"Review: '''"+exampleReview+"'''\nStatus: \nReason: \nResult:",
		"Review: '''"+review+"'''",
	)
	return strings.Join(sections, "\n\n")
}
