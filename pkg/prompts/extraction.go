package prompts

import "strings"

// ExtractionSystemMessage pins the extraction model to JSON-only output.
const ExtractionSystemMessage = `You are an entity extraction assistant for a memoir-writing application.
You extract the people, places, events, time periods, and emotions a person mentions when telling their life story, and the relationships between them.
Return ONLY a valid JSON object. No markdown, no explanation. Start with { and end with }.`

// BuildExtractionPrompt constructs the extraction instruction around
// sanitized narrative text. The schema is closed: five entity categories
// plus a relationships list, with aliases normalized to one canonical name.
func BuildExtractionPrompt(sanitizedText string) string {
	var sb strings.Builder

	sb.WriteString("Extract entities and relationships from the narrative text below.\n\n")
	sb.WriteString("Return a JSON object with exactly these keys:\n")
	sb.WriteString(`{
  "people": [{"name": "...", "context": "...", "sentiment": "positive|negative|neutral|mixed"}],
  "places": [{"name": "...", "context": "...", "sentiment": "positive|negative|neutral|mixed"}],
  "events": [{"name": "...", "context": "...", "sentiment": "positive|negative|neutral|mixed"}],
  "time_periods": [{"name": "...", "context": "...", "sentiment": "positive|negative|neutral|mixed"}],
  "emotions": [{"name": "...", "context": "...", "sentiment": "positive|negative|neutral|mixed"}],
  "relationships": [{"entity1": "...", "entity2": "...", "type": "...", "description": "..."}]
}`)
	sb.WriteString("\n\nRules:\n")
	sb.WriteString("- \"name\" is the canonical name. Normalize aliases to one canonical form: \"Dad\" and \"my father\" both become \"Father\".\n")
	sb.WriteString("- \"context\" is a short snippet describing how it was mentioned in this text.\n")
	sb.WriteString("- Relationship \"entity1\" and \"entity2\" must use the same canonical names as the entity lists.\n")
	sb.WriteString("- Relationship \"type\" is a short verb phrase, e.g. \"worked at\", \"married\", \"grew up in\".\n")
	sb.WriteString("- Use an empty array for any category with nothing to extract.\n")
	sb.WriteString("- Extract only what the text actually says. Do not invent.\n")
	sb.WriteString("\nNarrative text:\n\n")
	sb.WriteString(sanitizedText)

	return sb.String()
}
