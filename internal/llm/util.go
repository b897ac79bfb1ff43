package llm

import "strings"

// CleanJSONBlock strips markdown fencing from a model response before it
// is handed to the JSON decoder. The analysis and keyword prompts ask for
// bare JSON, but Gemini still fences its output often enough that every
// structured call goes through here.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	// ```json ... ``` fences
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
		return text
	}

	// bare ``` ... ``` fences, possibly with a language tag on the first line
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.Index(text, "\n"); idx >= 0 {
			firstLine := text[:idx]
			// short token with no spaces or braces reads as a language tag, not payload
			if len(firstLine) < 20 && !strings.Contains(firstLine, " ") && !strings.Contains(firstLine, "{") {
				text = text[idx+1:]
			}
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
		return text
	}

	return text
}
