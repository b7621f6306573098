package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

// rawPreviewLength bounds how much of an unparsable response survives
// into the error structure.
const rawPreviewLength = 500

var (
	fencedBlockRE = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")
	braceSpanRE   = regexp.MustCompile(`\{[\s\S]*\}`)
)

// jsonInstruction is appended to the system prompt on GenerateJSON calls.
const jsonInstruction = "\n\nIMPORTANT: Respond ONLY with valid JSON. No markdown, no explanation, just the JSON object."

// ExtractJSON pulls a JSON object out of model output. It tries, in
// order: the whole text, the contents of a fenced code block, and the
// widest brace-delimited span. When nothing parses it returns an error
// structure with a bounded preview of the raw text, so callers always
// get a map to inspect.
func ExtractJSON(text string) map[string]any {
	if obj := tryParse(text); obj != nil {
		return obj
	}

	if m := fencedBlockRE.FindStringSubmatch(text); m != nil {
		if obj := tryParse(m[1]); obj != nil {
			return obj
		}
	}

	if span := braceSpanRE.FindString(text); span != "" {
		if obj := tryParse(span); obj != nil {
			return obj
		}
	}

	preview := text
	if len(preview) > rawPreviewLength {
		preview = preview[:rawPreviewLength]
	}
	return map[string]any{
		"error": "could not parse JSON from response",
		"raw":   preview,
	}
}

func tryParse(s string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &obj); err != nil {
		return nil
	}
	return obj
}
