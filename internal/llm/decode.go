package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Decode decodes JSON from a model response, handling common formatting
// quirks. Model output is untrusted: it may arrive wrapped in code fences or
// surrounded by prose. Recovery locates the first balanced JSON object or
// array via brace matching before parsing; any remaining failure is returned
// as an error, never a panic.
func Decode(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}

	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}

	recovered := recoverJSONPayload(trimmed)
	if recovered == "" || recovered == trimmed {
		return fmt.Errorf("%w (payload snippet: %s)", directErr, summarizePayloadSnippet(trimmed))
	}

	recoveredErr := json.Unmarshal([]byte(recovered), target)
	if recoveredErr == nil {
		return nil
	}
	return fmt.Errorf("%w (recovered payload snippet: %s)", recoveredErr, summarizePayloadSnippet(recovered))
}

func recoverJSONPayload(content string) string {
	trimmed := strings.TrimSpace(stripCodeFenceBlock(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		if balanced := extractBalanced(trimmed, 0); balanced != "" {
			return balanced
		}
		return trimmed
	}
	for i := 0; i < len(trimmed); i++ {
		if trimmed[i] == '{' || trimmed[i] == '[' {
			if balanced := extractBalanced(trimmed, i); balanced != "" {
				return balanced
			}
		}
	}
	return trimmed
}

// extractBalanced returns the first balanced JSON object or array starting at
// offset, tracking string literals so braces inside quoted text do not count.
func extractBalanced(content string, offset int) string {
	open := content[offset]
	var close byte
	switch open {
	case '{':
		close = '}'
	case '[':
		close = ']'
	default:
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := offset; i < len(content); i++ {
		ch := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return strings.TrimSpace(content[offset : i+1])
			}
		}
	}
	return ""
}

func stripCodeFenceBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := trimmed[3:]
	body = strings.TrimLeft(body, " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
		body = strings.TrimLeft(body, " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func summarizePayloadSnippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	replacer := strings.NewReplacer("\r", " ", "\n", " ", "\t", " ")
	clean := replacer.Replace(trimmed)
	clean = strings.Join(strings.Fields(clean), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
