package engine

import "strings"

// AssistantMarker prefixes every stub completion.
const AssistantMarker = "Assistant:"

// RenderTemplate builds the stub completion for p: the assistant marker,
// then the system prompt framed by newlines (or a single space when absent),
// then the user prompt.
func RenderTemplate(p Prompt) string {
	var b strings.Builder
	b.WriteString(AssistantMarker)
	if p.System != "" {
		b.WriteString("\n")
		b.WriteString(p.System)
		b.WriteString("\n")
	} else {
		b.WriteString(" ")
	}
	b.WriteString(p.User)
	return b.String()
}

// SplitTokens splits s into word tokens that keep their trailing space.
// Newlines are tokens of their own. Joining the result yields s.
func SplitTokens(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ':
			out = append(out, s[start:i+1])
			start = i + 1
		case '\n':
			if i > start {
				out = append(out, s[start:i])
			}
			out = append(out, "\n")
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

// stubTokens is the token stream of the stub engine: the marker is one token.
func stubTokens(p Prompt) []string {
	rendered := RenderTemplate(p)
	rest := strings.TrimPrefix(rendered, AssistantMarker)
	return append([]string{AssistantMarker}, SplitTokens(rest)...)
}
