package store

import (
	"strings"

	"github.com/companion-labs/voicerelay/internal/domain"
)

const systemPrompt = `You are a compassionate, calming psychotherapy-style conversational assistant.
At the start of the session, you should gently clarify once that you are not a licensed therapist or medical professional.
After that, respond naturally, empathetically, and conversationally — without repeating the disclaimer again.

Your tone should be warm, validating, and concise. Encourage reflection but keep replies short (2–4 sentences max).
`

// SystemPrompt returns the fixed instruction string establishing the
// assistant's persona. It is static per process.
func SystemPrompt() string {
	return systemPrompt
}

// renderPrompt renders messages (given newest first) in chronological order as
// "Role: text" lines, followed by the new user line.
func renderPrompt(newestFirst []domain.Message, userText string) string {
	var b strings.Builder
	for i := len(newestFirst) - 1; i >= 0; i-- {
		b.WriteString(capitalize(newestFirst[i].Role))
		b.WriteString(": ")
		b.WriteString(newestFirst[i].Content)
		b.WriteString("\n")
	}
	b.WriteString("User: ")
	b.WriteString(userText)
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
