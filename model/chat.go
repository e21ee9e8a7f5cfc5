package model

import "strings"

const DefaultLanguage = "English"

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Message     string        `json:"message"`
	Language    string        `json:"language"`
	ChatHistory []ChatMessage `json:"chat_history"`
}

// Reference points the reader to a chunk used for the answer.
type Reference struct {
	Document string `json:"document"`
	Content  string `json:"content"`
}

type ChatResponse struct {
	Answer     string      `json:"answer"`
	References []Reference `json:"references"`
}

// FormatHistory renders the conversation as role tagged turns separated by
// blank lines. Every role other than "user" is rendered as the assistant.
func FormatHistory(history []ChatMessage) string {
	var b strings.Builder
	for _, msg := range history {
		role := "Assistant"
		if msg.Role == "user" {
			role = "Human"
		}
		b.WriteString(role)
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n\n")
	}
	return b.String()
}
