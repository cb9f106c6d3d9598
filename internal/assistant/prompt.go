package assistant

import (
	"strconv"
	"strings"

	"github.com/hyperjump/skfed/internal/models"
)

// PromptTemplate is the fixed system instruction with named slots.
// The context block is inserted verbatim after the formatting rules.
type PromptTemplate struct {
	Role         string
	Capabilities [3]string
	Directives   []string
	Formatting   []string
	// ContextHeading introduces the context block.
	ContextHeading string
}

// DefaultPromptTemplate returns the federation assistant instructions.
func DefaultPromptTemplate() PromptTemplate {
	return PromptTemplate{
		Role: "You are the assistant for a youth-council federation. You help members and " +
			"officers plan activities and find information about federation events and announcements.",
		Capabilities: [3]string{
			"Suggest new events and activities based on past participation and current interests.",
			"Answer questions about scheduled events, dates, locations and the latest announcements.",
			"Report how many people registered for events and which event categories draw the most participants.",
		},
		Directives: []string{
			"Always state participant counts exactly as given in the data below. Never say the numbers are unavailable when they are listed, and never estimate or round them.",
			"Only use facts from the data below. If the data does not contain the answer, say so plainly.",
			"If the data section is empty, explain that no federation data is available right now and answer generally.",
			"Keep suggestions practical for a local youth council with a modest budget.",
		},
		Formatting: []string{
			"Answer in short paragraphs or numbered lists.",
			"Do not use markdown headings or tables.",
			"Keep answers under 250 words unless the user asks for more detail.",
		},
		ContextHeading: "Current federation data:",
	}
}

// Render builds the system prompt with contextBlock placed verbatim.
func (t PromptTemplate) Render(contextBlock string) string {
	var b strings.Builder
	b.WriteString(t.Role)
	b.WriteString("\n\nYou can:\n")
	for i, c := range t.Capabilities {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(c)
		b.WriteByte('\n')
	}
	if len(t.Directives) > 0 {
		b.WriteString("\nImportant:\n")
		writeBullets(&b, t.Directives)
	}
	if len(t.Formatting) > 0 {
		b.WriteString("\nFormatting:\n")
		writeBullets(&b, t.Formatting)
	}
	b.WriteByte('\n')
	b.WriteString(t.ContextHeading)
	b.WriteByte('\n')
	b.WriteString(contextBlock)
	return b.String()
}

func writeBullets(b *strings.Builder, items []string) {
	for _, it := range items {
		b.WriteString("- ")
		b.WriteString(it)
		b.WriteByte('\n')
	}
}

// AssemblePrompt pairs the rendered system prompt with the unmodified user message.
// Nothing is truncated; a token-limited backend needs its own budget check.
func (t PromptTemplate) AssemblePrompt(contextBlock, message string) models.Prompt {
	return models.Prompt{System: t.Render(contextBlock), User: message}
}

// AssemblePrompt uses DefaultPromptTemplate.
func AssemblePrompt(contextBlock, message string) models.Prompt {
	return DefaultPromptTemplate().AssemblePrompt(contextBlock, message)
}
