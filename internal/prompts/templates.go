// Package prompts builds the prompt texts used across the assistant and
// stores the user-editable role prompts.
package prompts

import (
	"fmt"
	"strings"
)

const hydePromptTemplate = `Write a short passage that would plausibly answer the question below. Write only the passage, no preamble. If you cannot answer, restate the question's key terms in a sentence.

Question: %s`

// BuildHyDEPrompt asks for a hypothetical answer passage used to improve
// vector recall.
func BuildHyDEPrompt(query string) string {
	return fmt.Sprintf(hydePromptTemplate, query)
}

const titlePromptTemplate = `Generate a concise title (at most 10 words) for a conversation that starts with the message below. Reply with the title only, no quotes, no punctuation at the end, in the language of the message.

Message: %s`

// BuildTitlePrompt asks for a short conversation title.
func BuildTitlePrompt(firstMessage string) string {
	return fmt.Sprintf(titlePromptTemplate, firstMessage)
}

const translateSystem = `You are a translator. Translate the user's text into Simplified Chinese. Reply with the translation only, no preamble. Keep names, code and numbers unchanged.`

// BuildTranslatePrompt asks for a Chinese translation of the text.
func BuildTranslatePrompt(text string) (system, user string) {
	return translateSystem, text
}

const summarySystem = `You compress conversation history. Reply with a compact summary that preserves facts, names, decisions and open questions. No preamble.`

const summaryPromptTemplate = `Summarize the following earlier conversation turns into a short paragraph.%s

%s`

// BuildSummaryPrompt asks for a rolling summary of dropped history.
// existingSummary, when present, is folded into the new summary.
func BuildSummaryPrompt(existingSummary, dropped string) (system, user string) {
	var carry string
	if existingSummary != "" {
		carry = fmt.Sprintf(" Merge in this summary of even earlier turns:\n%s\n", existingSummary)
	}
	return summarySystem, fmt.Sprintf(summaryPromptTemplate, carry, dropped)
}

// Snippet is one retrieved passage offered to the answer prompt.
type Snippet struct {
	Index   int
	Source  string
	Content string
}

const answerInstructions = `Answer using the reference snippets below. Cite the snippets you used with their tags, like [source-1]. If the snippets do not contain the answer, say so instead of guessing.`

// BuildAnswerSystem assembles the system prompt for a knowledge-grounded
// answer: role text, citation instructions, numbered snippets, and
// optional background knowledge.
func BuildAnswerSystem(role string, snippets []Snippet, background string) string {
	var sb strings.Builder
	if role != "" {
		sb.WriteString(role)
		sb.WriteString("\n\n")
	}
	sb.WriteString(answerInstructions)
	sb.WriteString("\n\nReference snippets:\n")
	for _, s := range snippets {
		fmt.Fprintf(&sb, "\n[source-%d] (%s)\n%s\n", s.Index, s.Source, s.Content)
	}
	if background != "" {
		sb.WriteString("\nBackground knowledge about the user:\n")
		sb.WriteString(background)
		sb.WriteString("\n")
	}
	return sb.String()
}

// BuildChitchatSystem assembles the system prompt for conversations with
// no knowledge base selected.
func BuildChitchatSystem(role string, background string) string {
	var sb strings.Builder
	if role != "" {
		sb.WriteString(role)
	}
	if background != "" {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("Background knowledge about the user:\n")
		sb.WriteString(background)
	}
	return sb.String()
}

// ContextMarker labels the rolling summary block appended to the system
// prompt; its presence is also the guard against appending it twice.
const ContextMarker = "Summary of earlier conversation:"

// AppendSummary attaches the rolling summary to a system prompt unless
// it is already embedded.
func AppendSummary(system, summary string) string {
	if summary == "" || strings.Contains(system, ContextMarker) {
		return system
	}
	return system + "\n\n" + ContextMarker + "\n" + summary
}
