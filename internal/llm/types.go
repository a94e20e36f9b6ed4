package llm

import "fmt"

// Role represents the role of a message sender in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest contains the parameters for an LLM completion request.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	JSONMode    bool
}

// CompletionResponse contains the result of an LLM completion request.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Model        string
	FinishReason string
}

// RankedDocument is one document scored by a reranker, referenced by its
// position in the candidate list.
type RankedDocument struct {
	Index int
	Score float64
}

// ExtractResult is the outcome of document text extraction, recording
// which parser produced the text.
type ExtractResult struct {
	Text        string
	ParseSource string
	Warning     string
}

// ErrNoChoices is returned when a provider responds without any choices.
var ErrNoChoices = fmt.Errorf("provider returned no choices")
