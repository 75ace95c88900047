package llm

// Role labels one prompt message. The routed payload carries the
// grounding instructions as system and the excerpts plus question as
// user; assistant appears only in multi-turn chat.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the prompt sent to an answer model.
type Message struct {
	Role    Role
	Content string
}

// Answer models run at a low temperature so responses stay anchored to
// the retrieved excerpts instead of improvising around them.
const answerTemperature = 0.2

// defaultMaxAnswerTokens bounds the response; a grounded answer over a
// handful of excerpts rarely needs more.
const defaultMaxAnswerTokens = 1024

// CompletionRequest carries the routed model name and the assembled
// prompt. An empty Model falls back to the provider's configured one.
type CompletionRequest struct {
	Model     string
	Messages  []Message
	MaxTokens int // zero means defaultMaxAnswerTokens
}

// CompletionResponse is the generated answer plus the usage accounting
// the providers report.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Model        string
	FinishReason string
}

func (r CompletionRequest) model(fallback string) string {
	if r.Model != "" {
		return r.Model
	}
	return fallback
}

func (r CompletionRequest) maxTokens() int {
	if r.MaxTokens > 0 {
		return r.MaxTokens
	}
	return defaultMaxAnswerTokens
}
