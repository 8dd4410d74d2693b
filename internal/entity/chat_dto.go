package entity

type ChatRequest struct {
	TenantID       TenantID
	UserID         string
	ConversationID string // empty starts a new conversation
	Message        string
	// Source tags the usage record (web chat, message channel).
	Source string
	// Stateless answers without creating or storing a conversation.
	Stateless bool
}

type ChatAnswer struct {
	ConversationID string         `json:"conversation_id"`
	MessageID      string         `json:"message_id,omitempty"`
	Text           string         `json:"text"`
	Chunks         []*ScoredChunk `json:"chunks"`
	Usage          TokenUsage     `json:"usage"`
	UsageEstimated bool           `json:"usage_estimated,omitempty"`
}

// CompletionResult is handed to the completion hook once per generation.
type CompletionResult struct {
	Text           string
	Usage          TokenUsage
	UsageEstimated bool
	Err            error
}

type ChatHTTPRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

// ChatStreamDelta is the payload of one "delta" server-sent event.
type ChatStreamDelta struct {
	Text string `json:"text"`
}

type ChannelMessageRequest struct {
	Body       string `json:"body"`
	MessageSID string `json:"message_sid,omitempty"`
}

type ChannelMessageResponse struct {
	Reply string `json:"reply"`
}

type ListConversationsResponse struct {
	Conversations []*Conversation `json:"conversations"`
}

type ConversationDetail struct {
	Conversation
	Messages []*Message `json:"messages"`
}
