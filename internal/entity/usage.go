package entity

import (
	"fmt"
	"time"
)

type CallType string

const (
	CallTypeEmbedding      CallType = "embedding"
	CallTypeChatCompletion CallType = "chat_completion"
	CallTypeMessageChannel CallType = "message_channel"
	CallTypeOther          CallType = "other"
)

func (c CallType) Validate() error {
	switch c {
	case CallTypeEmbedding, CallTypeChatCompletion, CallTypeMessageChannel, CallTypeOther:
		return nil
	default:
		return fmt.Errorf("%w: unknown call type %q", ErrInvalidParameter, string(c))
	}
}

type ChannelDirection string

const (
	ChannelDirectionInbound  ChannelDirection = "inbound"
	ChannelDirectionOutbound ChannelDirection = "outbound"
)

// UsageRecord is an append-only accounting entry for one priced external call.
// TenantID is empty for platform-wide calls.
type UsageRecord struct {
	ID           string         `json:"id"`
	TenantID     TenantID       `json:"tenant_id,omitempty"`
	ActorID      string         `json:"actor_id"`
	CallType     CallType       `json:"call_type"`
	Model        string         `json:"model"`
	InputTokens  int            `json:"input_tokens"`
	OutputTokens int            `json:"output_tokens"`
	TotalTokens  int            `json:"total_tokens"`
	Cost         float64        `json:"cost"`
	Metadata     map[string]any `json:"metadata"`
	CreatedAt    time.Time      `json:"created_at"`
}

type UsageParams struct {
	TenantID     TenantID
	ActorID      string
	CallType     CallType
	Model        string
	InputTokens  int
	OutputTokens int
	Metadata     map[string]any
}

type ChannelMessageParams struct {
	TenantID   TenantID
	ActorID    string
	MessageSID string
	Direction  ChannelDirection
}

// TokenUsage is what a provider reports for one call.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens
}
