package chat

import (
	"context"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
)

type ChatUsecase interface {
	StreamAnswer(ctx context.Context, req entity.ChatRequest, onDelta func(delta string) error) (*entity.ChatAnswer, error)
	Answer(ctx context.Context, req entity.ChatRequest) (*entity.ChatAnswer, error)
	AnswerChannelMessage(ctx context.Context, tenant entity.TenantID, actor, body, messageSID string) (*entity.ChannelMessageResponse, error)
	ListConversations(ctx context.Context, tenant entity.TenantID, userID string) (*entity.ListConversationsResponse, error)
	GetConversation(ctx context.Context, tenant entity.TenantID, userID, id string) (*entity.ConversationDetail, error)
}
