package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/facundoguellutn/stoodeochat/internal/repository"
	"github.com/facundoguellutn/stoodeochat/internal/usecase/retrieval"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const (
	DefaultGenerationTimeout = 30 * time.Second
	DefaultHistoryLimit      = 20
	DefaultReplyMaxChars     = 1500

	titleMaxChars     = 50
	defaultTitle      = "Nueva conversación"
	charsPerToken     = 4
	hookWriteTimeout  = 10 * time.Second
	sourceWeb         = "web"
	statusCompleted   = "completed"
	statusCancelled   = "cancelled"
	statusTimeout     = "timeout"
	statusFailed      = "failed"
	statusInterrupted = "interrupted"
)

type Options struct {
	GenerationTimeout time.Duration
	// HistoryLimit caps the stored messages sent to the model; negative
	// sends only the current question.
	HistoryLimit      int
	ReplyMaxChars     int
	ChannelSource     string
}

func DefaultOptions() Options {
	return Options{
		GenerationTimeout: DefaultGenerationTimeout,
		HistoryLimit:      DefaultHistoryLimit,
		ReplyMaxChars:     DefaultReplyMaxChars,
		ChannelSource:     "whatsapp",
	}
}

// ChatUsecase answers questions with retrieval-augmented generation.
type ChatUsecase struct {
	conversations repository.ConversationRepository
	searcher      Searcher
	tenants       TenantResolver
	llm           LLMConnector
	usage         UsageRecorder
	opts          Options
}

func NewUsecase(
	conversations repository.ConversationRepository,
	searcher Searcher,
	tenants TenantResolver,
	llm LLMConnector,
	usage UsageRecorder,
	opts Options,
) *ChatUsecase {
	d := DefaultOptions()
	if opts.GenerationTimeout <= 0 {
		opts.GenerationTimeout = d.GenerationTimeout
	}
	if opts.HistoryLimit == 0 {
		opts.HistoryLimit = d.HistoryLimit
	}
	if opts.ReplyMaxChars <= 0 {
		opts.ReplyMaxChars = d.ReplyMaxChars
	}
	if opts.ChannelSource == "" {
		opts.ChannelSource = d.ChannelSource
	}

	return &ChatUsecase{
		conversations: conversations,
		searcher:      searcher,
		tenants:       tenants,
		llm:           llm,
		usage:         usage,
		opts:          opts,
	}
}

// turn is one question being answered.
type turn struct {
	req           entity.ChatRequest
	tenant        *entity.Tenant
	conversation  *entity.Conversation
	userMessageID string
	chunks        []*entity.ScoredChunk
	generation    entity.GenerationRequest
}

// Answer is StreamAnswer without a delta callback.
func (uc *ChatUsecase) Answer(ctx context.Context, req entity.ChatRequest) (*entity.ChatAnswer, error) {
	return uc.StreamAnswer(ctx, req, nil)
}

// StreamAnswer retrieves context for the question, streams the completion to
// onDelta and then stores the assistant message and its usage record. The
// completion step runs exactly once per generation, also when the client
// disconnects, the generation times out or the provider fails.
func (uc *ChatUsecase) StreamAnswer(
	ctx context.Context,
	req entity.ChatRequest,
	onDelta func(delta string) error,
) (*entity.ChatAnswer, error) {
	t, err := uc.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	genCtx, cancel := context.WithTimeout(ctx, uc.opts.GenerationTimeout)
	defer cancel()

	hook := uc.newCompletionHook(ctx, t)
	// Covers a panicking delta callback; a no-op after the regular call.
	defer hook.fire(entity.CompletionResult{Err: errors.New("generation interrupted")}, statusInterrupted)

	completion, genErr := uc.llm.Stream(genCtx, t.generation, onDelta)
	if completion == nil {
		completion = &entity.Completion{}
	}

	status := statusCompleted
	switch {
	case genErr == nil:
	case ctx.Err() != nil:
		status = statusCancelled
	case errors.Is(genCtx.Err(), context.DeadlineExceeded):
		status = statusTimeout
		genErr = fmt.Errorf("%w after %s: %w", entity.ErrGenerationTimeout, uc.opts.GenerationTimeout, genErr)
	default:
		status = statusFailed
	}

	result := uc.completionResult(t, completion, genErr)
	messageID := hook.fire(result, status)

	if genErr != nil {
		return nil, fmt.Errorf("generate answer: %w", genErr)
	}

	return &entity.ChatAnswer{
		ConversationID: conversationIDOf(t),
		MessageID:      messageID,
		Text:           result.Text,
		Chunks:         t.chunks,
		Usage:          result.Usage,
		UsageEstimated: result.UsageEstimated,
	}, nil
}

// prepare validates the request, retrieves context and stores the question.
func (uc *ChatUsecase) prepare(ctx context.Context, req entity.ChatRequest) (*turn, error) {
	if err := req.TenantID.Validate(); err != nil {
		return nil, err
	}
	if req.UserID == "" {
		return nil, entity.ErrMissingActor
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return nil, fmt.Errorf("%w: message", entity.ErrMissingField)
	}
	if req.Source == "" {
		req.Source = sourceWeb
	}

	tenant, err := uc.tenants.Resolve(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}

	t := &turn{req: req, tenant: tenant}

	if !req.Stateless && req.ConversationID != "" {
		t.conversation, err = uc.conversations.Get(ctx, req.TenantID, req.UserID, req.ConversationID)
		if err != nil {
			return nil, err
		}
	}

	t.chunks, err = uc.searcher.SearchSimilarChunks(ctx, req.TenantID, req.UserID, entity.SearchQuery{Query: req.Message})
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	system := retrieval.BuildSystemPrompt(retrieval.AssembleContext(t.chunks))

	history, err := uc.storeQuestion(ctx, t)
	if err != nil {
		return nil, err
	}

	t.generation = entity.GenerationRequest{
		Model:    tenant.LLMModel,
		System:   system,
		Messages: history,
	}

	ctxzap.Info(ctx, "answering question",
		zap.String("conversation_id", conversationIDOf(t)),
		zap.Int("chunks", len(t.chunks)),
		zap.Int("history", len(history)),
	)

	return t, nil
}

// storeQuestion saves the user's message and returns the recent history the
// model sees, the question included.
func (uc *ChatUsecase) storeQuestion(ctx context.Context, t *turn) ([]entity.ChatMessage, error) {
	question := entity.ChatMessage{Role: string(entity.MessageRoleUser), Content: t.req.Message}
	if t.req.Stateless {
		return []entity.ChatMessage{question}, nil
	}

	if t.conversation == nil {
		conv, err := uc.conversations.Create(ctx, entity.Conversation{
			ID:       uuid.New().String(),
			TenantID: t.req.TenantID,
			UserID:   t.req.UserID,
			Title:    conversationTitle(t.req.Message),
		})
		if err != nil {
			return nil, fmt.Errorf("create conversation: %w", err)
		}
		t.conversation = conv
		ctxzap.Info(ctx, "conversation created", zap.String("conversation_id", conv.ID))
	}

	saved, err := uc.conversations.AddMessage(ctx, t.req.TenantID, entity.Message{
		ID:             uuid.New().String(),
		ConversationID: t.conversation.ID,
		Role:           entity.MessageRoleUser,
		Content:        t.req.Message,
	})
	if err != nil {
		return nil, fmt.Errorf("store user message: %w", err)
	}
	t.userMessageID = saved.ID

	if uc.opts.HistoryLimit < 0 {
		return []entity.ChatMessage{question}, nil
	}

	messages, err := uc.conversations.ListMessages(ctx, t.req.TenantID, t.conversation.ID, uc.opts.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	history := make([]entity.ChatMessage, 0, len(messages))
	for _, m := range messages {
		history = append(history, entity.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return history, nil
}

func (uc *ChatUsecase) completionResult(t *turn, completion *entity.Completion, err error) entity.CompletionResult {
	result := entity.CompletionResult{Text: completion.Text, Err: err}

	if completion.Usage != nil {
		result.Usage = *completion.Usage
		return result
	}

	// Streams cut short never carry the provider's usage chunk.
	promptChars := utf8.RuneCountInString(t.generation.System)
	for _, m := range t.generation.Messages {
		promptChars += utf8.RuneCountInString(m.Content)
	}
	result.Usage = entity.TokenUsage{
		InputTokens:  estimateTokens(promptChars),
		OutputTokens: estimateTokens(utf8.RuneCountInString(completion.Text)),
	}
	result.UsageEstimated = true
	return result
}

// completionHook persists the outcome of one generation exactly once.
type completionHook struct {
	once      sync.Once
	ctx       context.Context
	uc        *ChatUsecase
	turn      *turn
	messageID string
}

// newCompletionHook detaches from ctx so writes still land after a
// disconnect, keeping ctx's values for logging.
func (uc *ChatUsecase) newCompletionHook(ctx context.Context, t *turn) *completionHook {
	return &completionHook{
		ctx:  context.WithoutCancel(ctx),
		uc:   uc,
		turn: t,
	}
}

// fire stores the result on its first call and returns the assistant
// message id, empty when nothing was stored.
func (h *completionHook) fire(result entity.CompletionResult, status string) string {
	h.once.Do(func() {
		ctx, cancel := context.WithTimeout(h.ctx, hookWriteTimeout)
		defer cancel()
		h.messageID = h.uc.onCompletion(ctx, h.turn, result, status)
	})
	return h.messageID
}

func (uc *ChatUsecase) onCompletion(ctx context.Context, t *turn, result entity.CompletionResult, status string) string {
	if result.Err != nil {
		ctxzap.Warn(ctx, "generation ended early",
			zap.String("status", status),
			zap.Int("partial_length", len(result.Text)),
			zap.Error(result.Err),
		)
	}

	chunkIDs := make([]string, 0, len(t.chunks))
	for _, c := range t.chunks {
		chunkIDs = append(chunkIDs, c.ChunkID)
	}

	messageID := ""
	if t.conversation != nil && result.Text != "" {
		saved, err := uc.conversations.AddMessage(ctx, t.req.TenantID, entity.Message{
			ID:             uuid.New().String(),
			ConversationID: t.conversation.ID,
			Role:           entity.MessageRoleAssistant,
			Content:        result.Text,
			ChunkIDs:       chunkIDs,
			TokenCount:     result.Usage.Total(),
		})
		if err != nil {
			ctxzap.Error(ctx, "failed to store assistant message", zap.Error(err))
		} else {
			messageID = saved.ID
		}
	}

	metadata := map[string]any{
		"source":      t.req.Source,
		"status":      status,
		"chunks_used": len(t.chunks),
		"chunk_ids":   chunkIDs,
	}
	if t.conversation != nil {
		metadata["conversation_id"] = t.conversation.ID
		metadata["user_message_id"] = t.userMessageID
	}
	if result.UsageEstimated {
		metadata["usage_estimated"] = true
	}

	if _, err := uc.usage.RecordUsage(ctx, entity.UsageParams{
		TenantID:     t.req.TenantID,
		ActorID:      t.req.UserID,
		CallType:     entity.CallTypeChatCompletion,
		Model:        t.generation.Model,
		InputTokens:  result.Usage.InputTokens,
		OutputTokens: result.Usage.OutputTokens,
		Metadata:     metadata,
	}); err != nil {
		ctxzap.Error(ctx, "failed to record completion usage", zap.Error(err))
	}

	return messageID
}

// AnswerChannelMessage answers a message-channel question without storing a
// conversation, meters the inbound and outbound messages and fits the reply
// into one channel message.
func (uc *ChatUsecase) AnswerChannelMessage(
	ctx context.Context,
	tenant entity.TenantID,
	actor string,
	body string,
	messageSID string,
) (*entity.ChannelMessageResponse, error) {
	answer, err := uc.Answer(ctx, entity.ChatRequest{
		TenantID:  tenant,
		UserID:    actor,
		Message:   body,
		Source:    uc.opts.ChannelSource,
		Stateless: true,
	})
	if err != nil {
		return nil, err
	}

	for _, direction := range []entity.ChannelDirection{entity.ChannelDirectionInbound, entity.ChannelDirectionOutbound} {
		if _, err := uc.usage.RecordChannelMessage(ctx, entity.ChannelMessageParams{
			TenantID:   tenant,
			ActorID:    actor,
			MessageSID: messageSID,
			Direction:  direction,
		}); err != nil {
			return nil, fmt.Errorf("record channel message: %w", err)
		}
	}

	reply := truncateRunes(FormatForChannel(answer.Text), uc.opts.ReplyMaxChars)

	ctxzap.Info(ctx, "channel reply ready", zap.Int("reply_length", utf8.RuneCountInString(reply)))

	return &entity.ChannelMessageResponse{Reply: reply}, nil
}

func (uc *ChatUsecase) ListConversations(
	ctx context.Context,
	tenant entity.TenantID,
	userID string,
) (*entity.ListConversationsResponse, error) {
	if userID == "" {
		return nil, entity.ErrMissingActor
	}

	conversations, err := uc.conversations.List(ctx, tenant, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	return &entity.ListConversationsResponse{Conversations: conversations}, nil
}

func (uc *ChatUsecase) GetConversation(
	ctx context.Context,
	tenant entity.TenantID,
	userID string,
	id string,
) (*entity.ConversationDetail, error) {
	if userID == "" {
		return nil, entity.ErrMissingActor
	}

	conv, err := uc.conversations.Get(ctx, tenant, userID, id)
	if err != nil {
		return nil, err
	}

	messages, err := uc.conversations.ListMessages(ctx, tenant, id, 0)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	return &entity.ConversationDetail{Conversation: *conv, Messages: messages}, nil
}

func conversationIDOf(t *turn) string {
	if t.conversation == nil {
		return ""
	}
	return t.conversation.ID
}

func conversationTitle(message string) string {
	title := truncateRunes(message, titleMaxChars)
	if title == "" {
		return defaultTitle
	}
	return title
}

// truncateRunes cuts s to limit characters and marks the cut with "...".
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}

func estimateTokens(chars int) int {
	return (chars + charsPerToken - 1) / charsPerToken
}
