package chat

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/facundoguellutn/stoodeochat/internal/api/middleware"
	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/facundoguellutn/stoodeochat/internal/pkg/logger"
	"github.com/facundoguellutn/stoodeochat/internal/pkg/response"
	"github.com/go-chi/chi/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const (
	maxBodySize          = 64 << 10
	conversationIDHeader = "X-Conversation-Id"
)

type Handler struct {
	usecase ChatUsecase
}

func NewHandler(usecase ChatUsecase) *Handler {
	return &Handler{usecase: usecase}
}

// Chat handles POST /chat. Clients accepting text/event-stream get the
// answer as server-sent events: "delta" events with text pieces, then one
// "done" event carrying the full answer, or an "error" event. Other clients
// get the full answer as JSON.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "Chat")
	id := middleware.IdentityFrom(ctx)

	var body entity.ChatHTTPRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&body); err != nil {
		response.UsecaseError(ctx, w, fmt.Errorf("%w: invalid JSON body: %v", entity.ErrInvalidParameter, err))
		return
	}

	req := entity.ChatRequest{
		TenantID:       id.TenantID,
		UserID:         id.UserID,
		ConversationID: body.ConversationID,
		Message:        body.Message,
	}

	if !wantsEventStream(r) {
		answer, err := h.usecase.Answer(ctx, req)
		if err != nil {
			response.UsecaseError(ctx, w, err)
			return
		}
		w.Header().Set(conversationIDHeader, answer.ConversationID)
		response.Success(w, answer)
		return
	}

	stream := newEventStream(w)
	answer, err := h.usecase.StreamAnswer(ctx, req, func(delta string) error {
		return stream.send("delta", entity.ChatStreamDelta{Text: delta})
	})
	if err != nil {
		if !stream.started {
			response.UsecaseError(ctx, w, err)
			return
		}
		status, message := response.StatusFor(err)
		ctxzap.Warn(ctx, "chat stream ended with error", zap.Int("status", status), zap.Error(err))
		_ = stream.send("error", entity.ErrorResponse{Error: http.StatusText(status), Message: message})
		return
	}

	if err := stream.send("done", answer); err != nil {
		ctxzap.Warn(ctx, "failed to send final event", zap.Error(err))
	}
}

// ListConversations handles GET /conversations
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "ListConversations")
	id := middleware.IdentityFrom(ctx)

	resp, err := h.usecase.ListConversations(ctx, id.TenantID, id.UserID)
	if err != nil {
		response.UsecaseError(ctx, w, err)
		return
	}

	response.Success(w, resp)
}

// GetConversation handles GET /conversations/{conversation_id}
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversation_id")
	ctx := logger.AddFields(r.Context(),
		zap.String("conversation_id", conversationID),
		zap.String("action", "GetConversation"),
	)
	id := middleware.IdentityFrom(ctx)

	detail, err := h.usecase.GetConversation(ctx, id.TenantID, id.UserID, conversationID)
	if err != nil {
		response.UsecaseError(ctx, w, err)
		return
	}

	response.Success(w, detail)
}

// ChannelMessage handles POST /channel/messages, called by the message
// channel adapter with the sender as user.
func (h *Handler) ChannelMessage(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "ChannelMessage")
	id := middleware.IdentityFrom(ctx)

	var body entity.ChannelMessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&body); err != nil {
		response.UsecaseError(ctx, w, fmt.Errorf("%w: invalid JSON body: %v", entity.ErrInvalidParameter, err))
		return
	}

	ctx = logger.AddFields(ctx, zap.String("message_sid", body.MessageSID))

	resp, err := h.usecase.AnswerChannelMessage(ctx, id.TenantID, id.UserID, body.Body, body.MessageSID)
	if err != nil {
		response.UsecaseError(ctx, w, err)
		return
	}

	response.Success(w, resp)
}

func wantsEventStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}
