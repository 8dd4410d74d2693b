package chat

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers chat, conversation and message-channel routes
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/chat", h.Chat)

	r.Route("/conversations", func(r chi.Router) {
		r.Get("/", h.ListConversations)
		r.Get("/{conversation_id}", h.GetConversation)
	})

	r.Post("/channel/messages", h.ChannelMessage)
}
