package memory

import (
	"context"
	"sort"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/facundoguellutn/stoodeochat/internal/repository"
)

var _ repository.ConversationRepository = &ConversationMemory{}

type ConversationMemory struct {
	store *Store
}

func (r *ConversationMemory) Create(_ context.Context, conv entity.Conversation) (*entity.Conversation, error) {
	if err := conv.TenantID.Validate(); err != nil {
		return nil, err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	byID, ok := r.store.conversations[conv.TenantID]
	if !ok {
		byID = make(map[string]*conversationEntry)
		r.store.conversations[conv.TenantID] = byID
	}

	now := r.store.now()
	conv.CreatedAt, conv.UpdatedAt = now, now
	byID[conv.ID] = &conversationEntry{conv: conv}

	out := conv
	return &out, nil
}

func (r *ConversationMemory) Get(
	_ context.Context,
	tenant entity.TenantID,
	userID string,
	id string,
) (*entity.Conversation, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	entry, ok := r.store.conversations[tenant][id]
	if !ok || entry.conv.UserID != userID {
		return nil, entity.ErrConversationNotFound
	}

	out := entry.conv
	return &out, nil
}

func (r *ConversationMemory) List(
	_ context.Context,
	tenant entity.TenantID,
	userID string,
) ([]*entity.Conversation, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	conversations := make([]*entity.Conversation, 0)
	for _, entry := range r.store.conversations[tenant] {
		if entry.conv.UserID != userID {
			continue
		}
		out := entry.conv
		conversations = append(conversations, &out)
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})

	return conversations, nil
}

func (r *ConversationMemory) AddMessage(
	_ context.Context,
	tenant entity.TenantID,
	msg entity.Message,
) (*entity.Message, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	entry, ok := r.store.conversations[tenant][msg.ConversationID]
	if !ok {
		return nil, entity.ErrConversationNotFound
	}

	now := r.store.now()
	msg.CreatedAt = now
	stored := cloneMessage(&msg)
	entry.messages = append(entry.messages, stored)
	entry.conv.UpdatedAt = now

	return cloneMessage(stored), nil
}

func (r *ConversationMemory) ListMessages(
	_ context.Context,
	tenant entity.TenantID,
	conversationID string,
	limit int,
) ([]*entity.Message, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	entry, ok := r.store.conversations[tenant][conversationID]
	if !ok {
		return nil, entity.ErrConversationNotFound
	}

	messages := entry.messages
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	out := make([]*entity.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, cloneMessage(m))
	}
	return out, nil
}
