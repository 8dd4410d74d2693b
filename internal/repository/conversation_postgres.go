package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConversationRepository defines the interface for chat conversations and
// their messages. Reads are scoped to tenant and user.
type ConversationRepository interface {
	Create(ctx context.Context, conv entity.Conversation) (*entity.Conversation, error)
	Get(ctx context.Context, tenant entity.TenantID, userID, id string) (*entity.Conversation, error)
	List(ctx context.Context, tenant entity.TenantID, userID string) ([]*entity.Conversation, error)

	AddMessage(ctx context.Context, tenant entity.TenantID, msg entity.Message) (*entity.Message, error)
	// ListMessages returns messages oldest first. A positive limit keeps only
	// the most recent ones.
	ListMessages(ctx context.Context, tenant entity.TenantID, conversationID string, limit int) ([]*entity.Message, error)
}

var _ ConversationRepository = &ConversationPostgres{}

type ConversationPostgres struct {
	db *pgxpool.Pool
}

func NewConversationPostgres(db *pgxpool.Pool) *ConversationPostgres {
	return &ConversationPostgres{db: db}
}

const (
	conversationColumns = `id, tenant_id, user_id, title, created_at, updated_at`
	messageColumns      = `id, conversation_id, role, content, chunk_ids, token_count, created_at`
)

func (r *ConversationPostgres) Create(ctx context.Context, conv entity.Conversation) (*entity.Conversation, error) {
	if err := conv.TenantID.Validate(); err != nil {
		return nil, err
	}

	id, err := toPgUUID(conv.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid conversation ID: %w", err)
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO conversations (id, tenant_id, user_id, title)
		VALUES ($1, $2, $3, $4)
		RETURNING `+conversationColumns,
		id, conv.TenantID.String(), conv.UserID, conv.Title,
	)

	saved, err := scanConversation(row)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	return saved, nil
}

func (r *ConversationPostgres) Get(
	ctx context.Context,
	tenant entity.TenantID,
	userID string,
	id string,
) (*entity.Conversation, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	convID, err := toPgUUID(id)
	if err != nil {
		return nil, entity.ErrConversationNotFound
	}

	row := r.db.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE id = $1 AND tenant_id = $2 AND user_id = $3`,
		convID, tenant.String(), userID,
	)

	conv, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entity.ErrConversationNotFound
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	return conv, nil
}

func (r *ConversationPostgres) List(
	ctx context.Context,
	tenant entity.TenantID,
	userID string,
) ([]*entity.Conversation, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE tenant_id = $1 AND user_id = $2
		ORDER BY updated_at DESC`,
		tenant.String(), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]*entity.Conversation, 0)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}

	return conversations, nil
}

func (r *ConversationPostgres) AddMessage(
	ctx context.Context,
	tenant entity.TenantID,
	msg entity.Message,
) (*entity.Message, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	id, err := toPgUUID(msg.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid message ID: %w", err)
	}
	convID, err := toPgUUID(msg.ConversationID)
	if err != nil {
		return nil, entity.ErrConversationNotFound
	}

	chunkIDs := msg.ChunkIDs
	if chunkIDs == nil {
		chunkIDs = []string{}
	}

	var saved *entity.Message
	err = pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE conversations SET updated_at = now() WHERE id = $1 AND tenant_id = $2`,
			convID, tenant.String(),
		)
		if err != nil {
			return fmt.Errorf("touch conversation: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return entity.ErrConversationNotFound
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO messages (id, conversation_id, tenant_id, role, content, chunk_ids, token_count)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING `+messageColumns,
			id, convID, tenant.String(), string(msg.Role), msg.Content, chunkIDs, msg.TokenCount,
		)

		saved, err = scanMessage(row)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("add message: %w", err)
	}

	return saved, nil
}

func (r *ConversationPostgres) ListMessages(
	ctx context.Context,
	tenant entity.TenantID,
	conversationID string,
	limit int,
) ([]*entity.Message, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	convID, err := toPgUUID(conversationID)
	if err != nil {
		return nil, entity.ErrConversationNotFound
	}

	// NULL disables the limit.
	var limitArg *int
	if limit > 0 {
		limitArg = &limit
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+messageColumns+` FROM (
			SELECT `+messageColumns+`
			FROM messages
			WHERE conversation_id = $1 AND tenant_id = $2
			ORDER BY created_at DESC
			LIMIT $3
		) recent
		ORDER BY created_at`,
		convID, tenant.String(), limitArg,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*entity.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}
