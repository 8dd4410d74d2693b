package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/facundoguellutn/stoodeochat/internal/integration/llm"
	"github.com/facundoguellutn/stoodeochat/internal/metering"
	"github.com/facundoguellutn/stoodeochat/internal/repository/memory"
	"github.com/facundoguellutn/stoodeochat/internal/usecase/embedding"
	"github.com/facundoguellutn/stoodeochat/internal/usecase/retrieval"
	"github.com/facundoguellutn/stoodeochat/internal/usecase/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testTenant entity.TenantID = "tenant-a"
	testUser                   = "user-1"
)

type unitConnector struct{}

func (unitConnector) Embed(_ context.Context, _ string, texts []string) (*entity.EmbeddingBatch, error) {
	batch := &entity.EmbeddingBatch{InputTokens: len(texts)}
	for range texts {
		batch.Vectors = append(batch.Vectors, []float32{1, 0})
	}
	return batch, nil
}

// scriptedLLM streams reply in space-separated pieces and records every request.
type scriptedLLM struct {
	reply    string
	usage    *entity.TokenUsage
	err      error
	requests []entity.GenerationRequest
}

func (s *scriptedLLM) Stream(
	_ context.Context,
	req entity.GenerationRequest,
	onDelta func(delta string) error,
) (*entity.Completion, error) {
	s.requests = append(s.requests, req)

	var text strings.Builder
	for _, word := range strings.SplitAfter(s.reply, " ") {
		text.WriteString(word)
		if onDelta != nil {
			if err := onDelta(word); err != nil {
				return &entity.Completion{Text: text.String()}, err
			}
		}
	}

	if s.err != nil {
		return &entity.Completion{Text: text.String()}, s.err
	}
	return &entity.Completion{Text: text.String(), Usage: s.usage}, nil
}

// blockingLLM emits one delta and then waits for ctx to end.
type blockingLLM struct{}

func (blockingLLM) Stream(ctx context.Context, _ entity.GenerationRequest, onDelta func(string) error) (*entity.Completion, error) {
	if onDelta != nil {
		_ = onDelta("parcial")
	}
	<-ctx.Done()
	return &entity.Completion{Text: "parcial"}, fmt.Errorf("%w: stream completion: %w", entity.ErrProvider, ctx.Err())
}

type fixture struct {
	store *memory.Store
	uc    *ChatUsecase
}

func newFixture(t *testing.T, connector LLMConnector, opts Options) *fixture {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore()
	_, err := store.Tenants().Upsert(ctx, entity.Tenant{ID: testTenant, Name: "Acme"})
	require.NoError(t, err)

	meter := metering.NewMeter(store.Usage(), metering.DefaultPriceTable(), metering.DefaultChannelPricing())
	resolver := tenant.NewResolver(store.Tenants(), time.Minute)
	searcher := retrieval.NewSearcher(embedding.NewService(unitConnector{}, meter, 0, "", 2), resolver, store.Chunks(), retrieval.DefaultOptions())

	return &fixture{
		store: store,
		uc:    NewUsecase(store.Conversations(), searcher, resolver, connector, meter, opts),
	}
}

func (f *fixture) indexFAQ(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.store.Documents().CreateWithVersion(ctx,
		entity.Document{ID: "doc-1", TenantID: testTenant, Name: "faq.md"},
		entity.DocumentVersion{ID: "ver-1", Number: 1},
	))
	require.NoError(t, f.store.Chunks().InsertBatch(ctx, []*entity.Chunk{{
		ID:         "chunk-1",
		VersionID:  "ver-1",
		DocumentID: "doc-1",
		TenantID:   testTenant,
		Text:       "Abrimos de 9 a 18 hs.",
		Embedding:  []float32{1, 0},
	}}))
	require.NoError(t, f.store.Documents().ActivateVersion(ctx, testTenant, "doc-1", "ver-1"))
}

func (f *fixture) usage(callType entity.CallType) []entity.UsageRecord {
	var out []entity.UsageRecord
	for _, r := range f.store.Usage().Records(testTenant) {
		if r.CallType == callType {
			out = append(out, r)
		}
	}
	return out
}

func TestStreamAnswer_NewConversation(t *testing.T) {
	conn := &scriptedLLM{reply: "Abrimos de 9 a 18.", usage: &entity.TokenUsage{InputTokens: 120, OutputTokens: 8}}
	f := newFixture(t, conn, DefaultOptions())
	f.indexFAQ(t)
	ctx := context.Background()

	var deltas []string
	answer, err := f.uc.StreamAnswer(ctx, entity.ChatRequest{
		TenantID: testTenant,
		UserID:   testUser,
		Message:  "  ¿Qué horario tienen?  ",
	}, func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "Abrimos de 9 a 18.", answer.Text)
	assert.Equal(t, "Abrimos de 9 a 18.", strings.Join(deltas, ""))
	assert.NotEmpty(t, answer.ConversationID)
	assert.NotEmpty(t, answer.MessageID)
	require.Len(t, answer.Chunks, 1)
	assert.False(t, answer.UsageEstimated)

	require.Len(t, conn.requests, 1)
	req := conn.requests[0]
	assert.Equal(t, entity.DefaultLLMModel, req.Model)
	assert.Contains(t, req.System, `source="faq.md"`)
	assert.Contains(t, req.System, "Abrimos de 9 a 18 hs.")
	assert.Equal(t, []entity.ChatMessage{{Role: "user", Content: "¿Qué horario tienen?"}}, req.Messages)

	detail, err := f.uc.GetConversation(ctx, testTenant, testUser, answer.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "¿Qué horario tienen?", detail.Title)
	require.Len(t, detail.Messages, 2)
	assert.Equal(t, entity.MessageRoleUser, detail.Messages[0].Role)
	assert.Equal(t, entity.MessageRoleAssistant, detail.Messages[1].Role)
	assert.Equal(t, []string{"chunk-1"}, detail.Messages[1].ChunkIDs)
	assert.Equal(t, 128, detail.Messages[1].TokenCount)

	records := f.usage(entity.CallTypeChatCompletion)
	require.Len(t, records, 1)
	assert.Equal(t, 120, records[0].InputTokens)
	assert.Equal(t, 8, records[0].OutputTokens)
	assert.Equal(t, answer.ConversationID, records[0].Metadata["conversation_id"])
	assert.Equal(t, detail.Messages[0].ID, records[0].Metadata["user_message_id"])
	assert.Equal(t, "completed", records[0].Metadata["status"])
	assert.Equal(t, "web", records[0].Metadata["source"])
	assert.Equal(t, 1, records[0].Metadata["chunks_used"])
	assert.NotContains(t, records[0].Metadata, "usage_estimated")
}

func TestStreamAnswer_NoDocumentsStillAnswers(t *testing.T) {
	conn := &scriptedLLM{reply: "No tengo esa información."}
	f := newFixture(t, conn, DefaultOptions())

	answer, err := f.uc.Answer(context.Background(), entity.ChatRequest{TenantID: testTenant, UserID: testUser, Message: "hola"})
	require.NoError(t, err)

	assert.Empty(t, answer.Chunks)
	require.Len(t, conn.requests, 1)
	assert.Contains(t, conn.requests[0].System, retrieval.NoDocumentsMarker)
	assert.True(t, answer.UsageEstimated)

	records := f.usage(entity.CallTypeChatCompletion)
	require.Len(t, records, 1)
	assert.Equal(t, true, records[0].Metadata["usage_estimated"])
	assert.Positive(t, records[0].InputTokens)
	assert.Equal(t, estimateTokens(utf8.RuneCountInString("No tengo esa información.")), records[0].OutputTokens)
}

func TestStreamAnswer_ContinuesConversationWithHistory(t *testing.T) {
	conn := &scriptedLLM{reply: "respuesta"}
	f := newFixture(t, conn, Options{HistoryLimit: 3})
	ctx := context.Background()

	first, err := f.uc.Answer(ctx, entity.ChatRequest{TenantID: testTenant, UserID: testUser, Message: "uno"})
	require.NoError(t, err)
	_, err = f.uc.Answer(ctx, entity.ChatRequest{TenantID: testTenant, UserID: testUser, ConversationID: first.ConversationID, Message: "dos"})
	require.NoError(t, err)
	second, err := f.uc.Answer(ctx, entity.ChatRequest{TenantID: testTenant, UserID: testUser, ConversationID: first.ConversationID, Message: "tres"})
	require.NoError(t, err)

	assert.Equal(t, first.ConversationID, second.ConversationID)
	require.Len(t, conn.requests, 3)
	assert.Equal(t, []entity.ChatMessage{
		{Role: "user", Content: "dos"},
		{Role: "assistant", Content: "respuesta"},
		{Role: "user", Content: "tres"},
	}, conn.requests[2].Messages)

	list, err := f.uc.ListConversations(ctx, testTenant, testUser)
	require.NoError(t, err)
	assert.Len(t, list.Conversations, 1)
}

func TestStreamAnswer_Validation(t *testing.T) {
	conn := &scriptedLLM{reply: "x"}
	f := newFixture(t, conn, DefaultOptions())

	tests := []struct {
		name    string
		req     entity.ChatRequest
		wantErr error
	}{
		{"missing tenant", entity.ChatRequest{UserID: testUser, Message: "hola"}, entity.ErrMissingTenant},
		{"missing user", entity.ChatRequest{TenantID: testTenant, Message: "hola"}, entity.ErrMissingActor},
		{"blank message", entity.ChatRequest{TenantID: testTenant, UserID: testUser, Message: " \n "}, entity.ErrMissingField},
		{"unknown tenant", entity.ChatRequest{TenantID: "ghost", UserID: testUser, Message: "hola"}, entity.ErrTenantNotFound},
		{"foreign conversation", entity.ChatRequest{TenantID: testTenant, UserID: testUser, ConversationID: "nope", Message: "hola"}, entity.ErrConversationNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.uc.Answer(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Empty(t, conn.requests)
	assert.Empty(t, f.store.Usage().Records(testTenant))
}

func TestStreamAnswer_ClientDisconnectKeepsPartialAnswer(t *testing.T) {
	f := newFixture(t, llm.NewMockConnector(zap.NewNop()), DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := f.uc.StreamAnswer(ctx, entity.ChatRequest{TenantID: testTenant, UserID: testUser, Message: "horarios"}, func(string) error {
		cancel()
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)

	list, err := f.uc.ListConversations(context.Background(), testTenant, testUser)
	require.NoError(t, err)
	require.Len(t, list.Conversations, 1)

	detail, err := f.uc.GetConversation(context.Background(), testTenant, testUser, list.Conversations[0].ID)
	require.NoError(t, err)
	require.Len(t, detail.Messages, 2)
	assert.Equal(t, "Respuesta", detail.Messages[1].Content)

	records := f.usage(entity.CallTypeChatCompletion)
	require.Len(t, records, 1)
	assert.Equal(t, "cancelled", records[0].Metadata["status"])
	assert.Equal(t, true, records[0].Metadata["usage_estimated"])
}

func TestStreamAnswer_GenerationTimeout(t *testing.T) {
	f := newFixture(t, blockingLLM{}, Options{GenerationTimeout: 20 * time.Millisecond})

	_, err := f.uc.Answer(context.Background(), entity.ChatRequest{TenantID: testTenant, UserID: testUser, Message: "hola"})
	require.ErrorIs(t, err, entity.ErrGenerationTimeout)
	require.ErrorIs(t, err, entity.ErrProvider)

	records := f.usage(entity.CallTypeChatCompletion)
	require.Len(t, records, 1)
	assert.Equal(t, "timeout", records[0].Metadata["status"])
}

func TestStreamAnswer_ProviderFailureWithoutText(t *testing.T) {
	providerErr := fmt.Errorf("%w: HTTP 401", entity.ErrProvider)
	f := newFixture(t, &scriptedLLM{err: providerErr}, DefaultOptions())
	ctx := context.Background()

	_, err := f.uc.Answer(ctx, entity.ChatRequest{TenantID: testTenant, UserID: testUser, Message: "hola"})
	require.ErrorIs(t, err, entity.ErrProvider)

	list, err := f.uc.ListConversations(ctx, testTenant, testUser)
	require.NoError(t, err)
	require.Len(t, list.Conversations, 1)
	detail, err := f.uc.GetConversation(ctx, testTenant, testUser, list.Conversations[0].ID)
	require.NoError(t, err)
	require.Len(t, detail.Messages, 1, "empty answers are not stored")

	records := f.usage(entity.CallTypeChatCompletion)
	require.Len(t, records, 1)
	assert.Equal(t, "failed", records[0].Metadata["status"])
}

func TestStreamAnswer_PanickingCallbackStillRecordsUsage(t *testing.T) {
	f := newFixture(t, &scriptedLLM{reply: "hola mundo"}, DefaultOptions())

	assert.Panics(t, func() {
		_, _ = f.uc.StreamAnswer(context.Background(), entity.ChatRequest{TenantID: testTenant, UserID: testUser, Message: "hola"},
			func(string) error { panic("writer gone") })
	})

	records := f.usage(entity.CallTypeChatCompletion)
	require.Len(t, records, 1)
	assert.Equal(t, "interrupted", records[0].Metadata["status"])
}

func TestStreamAnswer_DeltaErrorStopsGeneration(t *testing.T) {
	f := newFixture(t, &scriptedLLM{reply: "uno dos tres"}, DefaultOptions())
	writeErr := errors.New("broken pipe")

	_, err := f.uc.StreamAnswer(context.Background(), entity.ChatRequest{TenantID: testTenant, UserID: testUser, Message: "hola"},
		func(string) error { return writeErr })
	require.ErrorIs(t, err, writeErr)

	records := f.usage(entity.CallTypeChatCompletion)
	require.Len(t, records, 1)
	assert.Equal(t, "failed", records[0].Metadata["status"])
}

func TestAnswerChannelMessage(t *testing.T) {
	reply := "## Horarios\n\nAbrimos **de 9 a 18**. Ver [web](https://acme.test)."
	f := newFixture(t, &scriptedLLM{reply: reply, usage: &entity.TokenUsage{InputTokens: 10, OutputTokens: 5}}, DefaultOptions())
	ctx := context.Background()

	resp, err := f.uc.AnswerChannelMessage(ctx, testTenant, "+5491100000000", "¿horarios?", "SM123")
	require.NoError(t, err)
	assert.Equal(t, "*Horarios*\n\nAbrimos *de 9 a 18*. Ver web (https://acme.test).", resp.Reply)

	list, err := f.uc.ListConversations(ctx, testTenant, "+5491100000000")
	require.NoError(t, err)
	assert.Empty(t, list.Conversations, "channel messages keep no conversation")

	completions := f.usage(entity.CallTypeChatCompletion)
	require.Len(t, completions, 1)
	assert.Equal(t, "whatsapp", completions[0].Metadata["source"])
	assert.NotContains(t, completions[0].Metadata, "conversation_id")

	channel := f.usage(entity.CallTypeMessageChannel)
	require.Len(t, channel, 2)
	assert.Equal(t, "inbound", channel[0].Metadata["direction"])
	assert.Equal(t, "outbound", channel[1].Metadata["direction"])
	assert.Equal(t, "SM123", channel[0].Metadata["message_sid"])
}

func TestAnswerChannelMessage_TruncatesLongReplies(t *testing.T) {
	f := newFixture(t, &scriptedLLM{reply: strings.Repeat("ñandú ", 40)}, Options{ReplyMaxChars: 20})

	resp, err := f.uc.AnswerChannelMessage(context.Background(), testTenant, "+549", "hola", "SM1")
	require.NoError(t, err)
	assert.Equal(t, "ñandú ñandú ñandú ña...", resp.Reply)
}

func TestAnswerChannelMessage_FailureRecordsNoChannelFees(t *testing.T) {
	f := newFixture(t, &scriptedLLM{err: entity.ErrProvider}, DefaultOptions())

	_, err := f.uc.AnswerChannelMessage(context.Background(), testTenant, "+549", "hola", "SM1")
	require.ErrorIs(t, err, entity.ErrProvider)
	assert.Empty(t, f.usage(entity.CallTypeMessageChannel))
}

func TestConversationsRequireUser(t *testing.T) {
	f := newFixture(t, &scriptedLLM{}, DefaultOptions())

	_, err := f.uc.ListConversations(context.Background(), testTenant, "")
	require.ErrorIs(t, err, entity.ErrMissingActor)
	_, err = f.uc.GetConversation(context.Background(), testTenant, "", "c1")
	require.ErrorIs(t, err, entity.ErrMissingActor)
}

func TestConversationTitle(t *testing.T) {
	assert.Equal(t, "Nueva conversación", conversationTitle(""))
	assert.Equal(t, "corto", conversationTitle("corto"))

	exact := strings.Repeat("a", 50)
	assert.Equal(t, exact, conversationTitle(exact))
	assert.Equal(t, exact+"...", conversationTitle(exact+"b"))
}

func TestFormatForChannel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"**negrita**", "*negrita*"},
		{"# Título\ntexto", "*Título*\ntexto"},
		{"- uno\n- dos", "• uno\n• dos"},
		{"[sitio](https://x.test)", "sitio (https://x.test)"},
		{"  sin cambios  ", "sin cambios"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatForChannel(tt.in), tt.in)
	}
}
