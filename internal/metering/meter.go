// Package metering turns provider calls into append-only, priced usage
// records.
package metering

import (
	"context"
	"fmt"
	"time"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/facundoguellutn/stoodeochat/internal/repository"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const (
	DefaultChannelMessageCost = 0.01
	DefaultChannelModel       = "twilio-whatsapp"
	DefaultChannelSource      = "whatsapp"
)

// ChannelPricing is the flat fee charged per message-channel message.
type ChannelPricing struct {
	Cost   float64
	Model  string
	Source string
}

func DefaultChannelPricing() ChannelPricing {
	return ChannelPricing{
		Cost:   DefaultChannelMessageCost,
		Model:  DefaultChannelModel,
		Source: DefaultChannelSource,
	}
}

type Meter struct {
	repo    repository.UsageRepository
	prices  PriceTable
	channel ChannelPricing
	now     func() time.Time
}

// NewMeter keeps its own copy of prices; later changes to the caller's table
// are not observed.
func NewMeter(repo repository.UsageRepository, prices PriceTable, channel ChannelPricing) *Meter {
	if prices == nil {
		prices = DefaultPriceTable()
	}
	if channel.Model == "" {
		channel.Model = DefaultChannelModel
	}
	if channel.Source == "" {
		channel.Source = DefaultChannelSource
	}
	if channel.Cost < 0 {
		channel.Cost = 0
	}

	return &Meter{
		repo:    repo,
		prices:  prices.Clone(),
		channel: channel,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *Meter) ComputeCost(model string, inputTokens, outputTokens int) float64 {
	return m.prices.ComputeCost(model, inputTokens, outputTokens)
}

// RecordUsage prices one external call and persists exactly one record.
func (m *Meter) RecordUsage(ctx context.Context, params entity.UsageParams) (*entity.UsageRecord, error) {
	if params.ActorID == "" {
		return nil, entity.ErrMissingActor
	}
	if err := params.CallType.Validate(); err != nil {
		return nil, err
	}

	in := max(params.InputTokens, 0)
	out := max(params.OutputTokens, 0)

	record := entity.UsageRecord{
		ID:           uuid.New().String(),
		TenantID:     params.TenantID,
		ActorID:      params.ActorID,
		CallType:     params.CallType,
		Model:        params.Model,
		InputTokens:  in,
		OutputTokens: out,
		TotalTokens:  in + out,
		Cost:         m.prices.ComputeCost(params.Model, in, out),
		Metadata:     copyMetadata(params.Metadata),
		CreatedAt:    m.now(),
	}

	if !m.prices.Has(params.Model) {
		ctxzap.Warn(ctx, "no price for model, recording zero cost", zap.String("model", params.Model))
	}

	if err := m.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("record usage: %w", err)
	}

	ctxzap.Debug(ctx, "usage recorded",
		zap.String("call_type", string(record.CallType)),
		zap.String("model", record.Model),
		zap.Int("total_tokens", record.TotalTokens),
		zap.Float64("cost", record.Cost),
	)

	return &record, nil
}

// RecordChannelMessage persists the flat fee for one inbound or outbound
// message-channel message.
func (m *Meter) RecordChannelMessage(ctx context.Context, params entity.ChannelMessageParams) (*entity.UsageRecord, error) {
	if params.ActorID == "" {
		return nil, entity.ErrMissingActor
	}

	switch params.Direction {
	case entity.ChannelDirectionInbound, entity.ChannelDirectionOutbound:
	default:
		return nil, fmt.Errorf("%w: unknown channel direction %q", entity.ErrInvalidParameter, params.Direction)
	}

	record := entity.UsageRecord{
		ID:       uuid.New().String(),
		TenantID: params.TenantID,
		ActorID:  params.ActorID,
		CallType: entity.CallTypeMessageChannel,
		Model:    m.channel.Model,
		Cost:     m.channel.Cost,
		Metadata: map[string]any{
			"source":      m.channel.Source,
			"message_sid": params.MessageSID,
			"direction":   string(params.Direction),
		},
		CreatedAt: m.now(),
	}

	if err := m.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("record channel message: %w", err)
	}

	return &record, nil
}

func copyMetadata(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
