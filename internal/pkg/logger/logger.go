package logger

import (
	"context"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// AddFields adds fields to the logger in context and returns new context
func AddFields(ctx context.Context, fields ...zap.Field) context.Context {
	logger := ctxzap.Extract(ctx)
	return ctxzap.ToContext(ctx, logger.With(fields...))
}

// WithAction adds "action" field to context logger to describe the flow
func WithAction(ctx context.Context, action string) context.Context {
	return AddFields(ctx, zap.String("action", action))
}

// WithTenant tags every later log line with the tenant and acting user.
func WithTenant(ctx context.Context, tenant entity.TenantID, userID string) context.Context {
	fields := []zap.Field{zap.String("tenant_id", tenant.String())}
	if userID != "" {
		fields = append(fields, zap.String("user_id", userID))
	}
	return AddFields(ctx, fields...)
}
