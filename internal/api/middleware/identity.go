package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/facundoguellutn/stoodeochat/internal/pkg/logger"
	"github.com/facundoguellutn/stoodeochat/internal/pkg/response"
)

const (
	TenantHeader = "X-Tenant-ID"
	UserHeader   = "X-User-ID"
)

type identityKey struct{}

// Identity is who is calling, as asserted by the auth gateway in front of
// the service.
type Identity struct {
	TenantID entity.TenantID
	UserID   string
}

// RequireIdentity rejects requests without tenant and user headers.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := Identity{
			TenantID: entity.TenantID(strings.TrimSpace(r.Header.Get(TenantHeader))),
			UserID:   strings.TrimSpace(r.Header.Get(UserHeader)),
		}

		if err := id.TenantID.Validate(); err != nil {
			response.UsecaseError(r.Context(), w, err)
			return
		}
		if id.UserID == "" {
			response.UsecaseError(r.Context(), w, entity.ErrMissingActor)
			return
		}

		ctx := logger.WithTenant(r.Context(), id.TenantID, id.UserID)
		ctx = context.WithValue(ctx, identityKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFrom returns the identity stored by RequireIdentity.
func IdentityFrom(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id
}

// WithIdentity stores id the way RequireIdentity does.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}
