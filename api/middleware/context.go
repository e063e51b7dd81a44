package middleware

import "context"

type contextKey string

const (
	ctxUserID  contextKey = "user_id"
	ctxRole    contextKey = "actor_role"
	ctxEmail   contextKey = "user_email"
	ctxName    contextKey = "user_name"
	ctxToken   contextKey = "bearer_token"
	ctxOwnerID contextKey = "cart_owner_id"
)

func stringFromContext(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

func UserIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxUserID)
}

func RoleFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxRole)
}

func EmailFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxEmail)
}

func NameFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxName)
}

// TokenFromContext returns the caller's raw bearer token, forwarded to the backend.
func TokenFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxToken)
}

// OwnerIDFromContext returns the cart owner: the user id, or the guest id for anonymous callers.
func OwnerIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxOwnerID)
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithOwnerID injects the cart owner into the context for downstream handlers.
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxOwnerID, ownerID)
}
