package middleware

import "context"

type ctxKey int

const (
	userIDKey ctxKey = iota
	userEmailKey
	cartSessionKey
	requestIDKey
)

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func withString(ctx context.Context, key ctxKey, v string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, v)
}

// UserIDFromContext returns the authenticated shopper id, or "" for guests.
func UserIDFromContext(ctx context.Context) string { return stringValue(ctx, userIDKey) }

func UserEmailFromContext(ctx context.Context) string { return stringValue(ctx, userEmailKey) }

// CartSessionFromContext returns the guest cart session id, if the request carried one.
func CartSessionFromContext(ctx context.Context) string { return stringValue(ctx, cartSessionKey) }

// RequestIDFromContext returns the id assigned by RequestID.
func RequestIDFromContext(ctx context.Context) string { return stringValue(ctx, requestIDKey) }

func WithUserID(ctx context.Context, userID string) context.Context {
	return withString(ctx, userIDKey, userID)
}

func WithUserEmail(ctx context.Context, email string) context.Context {
	return withString(ctx, userEmailKey, email)
}

func WithCartSession(ctx context.Context, sessionID string) context.Context {
	return withString(ctx, cartSessionKey, sessionID)
}
