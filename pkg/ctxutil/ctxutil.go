// Package ctxutil carries the registrar session through context: the acting
// registrar, its privilege level, and the request id. Flows read these values
// instead of relying on ambient state.
package ctxutil

import "context"

type ctxKey string

const (
	registrarIDKey ctxKey = "registrar_id"
	superuserKey   ctxKey = "superuser"
	requestIDKey   ctxKey = "request_id"
)

// WithRegistrarID stores the acting registrar id in the context.
func WithRegistrarID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, registrarIDKey, id)
}

// RegistrarIDFromCtx extracts the acting registrar id.
// Returns "" and false if the value is missing or empty.
func RegistrarIDFromCtx(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(registrarIDKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// WithSuperuser marks the session as having superuser privilege.
func WithSuperuser(ctx context.Context, superuser bool) context.Context {
	return context.WithValue(ctx, superuserKey, superuser)
}

// IsSuperuser reports whether the session holds superuser privilege.
func IsSuperuser(ctx context.Context) bool {
	v, _ := ctx.Value(superuserKey).(bool)
	return v
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromCtx extracts the request ID from the context.
// Returns an empty string if absent.
func RequestIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
