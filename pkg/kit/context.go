package kit

import "context"

type contextKey string

const (
	TransportKey contextKey = "kit_transport" // "http", "mcp"
	RequestIDKey contextKey = "kit_request_id"
	ClientKey    contextKey = "kit_client"
)

func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, TransportKey, t)
}
func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(TransportKey).(string); ok {
		return v
	}
	return "http"
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(RequestIDKey).(string)
	return v
}

// WithClient records the caller's address, used for per-client limits.
func WithClient(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, ClientKey, addr)
}
func GetClient(ctx context.Context) string {
	v, _ := ctx.Value(ClientKey).(string)
	return v
}
