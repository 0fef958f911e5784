package logging

import (
	"context"
	"log/slog"
)

type ctxField int

const (
	fieldRequestID ctxField = iota
	fieldUser
	fieldRoute
)

// fieldNames are the attribute keys the handler emits, in emission order.
var fieldNames = [...]string{
	fieldRequestID: "request_id",
	fieldUser:      "user",
	fieldRoute:     "route",
}

func withField(ctx context.Context, f ctxField, v string) context.Context {
	return context.WithValue(ctx, f, v)
}

func field(ctx context.Context, f ctxField) string {
	v, _ := ctx.Value(f).(string)
	return v
}

// WithRequestID attaches the request ID to every record logged with ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withField(ctx, fieldRequestID, id)
}

// GetRequestID returns the request ID in ctx, or "".
func GetRequestID(ctx context.Context) string { return field(ctx, fieldRequestID) }

// WithUser attaches the authenticated caller.
func WithUser(ctx context.Context, user string) context.Context {
	return withField(ctx, fieldUser, user)
}

// GetUser returns the authenticated caller in ctx, or "".
func GetUser(ctx context.Context) string { return field(ctx, fieldUser) }

// WithRoute attaches the match key of the resolved routing rule.
func WithRoute(ctx context.Context, route string) context.Context {
	return withField(ctx, fieldRoute, route)
}

// GetRoute returns the route match key in ctx, or "".
func GetRoute(ctx context.Context) string { return field(ctx, fieldRoute) }

// extractContextFields returns the non-empty request fields set on ctx.
func extractContextFields(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	for f, name := range fieldNames {
		if v := field(ctx, ctxField(f)); v != "" {
			attrs = append(attrs, slog.String(name, v))
		}
	}
	return attrs
}
