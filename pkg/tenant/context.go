package tenant

import (
	"context"
	"strings"
)

type schemaKey struct{}

// WithSchema binds the tenant schema to the context.
func WithSchema(ctx context.Context, schema string) context.Context {
	return context.WithValue(ctx, schemaKey{}, strings.TrimSpace(schema))
}

func SchemaFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	schema, ok := ctx.Value(schemaKey{}).(string)
	if !ok || schema == "" {
		return "", false
	}
	return schema, true
}
