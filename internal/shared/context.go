package shared

import "context"

type scopeContextKey struct{}

// Scope identifies the tenant and actor behind a request. Both values are
// issued by the identity service and are passed through without validation.
type Scope struct {
	CompanyID int64
	ActorID   int64
}

// ContextWithScope stores the request scope in context.
func ContextWithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, scope)
}

// ScopeFromContext extracts the request scope from context.
func ScopeFromContext(ctx context.Context) Scope {
	scope, _ := ctx.Value(scopeContextKey{}).(Scope)
	return scope
}
