package api

import (
	"context"
	"fmt"

	"stocknest/internal/domain/collab"
)

// Scope 请求的生效库存作用域（注入到 context）。
// OwnerID 是本次请求操作的数据归属：本人 id，或经授权校验的共享方 id。
type Scope struct {
	UserID  string      `json:"user_id"`
	OwnerID string      `json:"owner_id"`
	IsOwn   bool        `json:"is_own"`
	Role    collab.Role `json:"role,omitempty"` // IsOwn 时为空
}

// CanWrite 本人或 editor 角色可写。
func (s *Scope) CanWrite() bool {
	return s.IsOwn || s.Role == collab.RoleEditor
}

type scopeContextKey struct{}

// WithScope 注入 Scope 到 context。
func WithScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, scope)
}

// ScopeFrom 从 context 提取 Scope。
func ScopeFrom(ctx context.Context) (*Scope, error) {
	scope, ok := ctx.Value(scopeContextKey{}).(*Scope)
	if !ok || scope == nil {
		return nil, fmt.Errorf("scope not found in context")
	}
	return scope, nil
}

// MustScopeFrom 提取 Scope，缺失时 panic（仅用于已鉴权路由）。
func MustScopeFrom(ctx context.Context) *Scope {
	scope, err := ScopeFrom(ctx)
	if err != nil {
		panic("scope missing from context: middleware not applied?")
	}
	return scope
}
