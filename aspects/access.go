package aspects

import (
	"context"
	"fmt"

	"github.com/gocrud/bean/ioc"
)

// Authorizer 决定调用能否执行，返回非 nil 错误时目标方法不会执行。
type Authorizer interface {
	Authorize(ctx context.Context, m *ioc.Method, args []any) error
}

// AuthorizerFunc 函数形式的 Authorizer
type AuthorizerFunc func(ctx context.Context, m *ioc.Method, args []any) error

func (f AuthorizerFunc) Authorize(ctx context.Context, m *ioc.Method, args []any) error {
	return f(ctx, m, args)
}

// Access 在调用前执行授权检查。
func Access(a Authorizer) ioc.Interceptor {
	return ioc.InterceptorFunc(func(inv *ioc.Invocation) (any, error) {
		if err := a.Authorize(inv.Context(), inv.Method, inv.Args); err != nil {
			return nil, err
		}
		return inv.Proceed()
	})
}

type rolesKey struct{}

// WithRoles 返回携带调用方角色的上下文。
func WithRoles(ctx context.Context, roles ...string) context.Context {
	return context.WithValue(ctx, rolesKey{}, roles)
}

// RolesFrom 读取上下文中的角色。
func RolesFrom(ctx context.Context) []string {
	roles, _ := ctx.Value(rolesKey{}).([]string)
	return roles
}

// RequireRoles 调用方至少拥有其中一个角色。
func RequireRoles(roles ...string) Authorizer {
	return AuthorizerFunc(func(ctx context.Context, m *ioc.Method, _ []any) error {
		for _, have := range RolesFrom(ctx) {
			for _, want := range roles {
				if have == want {
					return nil
				}
			}
		}
		return fmt.Errorf("%w: %s requires one of %v", ErrAccessDenied, m.FullName(), roles)
	})
}
