package ioc

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrContainerClosed 容器已关闭。
	ErrContainerClosed = errors.New("ioc: container is closed")
	// ErrNoActiveScope 解析请求作用域 Bean 时上下文中没有活动作用域。
	ErrNoActiveScope = errors.New("ioc: no active request scope")
	// ErrUnknownScope 定义引用了未注册的作用域。
	ErrUnknownScope = errors.New("ioc: unknown scope")
	// ErrNoDecorator 需要代理的接口没有注册装饰器。
	ErrNoDecorator = errors.New("ioc: no decorator registered")
)

// InvalidDefinitionError 定义本身不合法（工厂签名、类型不匹配等）。
type InvalidDefinitionError struct {
	Name  string
	Cause error
}

func (e *InvalidDefinitionError) Error() string {
	return fmt.Sprintf("ioc: invalid definition %q: %v", e.Name, e.Cause)
}

func (e *InvalidDefinitionError) Unwrap() error { return e.Cause }

// DuplicateDefinitionError 名称已注册。
type DuplicateDefinitionError struct {
	Name string
}

func (e *DuplicateDefinitionError) Error() string {
	return fmt.Sprintf("ioc: definition %q is already registered", e.Name)
}

// MissingDependencyError 必需依赖没有候选定义。
type MissingDependencyError struct {
	Request DependencyRequest
	Path    []string
}

func (e *MissingDependencyError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("ioc: no definition satisfies %v", e.Request)
	}
	return fmt.Sprintf("ioc: no definition satisfies %v (required by %s)", e.Request, strings.Join(e.Path, " -> "))
}

// AmbiguousDependencyError 单值请求匹配到多个候选。
type AmbiguousDependencyError struct {
	Request    DependencyRequest
	Candidates []string
}

func (e *AmbiguousDependencyError) Error() string {
	return fmt.Sprintf("ioc: %v is ambiguous, candidates: %s", e.Request, strings.Join(e.Candidates, ", "))
}

// CircularDependencyError 解析重新进入了当前路径上的定义。
// Cycle 从首次出现的名称开始，到重复前为止。
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	if len(e.Cycle) == 0 {
		return "ioc: circular dependency"
	}
	return fmt.Sprintf("ioc: circular dependency: %s -> %s", strings.Join(e.Cycle, " -> "), e.Cycle[0])
}

// ConstructionError 工厂执行失败或 panic。
type ConstructionError struct {
	Name  string
	Cause error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("ioc: construct %q: %v", e.Name, e.Cause)
}

func (e *ConstructionError) Unwrap() error { return e.Cause }

// ProxyInvocationError 拦截机制本身的故障。
// 目标或拦截器返回的错误不会被包装。
type ProxyInvocationError struct {
	Method string
	Cause  error
}

func (e *ProxyInvocationError) Error() string {
	return fmt.Sprintf("ioc: proxy %s: %v", e.Method, e.Cause)
}

func (e *ProxyInvocationError) Unwrap() error { return e.Cause }
