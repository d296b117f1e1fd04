package ioc

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"
)

// Method 切点匹配使用的方法元数据。
type Method struct {
	// DeclaringType 被代理的接口类型
	DeclaringType reflect.Type
	// TargetType 原始实例的具体类型
	TargetType reflect.Type
	Name       string
	Bean       string

	// TypeAnnotations 定义上的类型级标记，Annotations 该方法的标记
	TypeAnnotations []string
	Annotations     []string
}

// FullName 形如 "pkg.Greeter.Greet"。
func (m *Method) FullName() string {
	if m.DeclaringType == nil {
		return m.Name
	}
	return m.DeclaringType.String() + "." + m.Name
}

// HasAnnotation 方法上是否有标记。
func (m *Method) HasAnnotation(a string) bool {
	return contains(m.Annotations, a)
}

// TypeHasAnnotation 定义上是否有类型级标记。
func (m *Method) TypeHasAnnotation(a string) bool {
	return contains(m.TypeAnnotations, a)
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// Pointcut 方法选择谓词，必须是纯函数。
type Pointcut interface {
	Matches(m *Method) bool
}

// PointcutFunc 函数形式的 Pointcut。
type PointcutFunc func(m *Method) bool

func (f PointcutFunc) Matches(m *Method) bool { return f(m) }

// Always 匹配所有方法。
func Always() Pointcut {
	return PointcutFunc(func(*Method) bool { return true })
}

// MethodNamePrefix 方法名以 prefix 开头。
func MethodNamePrefix(prefix string) Pointcut {
	return PointcutFunc(func(m *Method) bool { return strings.HasPrefix(m.Name, prefix) })
}

// MethodNamed 方法名属于 names 之一。
func MethodNamed(names ...string) Pointcut {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return PointcutFunc(func(m *Method) bool {
		_, ok := set[m.Name]
		return ok
	})
}

// MethodNameMatches 方法名匹配正则表达式。
func MethodNameMatches(expr string) (Pointcut, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	return PointcutFunc(func(m *Method) bool { return re.MatchString(m.Name) }), nil
}

// TypeAnnotated 定义带有类型级标记。
func TypeAnnotated(a string) Pointcut {
	return PointcutFunc(func(m *Method) bool { return m.TypeHasAnnotation(a) })
}

// MethodAnnotated 方法带有标记。
func MethodAnnotated(a string) Pointcut {
	return PointcutFunc(func(m *Method) bool { return m.HasAnnotation(a) })
}

// Annotated 方法或其定义带有标记。
func Annotated(a string) Pointcut {
	return PointcutFunc(func(m *Method) bool { return m.HasAnnotation(a) || m.TypeHasAnnotation(a) })
}

// DeclaredBy 方法由 typ 接口声明。
func DeclaredBy(typ reflect.Type) Pointcut {
	return PointcutFunc(func(m *Method) bool { return m.DeclaringType == typ })
}

// DeclaringTypeNamed 声明接口的名称（不含包路径）或完整名称等于 name。
func DeclaringTypeNamed(name string) Pointcut {
	return PointcutFunc(func(m *Method) bool {
		if m.DeclaringType == nil {
			return false
		}
		return m.DeclaringType.Name() == name || m.DeclaringType.String() == name
	})
}

// TargetImplements 原始实例实现了接口 T。
func TargetImplements[T any]() Pointcut {
	iface := TypeOf[T]()
	return PointcutFunc(func(m *Method) bool {
		return m.TargetType != nil && m.TargetType.Implements(iface)
	})
}

// BeanNamed 方法属于名为 name 的 Bean。
func BeanNamed(name string) Pointcut {
	return PointcutFunc(func(m *Method) bool { return m.Bean == name })
}

// And 全部匹配。
func And(ps ...Pointcut) Pointcut {
	return PointcutFunc(func(m *Method) bool {
		for _, p := range ps {
			if !p.Matches(m) {
				return false
			}
		}
		return true
	})
}

// Or 任一匹配。
func Or(ps ...Pointcut) Pointcut {
	return PointcutFunc(func(m *Method) bool {
		for _, p := range ps {
			if p.Matches(m) {
				return true
			}
		}
		return false
	})
}

// Not 取反。
func Not(p Pointcut) Pointcut {
	return PointcutFunc(func(m *Method) bool { return !p.Matches(m) })
}

// ParsePointcut 将字符串表达式编译为 Pointcut，只在注册时调用一次。
//
// 语法：
//
//	name:Get*          方法名前缀
//	name:Save          方法名相等
//	name~"^(Get|Find)" 方法名正则（不含空白和括号时可省略引号）
//	@Audited           方法或定义带有标记
//	method:@Audited    方法带有标记
//	type:@Service      定义带有类型级标记
//	type:Greeter       声明接口名称
//	bean:greeter       Bean 名称
//	*                  全部方法
//
// 用 !、&&、|| 和括号组合，&& 优先于 ||。
func ParsePointcut(expr string) (Pointcut, error) {
	p := &pointcutParser{src: expr}
	pc, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return nil, p.errorf("unexpected %q", p.src[p.pos:])
	}
	return pc, nil
}

// MustParsePointcut 解析失败时 panic。
func MustParsePointcut(expr string) Pointcut {
	pc, err := ParsePointcut(expr)
	if err != nil {
		panic(err)
	}
	return pc
}

type pointcutParser struct {
	src string
	pos int
}

func (p *pointcutParser) errorf(format string, args ...any) error {
	return fmt.Errorf("ioc: pointcut %q at %d: %s", p.src, p.pos, fmt.Sprintf(format, args...))
}

func (p *pointcutParser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *pointcutParser) consume(tok string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

func (p *pointcutParser) parseOr() (Pointcut, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	terms := []Pointcut{left}
	for p.consume("||") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, right)
	}
	if len(terms) == 1 {
		return left, nil
	}
	return Or(terms...), nil
}

func (p *pointcutParser) parseAnd() (Pointcut, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	terms := []Pointcut{left}
	for p.consume("&&") {
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		terms = append(terms, right)
	}
	if len(terms) == 1 {
		return left, nil
	}
	return And(terms...), nil
}

func (p *pointcutParser) parseUnary() (Pointcut, error) {
	if p.consume("!") {
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not(inner), nil
	}
	if p.consume("(") {
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.consume(")") {
			return nil, p.errorf("missing )")
		}
		return inner, nil
	}
	return p.parseTerm()
}

func (p *pointcutParser) parseTerm() (Pointcut, error) {
	p.skipSpace()
	if p.consume("*") {
		return Always(), nil
	}
	if p.consume("@") {
		a, err := p.annotation()
		if err != nil {
			return nil, err
		}
		return Annotated(a), nil
	}
	key := p.ident()
	switch {
	case key == "name" && p.consume("~"):
		expr, err := p.value()
		if err != nil {
			return nil, err
		}
		pc, err := MethodNameMatches(expr)
		if err != nil {
			return nil, p.errorf("%v", err)
		}
		return pc, nil
	case key == "":
		return nil, p.errorf("expected term")
	case !p.consume(":"):
		return nil, p.errorf("expected ':' after %q", key)
	}

	switch key {
	case "name":
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		if prefix, ok := strings.CutSuffix(v, "*"); ok {
			return MethodNamePrefix(prefix), nil
		}
		return MethodNamed(v), nil
	case "method":
		if !p.consume("@") {
			return nil, p.errorf("method: expects @annotation")
		}
		a, err := p.annotation()
		if err != nil {
			return nil, err
		}
		return MethodAnnotated(a), nil
	case "type":
		if p.consume("@") {
			a, err := p.annotation()
			if err != nil {
				return nil, err
			}
			return TypeAnnotated(a), nil
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		return DeclaringTypeNamed(v), nil
	case "bean":
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		return BeanNamed(v), nil
	}
	return nil, p.errorf("unknown term %q", key)
}

func (p *pointcutParser) ident() string {
	start := p.pos
	for p.pos < len(p.src) && unicode.IsLetter(rune(p.src[p.pos])) {
		p.pos++
	}
	return p.src[start:p.pos]
}

// word 读取到空白或运算符为止
func (p *pointcutParser) word() string {
	start := p.pos
	for p.pos < len(p.src) && !strings.ContainsRune(" \t\n()&|!", rune(p.src[p.pos])) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *pointcutParser) annotation() (string, error) {
	a := p.word()
	if a == "" {
		return "", p.errorf("expected annotation")
	}
	return a, nil
}

// value 读取普通词或双引号字符串
func (p *pointcutParser) value() (string, error) {
	if p.pos < len(p.src) && p.src[p.pos] == '"' {
		end := strings.IndexByte(p.src[p.pos+1:], '"')
		if end < 0 {
			return "", p.errorf("unterminated string")
		}
		v := p.src[p.pos+1 : p.pos+1+end]
		p.pos += end + 2
		return v, nil
	}
	v := p.word()
	if v == "" {
		return "", p.errorf("expected value")
	}
	return v, nil
}
