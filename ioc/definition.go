package ioc

import (
	"fmt"
	"reflect"
	"strings"
)

// ScopeName 标识实例的生命周期策略，可通过 RegisterScope 扩展。
type ScopeName string

const (
	// ScopeSingleton 每个容器一个实例（默认）。
	ScopeSingleton ScopeName = "singleton"
	// ScopePrototype 每次解析创建新实例，容器不保留引用。
	ScopePrototype ScopeName = "prototype"
	// ScopeRequest 每个 BeginScope 上下文一个实例。
	ScopeRequest ScopeName = "request"
)

// Multiplicity 依赖的基数。
type Multiplicity int

const (
	// Single 需要恰好一个候选。
	Single Multiplicity = iota
	// Collection 注入全部候选，按优先级和注册顺序排列。
	Collection
)

// DependencyRequest 描述一次依赖请求。
type DependencyRequest struct {
	Type         reflect.Type
	Qualifier    string
	Multiplicity Multiplicity
	Optional     bool
}

// AsOptional 返回可选版本的请求副本。
func (r DependencyRequest) AsOptional() DependencyRequest {
	r.Optional = true
	return r
}

func (r DependencyRequest) String() string {
	var b strings.Builder
	if r.Multiplicity == Collection {
		b.WriteString("[]")
	}
	fmt.Fprintf(&b, "%v", r.Type)
	if r.Qualifier != "" {
		fmt.Fprintf(&b, "(%s)", r.Qualifier)
	}
	if r.Optional {
		b.WriteString("?")
	}
	return b.String()
}

// Need 请求类型 T 的单个实例。
func Need[T any]() DependencyRequest {
	return DependencyRequest{Type: TypeOf[T]()}
}

// NeedNamed 请求带限定名的类型 T 实例。
func NeedNamed[T any](qualifier string) DependencyRequest {
	return DependencyRequest{Type: TypeOf[T](), Qualifier: qualifier}
}

// NeedAll 请求类型 T 的全部实例。
func NeedAll[T any]() DependencyRequest {
	return DependencyRequest{Type: TypeOf[T](), Multiplicity: Collection}
}

// FactoryKind 工厂类别。
type FactoryKind int

const (
	// FactoryConstructor 构造函数，参数即依赖。
	FactoryConstructor FactoryKind = iota
	// FactoryProducer 绑定到所属 Bean 的生产方法。
	FactoryProducer
	// FactoryValue 预先构建的实例。
	FactoryValue
	// FactoryStruct 按 `inject` 标签注入字段的结构体。
	FactoryStruct
)

// Factory 描述如何产生实例。
type Factory struct {
	Kind FactoryKind

	// Func 构造函数：func(deps...) T 或 func(deps...) (T, error)
	Func any

	// Owner / Method 生产方法所属的定义名称和方法名
	Owner  string
	Method string

	// Value 预构建实例
	Value any

	// StructType 结构体注入的目标类型（指针或结构体）
	StructType reflect.Type
}

// Constructor 使用构造函数创建实例。
func Constructor(fn any) Factory {
	return Factory{Kind: FactoryConstructor, Func: fn}
}

// Producer 调用名为 owner 的 Bean 上的 method 创建实例。
func Producer(owner, method string) Factory {
	return Factory{Kind: FactoryProducer, Owner: owner, Method: method}
}

// Value 直接使用已有实例。
func Value(v any) Factory {
	return Factory{Kind: FactoryValue, Value: v}
}

// Struct 实例化 T 并注入带 `inject` 标签的字段。
func Struct[T any]() Factory {
	return Factory{Kind: FactoryStruct, StructType: TypeOf[T]()}
}

// Definition 是 Bean 的不可变元数据。注册后不得再修改。
type Definition struct {
	Name         string
	Type         reflect.Type
	Scope        ScopeName
	Factory      Factory
	Dependencies []DependencyRequest
	Qualifier    string

	// Priority 集合注入时的顺序，数值小者在前
	Priority int
	// NonProxyable 禁止为该 Bean 创建代理
	NonProxyable bool
	// Eager 在 Refresh 时预先创建（仅单例）
	Eager bool
	// Destroy 容器关闭时代替 Dispose/Close 释放实例
	Destroy func(instance any) error

	// Annotations 类型级标记，MethodAnnotations 方法级标记，供切点匹配
	Annotations       []string
	MethodAnnotations map[string][]string

	seq    int
	fields []fieldInjection
	fnType reflect.Type
}

// fieldInjection 结构体字段注入元数据，与 Dependencies 一一对应
type fieldInjection struct {
	index int
	name  string
}

// HasAnnotation 检查类型级标记。
func (d *Definition) HasAnnotation(a string) bool {
	for _, x := range d.Annotations {
		if x == a {
			return true
		}
	}
	return false
}

func (d *Definition) String() string {
	return fmt.Sprintf("%s(%v, %s)", d.Name, d.Type, d.Scope)
}

// NewDefinition 以选项构造定义。
func NewDefinition(name string, typ reflect.Type, opts ...Option) Definition {
	def := Definition{Name: name, Type: typ}
	for _, opt := range opts {
		opt(&def)
	}
	return def
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// normalize 填充默认值、推断依赖并校验定义。返回的副本与调用者的切片不共享。
func normalize(def Definition, owner func(string) (*Definition, bool)) (*Definition, error) {
	d := def
	d.Dependencies = append([]DependencyRequest(nil), def.Dependencies...)
	d.Annotations = append([]string(nil), def.Annotations...)
	if def.MethodAnnotations != nil {
		d.MethodAnnotations = make(map[string][]string, len(def.MethodAnnotations))
		for m, a := range def.MethodAnnotations {
			d.MethodAnnotations[m] = append([]string(nil), a...)
		}
	}
	if d.Scope == "" {
		d.Scope = ScopeSingleton
	}

	var err error
	switch d.Factory.Kind {
	case FactoryConstructor:
		err = d.inspectConstructor()
	case FactoryProducer:
		err = d.inspectProducer(owner)
	case FactoryValue:
		err = d.inspectValue()
	case FactoryStruct:
		err = d.inspectStruct()
	default:
		err = fmt.Errorf("unknown factory kind %d", d.Factory.Kind)
	}
	if err != nil {
		return nil, &InvalidDefinitionError{Name: def.Name, Cause: err}
	}

	if d.Name == "" {
		d.Name = d.Type.String()
		if d.Qualifier != "" {
			d.Name += "#" + d.Qualifier
		}
	}
	return &d, nil
}

func (d *Definition) inspectConstructor() error {
	if d.Factory.Func == nil {
		return fmt.Errorf("constructor is nil")
	}
	fnType := reflect.TypeOf(d.Factory.Func)
	if fnType.Kind() != reflect.Func {
		return fmt.Errorf("constructor must be a function, got %v", fnType)
	}
	out, err := checkResults(fnType)
	if err != nil {
		return err
	}
	if err := d.bindType(out); err != nil {
		return err
	}
	d.fnType = fnType
	return d.bindParams(fnType, 0)
}

func (d *Definition) inspectProducer(owner func(string) (*Definition, bool)) error {
	if d.Factory.Owner == "" || d.Factory.Method == "" {
		return fmt.Errorf("producer requires owner and method")
	}
	ownerDef, ok := owner(d.Factory.Owner)
	if !ok {
		return fmt.Errorf("producer owner %q is not registered", d.Factory.Owner)
	}
	// 方法通常定义在具体类型上，而非声明的接口
	ownerType := ownerDef.Type
	if impl := ownerDef.implType(); impl != nil {
		ownerType = impl
	}
	m, ok := ownerType.MethodByName(d.Factory.Method)
	if !ok {
		return fmt.Errorf("owner %s (%v) has no method %s", ownerDef.Name, ownerType, d.Factory.Method)
	}
	out, err := checkResults(m.Type)
	if err != nil {
		return err
	}
	if err := d.bindType(out); err != nil {
		return err
	}
	// 具体类型的方法值第一个参数是接收者
	skip := 0
	if ownerType.Kind() != reflect.Interface {
		skip = 1
	}
	return d.bindParams(m.Type, skip)
}

func (d *Definition) inspectValue() error {
	if d.Factory.Value == nil {
		return fmt.Errorf("value is nil")
	}
	if len(d.Dependencies) > 0 {
		return fmt.Errorf("value definitions cannot declare dependencies")
	}
	return d.bindType(reflect.TypeOf(d.Factory.Value))
}

func (d *Definition) inspectStruct() error {
	impl := d.Factory.StructType
	if impl == nil {
		return fmt.Errorf("struct type is nil")
	}
	st := impl
	if st.Kind() == reflect.Ptr {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return fmt.Errorf("struct factory requires a struct type, got %v", impl)
	}
	if err := d.bindType(impl); err != nil {
		return err
	}
	if len(d.Dependencies) > 0 {
		return fmt.Errorf("struct definitions take dependencies from `inject` tags")
	}
	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)
		tag, ok := field.Tag.Lookup("inject")
		if !ok {
			continue
		}
		if !field.IsExported() {
			return fmt.Errorf("field %s is tagged but not exported", field.Name)
		}
		d.fields = append(d.fields, fieldInjection{index: i, name: field.Name})
		d.Dependencies = append(d.Dependencies, parseTag(tag, field.Type))
	}
	return nil
}

// parseTag 解析 `inject:"qualifier,optional"`，"?" 等同 optional
func parseTag(tag string, typ reflect.Type) DependencyRequest {
	parts := strings.Split(tag, ",")
	req := inferRequest(typ)
	req.Qualifier = strings.TrimSpace(parts[0])
	if req.Qualifier == "?" || req.Qualifier == "optional" {
		req.Qualifier = ""
		req.Optional = true
	}
	for _, p := range parts[1:] {
		switch strings.TrimSpace(p) {
		case "?", "optional":
			req.Optional = true
		case "all":
			req.Multiplicity = Collection
		}
	}
	if req.Multiplicity == Collection && req.Type == typ && typ.Kind() == reflect.Slice {
		req.Type = typ.Elem()
	}
	return req
}

// bindType 确认产物类型与声明类型兼容，未声明时采用产物类型
func (d *Definition) bindType(produced reflect.Type) error {
	if d.Type == nil {
		d.Type = produced
		return nil
	}
	if produced == d.Type {
		return nil
	}
	if d.Type.Kind() == reflect.Interface && (produced.Kind() == reflect.Interface || produced.Implements(d.Type)) {
		return nil
	}
	return fmt.Errorf("factory produces %v, not assignable to declared type %v", produced, d.Type)
}

// bindParams 推断或校验函数参数对应的依赖
func (d *Definition) bindParams(fnType reflect.Type, skip int) error {
	n := fnType.NumIn() - skip
	if fnType.IsVariadic() {
		return fmt.Errorf("variadic factories are not supported")
	}
	if len(d.Dependencies) == 0 {
		for i := 0; i < n; i++ {
			d.Dependencies = append(d.Dependencies, inferRequest(fnType.In(i+skip)))
		}
		return nil
	}
	if len(d.Dependencies) != n {
		return fmt.Errorf("factory takes %d parameters but %d dependencies were declared", n, len(d.Dependencies))
	}
	for i, dep := range d.Dependencies {
		param := fnType.In(i + skip)
		want := dep.Type
		if dep.Multiplicity == Collection {
			if param.Kind() != reflect.Slice {
				return fmt.Errorf("parameter %d must be a slice for collection dependency %v", i, dep)
			}
			param = param.Elem()
		}
		if !want.AssignableTo(param) && !(want.Kind() == reflect.Interface && param.Kind() == reflect.Interface) {
			return fmt.Errorf("dependency %v not assignable to parameter %d (%v)", dep, i, fnType.In(i+skip))
		}
	}
	return nil
}

// inferRequest 接口或指针元素的切片视为集合注入
func inferRequest(param reflect.Type) DependencyRequest {
	if param.Kind() == reflect.Slice {
		switch param.Elem().Kind() {
		case reflect.Interface, reflect.Ptr:
			return DependencyRequest{Type: param.Elem(), Multiplicity: Collection}
		}
	}
	return DependencyRequest{Type: param}
}

func checkResults(fnType reflect.Type) (reflect.Type, error) {
	switch fnType.NumOut() {
	case 1:
		if fnType.Out(0) == errorType {
			return nil, fmt.Errorf("factory must return an instance")
		}
		return fnType.Out(0), nil
	case 2:
		if fnType.Out(1) != errorType {
			return nil, fmt.Errorf("second factory result must be error, got %v", fnType.Out(1))
		}
		return fnType.Out(0), nil
	default:
		return nil, fmt.Errorf("factory must return T or (T, error), got %d results", fnType.NumOut())
	}
}

// implType 返回工厂产物的具体类型（若可静态得知）
func (d *Definition) implType() reflect.Type {
	switch d.Factory.Kind {
	case FactoryConstructor:
		if d.fnType != nil {
			return d.fnType.Out(0)
		}
	case FactoryValue:
		return reflect.TypeOf(d.Factory.Value)
	case FactoryStruct:
		return d.Factory.StructType
	}
	return nil
}
