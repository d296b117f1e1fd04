package web

import (
	"fmt"
	"reflect"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/bean/config"
	"github.com/gocrud/bean/ioc"
	"github.com/gocrud/bean/logging"
)

// Controller 控制器 Bean，Host 启动时注册路由
type Controller interface {
	RegisterRoutes(router gin.IRouter)
}

// Builder Web 主机构建器（基于 Gin）
type Builder struct {
	addr        string
	engine      *gin.Engine
	controllers []any // 构造函数或结构体指针
}

// NewBuilder 创建 Web 构建器
func NewBuilder() *Builder {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	return &Builder{
		addr:   ":8080",
		engine: engine,
	}
}

// UsePort 设置端口，0 表示随机端口
func (b *Builder) UsePort(port int) *Builder {
	b.addr = fmt.Sprintf(":%d", port)
	return b
}

// UseAddr 设置监听地址
func (b *Builder) UseAddr(addr string) *Builder {
	b.addr = addr
	return b
}

// UseConfiguration 读取 section 中的 addr、port 和 mode
func (b *Builder) UseConfiguration(cfg config.Configuration, section string) *Builder {
	sub := cfg.GetSection(section)
	if addr := sub.Get("addr"); addr != "" {
		b.UseAddr(addr)
	}
	if port, err := sub.GetInt("port"); err == nil {
		b.UsePort(port)
	}
	if mode := sub.Get("mode"); mode != "" {
		b.SetMode(mode)
	}
	return b
}

// Use 使用全局中间件
func (b *Builder) Use(middleware ...gin.HandlerFunc) *Builder {
	b.engine.Use(middleware...)
	return b
}

// AddControllers 注册控制器。参数可以是构造函数（依赖作为参数注入），
// 也可以是结构体指针（按 `inject` 标签注入字段，容器创建新实例）。
// 容器中其他实现 Controller 的 Bean 同样会被挂载。
func (b *Builder) AddControllers(controllers ...any) *Builder {
	b.controllers = append(b.controllers, controllers...)
	return b
}

// Get 注册 GET 路由
func (b *Builder) Get(path string, handlers ...gin.HandlerFunc) *Builder {
	b.engine.GET(path, handlers...)
	return b
}

// Post 注册 POST 路由
func (b *Builder) Post(path string, handlers ...gin.HandlerFunc) *Builder {
	b.engine.POST(path, handlers...)
	return b
}

// Put 注册 PUT 路由
func (b *Builder) Put(path string, handlers ...gin.HandlerFunc) *Builder {
	b.engine.PUT(path, handlers...)
	return b
}

// Delete 注册 DELETE 路由
func (b *Builder) Delete(path string, handlers ...gin.HandlerFunc) *Builder {
	b.engine.DELETE(path, handlers...)
	return b
}

// Group 创建路由组
func (b *Builder) Group(relativePath string, handlers ...gin.HandlerFunc) *gin.RouterGroup {
	return b.engine.Group(relativePath, handlers...)
}

// NoRoute 处理 404
func (b *Builder) NoRoute(handlers ...gin.HandlerFunc) *Builder {
	b.engine.NoRoute(handlers...)
	return b
}

// SetMode 设置 Gin 模式
func (b *Builder) SetMode(mode string) *Builder {
	gin.SetMode(mode)
	return b
}

// Engine 获取 Gin 引擎（用于高级定制）
func (b *Builder) Engine() *gin.Engine {
	return b.engine
}

// Initializer 注册控制器和 *Host。Host 依赖容器中的 ioc.BeanFactory。
func (b *Builder) Initializer() ioc.Initializer {
	return ioc.InitializerFunc(func(binder ioc.Binder) error {
		for _, item := range b.controllers {
			def, err := controllerDefinition(item)
			if err != nil {
				return err
			}
			if err := binder.Register(def); err != nil {
				return fmt.Errorf("web: register controller %T: %w", item, err)
			}
		}

		host := ioc.NewDefinition("web.host", ioc.TypeOf[*Host](),
			ioc.NonProxyable(),
			ioc.WithDependencies(ioc.Need[ioc.BeanFactory](), ioc.Need[logging.Logger]().AsOptional()))
		host.Factory = ioc.Constructor(func(f ioc.BeanFactory, logger logging.Logger) *Host {
			return newHost(b.addr, b.engine, f, logger)
		})
		return binder.Register(host)
	})
}

// Configure 常用写法的简写
func Configure(options func(*Builder)) ioc.Initializer {
	b := NewBuilder()
	if options != nil {
		options(b)
	}
	return b.Initializer()
}

func controllerDefinition(item any) (ioc.Definition, error) {
	typ := reflect.TypeOf(item)
	switch {
	case typ == nil:
		return ioc.Definition{}, fmt.Errorf("web: nil controller")
	case typ.Kind() == reflect.Func:
		def := ioc.NewDefinition("", nil, ioc.NonProxyable())
		def.Factory = ioc.Constructor(item)
		return def, nil
	case typ.Kind() == reflect.Ptr && typ.Elem().Kind() == reflect.Struct:
		def := ioc.NewDefinition("", typ, ioc.NonProxyable())
		def.Factory = ioc.Factory{Kind: ioc.FactoryStruct, StructType: typ}
		return def, nil
	}
	return ioc.Definition{}, fmt.Errorf("web: controller must be a constructor or struct pointer, got %v", typ)
}

// RequestScope 为每个请求开启 ioc 请求作用域，请求结束时释放作用域内实例。
func RequestScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, end := ioc.BeginScope(c.Request.Context())
		defer end()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Resolve 在请求上下文中解析 T，请求作用域 Bean 需要 RequestScope 中间件。
func Resolve[T any](c *gin.Context, f ioc.BeanFactory) (T, error) {
	return ioc.ResolveContext[T](c.Request.Context(), f, "")
}
