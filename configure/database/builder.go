package database

import (
	"errors"
	"fmt"

	"github.com/gocrud/bean/config"
	"github.com/gocrud/bean/ioc"
	"github.com/gocrud/bean/logging"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Builder 数据库配置构建器
type Builder struct {
	configs []Options
	names   map[string]bool
	errors  []error
}

// NewBuilder 创建构建器
func NewBuilder() *Builder {
	return &Builder{names: make(map[string]bool)}
}

// Add 添加数据库配置
// name: 实例名称，也是注入时的限定名
// dialector: GORM 驱动 (e.g. sqlite.Open(dsn))
func (b *Builder) Add(name string, dialector gorm.Dialector, configure func(*Options)) *Builder {
	if b.names[name] {
		b.errors = append(b.errors, fmt.Errorf("database '%s' already configured", name))
		return b
	}
	opts := NewDefaultOptions(name, dialector)
	if configure != nil {
		configure(opts)
	}
	if err := opts.Validate(); err != nil {
		b.errors = append(b.errors, fmt.Errorf("invalid configuration for '%s': %w", name, err))
		return b
	}
	b.names[name] = true
	b.configs = append(b.configs, *opts)
	return b
}

// AddFromConfig 读取 section 下的 sqlite 数据库，每个子节一个实例：
//
//	database:
//	  main: { dsn: "file:app.db", maxOpenConns: 5, silent: true }
func (b *Builder) AddFromConfig(cfg config.Configuration, section string) *Builder {
	for name := range cfg.GetSection(section).GetAll() {
		sub := cfg.GetSection(section + ":" + name)
		dsn := sub.Get("dsn")
		if dsn == "" {
			b.errors = append(b.errors, fmt.Errorf("database '%s': dsn is required", name))
			continue
		}
		b.Add(name, sqlite.Open(dsn), func(o *Options) {
			if v, err := sub.GetInt("maxOpenConns"); err == nil {
				o.MaxOpenConns = v
			}
			if v, err := sub.GetInt("maxIdleConns"); err == nil {
				o.MaxIdleConns = v
			}
			if v, err := sub.GetDuration("maxLifetime"); err == nil {
				o.MaxLifetime = v
			}
			if v, err := sub.GetBool("silent"); err == nil && v {
				o.GormConfig.Logger = gormlogger.Default.LogMode(gormlogger.Silent)
			}
		})
	}
	return b
}

// Initializer 把每个数据库注册为 *gorm.DB 单例，容器关闭时关闭连接池。
func (b *Builder) Initializer() ioc.Initializer {
	return ioc.InitializerFunc(func(binder ioc.Binder) error {
		if len(b.errors) > 0 {
			return fmt.Errorf("database configuration errors: %w", errors.Join(b.errors...))
		}
		for _, opts := range b.configs {
			if err := binder.Register(definition(opts)); err != nil {
				return fmt.Errorf("failed to register database '%s': %w", opts.Name, err)
			}
		}
		return nil
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

func definition(opts Options) ioc.Definition {
	o := []ioc.Option{
		ioc.WithQualifier(opts.Name),
		ioc.WithDependencies(ioc.Need[logging.Logger]().AsOptional()),
		ioc.NonProxyable(),
		ioc.OnDestroy(func(v any) error { return closeDB(v.(*gorm.DB)) }),
	}
	if opts.Eager {
		o = append(o, ioc.Eager())
	}
	def := ioc.NewDefinition("database."+opts.Name, ioc.TypeOf[*gorm.DB](), o...)
	def.Factory = ioc.Constructor(func(logger logging.Logger) (*gorm.DB, error) {
		return open(opts, logger)
	})
	return def
}

func open(opts Options, logger logging.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	db, err := gorm.Open(opts.Dialector, opts.GormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open database '%s': %w", opts.Name, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB for '%s': %w", opts.Name, err)
	}
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(opts.MaxLifetime)

	if len(opts.AutoMigrate) > 0 {
		if err := db.AutoMigrate(opts.AutoMigrate...); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("auto migrate failed for '%s': %w", opts.Name, err)
		}
	}

	logger.Info("database opened",
		logging.F("name", opts.Name),
		logging.F("dialector", opts.Dialector.Name()))
	return db, nil
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
