package database

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/gocrud/modkit/logging"
)

// Factory 数据库实例工厂，按名称管理多个 *gorm.DB
type Factory struct {
	dbs    map[string]*gorm.DB
	names  []string
	logger logging.Logger
	mu     sync.RWMutex
}

// NewFactory 创建数据库工厂
func NewFactory(logger logging.Logger) *Factory {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Factory{
		dbs:    make(map[string]*gorm.DB),
		logger: logger,
	}
}

// Register 打开数据库、配置连接池并执行自动迁移
func (f *Factory) Register(ctx context.Context, opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.dbs[opts.Name]; exists {
		return fmt.Errorf("database '%s' already registered", opts.Name)
	}

	cfg := opts.GormConfig
	if cfg == nil {
		cfg = &gorm.Config{}
	}
	if cfg.Logger == nil {
		level, _ := parseLogLevel(opts.LogLevel)
		c := *cfg
		c.Logger = newGormLogger(f.logger.WithFields(logging.Field{Key: "database", Value: opts.Name}), level, opts.SlowThreshold)
		cfg = &c
	}

	db, err := gorm.Open(opts.Dialector, cfg)
	if err != nil {
		return fmt.Errorf("failed to open database '%s': %w", opts.Name, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB for '%s': %w", opts.Name, err)
	}
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(opts.MaxLifetime)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("failed to connect to database '%s': %w", opts.Name, err)
	}

	if len(opts.AutoMigrate) > 0 {
		if err := db.WithContext(ctx).AutoMigrate(opts.AutoMigrate...); err != nil {
			_ = sqlDB.Close()
			return fmt.Errorf("auto migrate failed for '%s': %w", opts.Name, err)
		}
	}

	f.dbs[opts.Name] = db
	f.names = append(f.names, opts.Name)

	f.logger.Info("Database registered",
		logging.Field{Key: "name", Value: opts.Name},
		logging.Field{Key: "dialector", Value: opts.Dialector.Name()})
	return nil
}

// Get 获取指定名称的数据库实例
func (f *Factory) Get(name string) (*gorm.DB, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	db, exists := f.dbs[name]
	if !exists {
		return nil, fmt.Errorf("database '%s' not found", name)
	}
	return db, nil
}

// Names 按注册顺序返回实例名称
func (f *Factory) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.names...)
}

// Each 按注册顺序遍历所有数据库实例
func (f *Factory) Each(fn func(name string, db *gorm.DB)) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, name := range f.names {
		fn(name, f.dbs[name])
	}
}

// Close 关闭所有数据库连接
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for _, name := range f.names {
		sqlDB, err := f.dbs[name].DB()
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to get sql.DB for '%s': %w", name, err))
			continue
		}
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database '%s': %w", name, err))
		}
	}
	if len(f.names) > 0 {
		f.logger.Info("Database connections closed", logging.Field{Key: "count", Value: len(f.names)})
	}

	f.dbs = make(map[string]*gorm.DB)
	f.names = nil
	return errors.Join(errs...)
}
