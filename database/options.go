package database

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Options 数据库配置选项
type Options struct {
	Name          string
	Dialector     gorm.Dialector
	GormConfig    *gorm.Config
	MaxIdleConns  int
	MaxOpenConns  int
	MaxLifetime   time.Duration
	AutoMigrate   []any         // 需要自动迁移的模型
	LogLevel      string        // silent / error / warn / info，默认 warn
	SlowThreshold time.Duration // 慢查询阈值，0 表示不记录慢查询
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string, dialector gorm.Dialector) *Options {
	return &Options{
		Name:          name,
		Dialector:     dialector,
		GormConfig:    &gorm.Config{},
		MaxIdleConns:  10,
		MaxOpenConns:  100,
		MaxLifetime:   time.Hour,
		LogLevel:      "warn",
		SlowThreshold: 200 * time.Millisecond,
	}
}

// Validate 验证配置
func (o *Options) Validate() error {
	if o.Name == "" {
		return errors.New("database name is required")
	}
	if o.Dialector == nil {
		return errors.New("database dialector is required")
	}
	if o.MaxOpenConns < 0 || o.MaxIdleConns < 0 {
		return errors.New("database pool size must be non-negative")
	}
	if _, err := parseLogLevel(o.LogLevel); err != nil {
		return err
	}
	return nil
}

func parseLogLevel(s string) (gormlogger.LogLevel, error) {
	switch s {
	case "silent":
		return gormlogger.Silent, nil
	case "error":
		return gormlogger.Error, nil
	case "", "warn":
		return gormlogger.Warn, nil
	case "info":
		return gormlogger.Info, nil
	}
	return gormlogger.Warn, fmt.Errorf("unknown database log level %q", s)
}
