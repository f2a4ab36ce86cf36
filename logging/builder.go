package logging

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
)

// LoggingBuilder 日志构建器
type LoggingBuilder struct {
	providers    []LoggerProvider
	minimumLevel LogLevel
	mu           sync.RWMutex
}

// NewLoggingBuilder 创建日志构建器
func NewLoggingBuilder() *LoggingBuilder {
	return &LoggingBuilder{minimumLevel: LogLevelInfo}
}

// SetMinimumLevel 设置最小日志级别
func (b *LoggingBuilder) SetMinimumLevel(level LogLevel) *LoggingBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.minimumLevel = level
	return b
}

// AddProvider 添加日志提供者
func (b *LoggingBuilder) AddProvider(provider LoggerProvider) *LoggingBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.providers = append(b.providers, provider)
	return b
}

// AddConsole 添加控制台日志
func (b *LoggingBuilder) AddConsole(options ...ConsoleLoggerOptions) *LoggingBuilder {
	opts := ConsoleLoggerOptions{
		IncludeTimestamp: true,
		TimestampFormat:  "2006-01-02 15:04:05",
		ColorOutput:      true,
		Output:           os.Stdout,
	}
	if len(options) > 0 {
		opts = options[0]
	}
	return b.AddProvider(NewConsoleLoggerProvider(opts))
}

// AddFile 添加文件日志
func (b *LoggingBuilder) AddFile(path string, options ...FileLoggerOptions) *LoggingBuilder {
	opts := FileLoggerOptions{Path: path}
	if len(options) > 0 {
		opts = options[0]
		opts.Path = path
	}
	return b.AddProvider(NewFileLoggerProvider(opts))
}

// AddZap 添加 zap 日志，base 为 nil 时使用默认的 JSON 生产配置
func (b *LoggingBuilder) AddZap(base *zap.Logger) *LoggingBuilder {
	return b.AddProvider(NewZapLoggerProvider(base))
}

// Build 构建日志工厂
func (b *LoggingBuilder) Build() LoggerFactory {
	b.mu.RLock()
	defer b.mu.RUnlock()

	factory := &loggerFactory{minimumLevel: b.minimumLevel}
	for _, provider := range b.providers {
		factory.AddProvider(provider)
	}
	return factory
}

// Options 是可以从配置文件绑定的日志选项
type Options struct {
	Level   string `json:"level" yaml:"level"`
	Console bool   `json:"console" yaml:"console"`
	JSON    bool   `json:"json" yaml:"json"`
	File    string `json:"file" yaml:"file"`
	Zap     bool   `json:"zap" yaml:"zap"`
}

// NewDefaultOptions 返回默认选项：Info 级别，彩色控制台输出
func NewDefaultOptions() Options {
	return Options{Level: "info", Console: true}
}

// NewFactory 根据选项构建日志工厂。没有启用任何输出时退回控制台输出。
func NewFactory(opts Options) (LoggerFactory, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	b := NewLoggingBuilder().SetMinimumLevel(level)
	if opts.Console || (opts.File == "" && !opts.Zap) {
		b.AddConsole(ConsoleLoggerOptions{
			IncludeTimestamp: true,
			TimestampFormat:  "2006-01-02 15:04:05",
			ColorOutput:      !opts.JSON,
			JSON:             opts.JSON,
			Output:           os.Stdout,
		})
	}
	if opts.File != "" {
		b.AddFile(opts.File, FileLoggerOptions{JSON: opts.JSON})
	}
	if opts.Zap {
		b.AddZap(nil)
	}
	return b.Build(), nil
}

// NewLogger 创建一个默认的控制台 Logger
func NewLogger() Logger {
	return NewLoggingBuilder().AddConsole().Build().CreateLogger("app")
}

// MustNewLogger 根据选项创建 Logger，选项无效时 panic
func MustNewLogger(opts Options, category string) Logger {
	factory, err := NewFactory(opts)
	if err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	return factory.CreateLogger(category)
}
