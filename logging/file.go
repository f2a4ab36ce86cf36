package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// FileLoggerOptions 文件日志选项
type FileLoggerOptions struct {
	Path string
	// JSON 为 true 时使用 JsonFormatter，否则使用不带颜色的 TextFormatter
	JSON bool
	// BufferSize 异步队列长度，默认 1024
	BufferSize int
}

// FileLoggerProvider 文件日志提供者，通过 AsyncWriter 异步写入
type FileLoggerProvider struct {
	options FileLoggerOptions
	level   atomic.Int32

	mu     sync.Mutex
	file   *os.File
	writer *AsyncWriter
	err    error
}

// NewFileLoggerProvider 创建文件日志提供者，文件在第一次创建 Logger 时打开
func NewFileLoggerProvider(options FileLoggerOptions) *FileLoggerProvider {
	if options.BufferSize <= 0 {
		options.BufferSize = 1024
	}
	p := &FileLoggerProvider{options: options}
	p.level.Store(int32(LogLevelInfo))
	return p
}

func (p *FileLoggerProvider) open() (*AsyncWriter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer != nil || p.err != nil {
		return p.writer, p.err
	}

	if dir := filepath.Dir(p.options.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			p.err = fmt.Errorf("logging: 创建日志目录失败: %w", err)
			return nil, p.err
		}
	}
	file, err := os.OpenFile(p.options.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		p.err = fmt.Errorf("logging: 打开日志文件失败: %w", err)
		return nil, p.err
	}

	var formatter Formatter = NewTextFormatter()
	if p.options.JSON {
		formatter = NewJsonFormatter()
	}
	p.file = file
	p.writer = NewAsyncWriter(file, formatter, p.options.BufferSize)
	return p.writer, nil
}

func (p *FileLoggerProvider) CreateLogger(category string) Logger {
	w, err := p.open()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return NewConsoleLoggerProvider(ConsoleLoggerOptions{Output: os.Stderr}).CreateLogger(category)
	}
	return &entryLogger{
		category: category,
		level:    &p.level,
		sink:     w.WriteLog,
	}
}

func (p *FileLoggerProvider) SetMinimumLevel(level LogLevel) {
	p.level.Store(int32(level))
}

// Close 刷新队列并关闭文件
func (p *FileLoggerProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer == nil {
		return nil
	}
	_ = p.writer.Close()
	err := p.file.Close()
	p.writer, p.file = nil, nil
	return err
}
